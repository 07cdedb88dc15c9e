package http

import (
	"net/http"
	"strings"
	"time"

	"roomsplit/internal/core"
	"roomsplit/internal/services"
)

// handleListExpenses serves the table view: ?sort=date|cost|shop|user,
// ?dir=asc|desc (default desc) and ?users=id1,id2.
func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	opts := services.ListOptions{
		Sort:  core.ParseSortKey(q.Get("sort")),
		Desc:  !strings.EqualFold(strings.TrimSpace(q.Get("dir")), "asc"),
		Users: splitList(q.Get("users")),
	}
	res, err := s.deps.Expenses.List(r.Context(), userIDFrom(r.Context()), opts)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, listView{
		RoomID:   res.RoomID,
		Total:    res.Total.Amount(),
		Expenses: toExpenseViews(res.Expenses),
		Members:  toMemberViews(res.Roster),
	})
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}
	e, err := s.deps.Expenses.Get(r.Context(), userIDFrom(r.Context()), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toExpenseView(e))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	userID := userIDFrom(ctx)

	p, err := s.deps.Profiles.Profile(ctx, userID)
	if err != nil {
		return err
	}
	if !p.InRoom() {
		return core.ErrNotInRoom
	}

	form, err := parseExpenseForm(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		return err
	}
	defer form.Close()

	e, err := s.deps.Expenses.Create(ctx, services.CreateInput{
		UserID:  userID,
		RoomID:  p.RoomID,
		Draft:   form.Draft,
		Receipt: form.Receipt,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, toExpenseView(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}
	form, err := parseExpenseForm(w, r, s.opts.MaxUploadBytes)
	if err != nil {
		return err
	}
	defer form.Close()

	e, err := s.deps.Expenses.Update(r.Context(), services.UpdateInput{
		ID:          id,
		UserID:      userIDFrom(r.Context()),
		Draft:       form.Draft,
		Receipt:     form.Receipt,
		RemoveImage: form.RemoveImage,
	})
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toExpenseView(e))
}

// handleDeleteExpense removes an expense. ?imagePath= lets a client clean
// up the receipt of a record that is already gone.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) error {
	id, err := parseID(r)
	if err != nil {
		return err
	}
	imagePath := strings.TrimSpace(r.URL.Query().Get("imagePath"))
	if err := s.deps.Expenses.Remove(r.Context(), userIDFrom(r.Context()), id, imagePath); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// handleDashboard aggregates the caller's room as of ?ref=YYYY-MM-DD,
// defaulting to today.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) error {
	ref := core.DateOf(time.Now())
	if v := strings.TrimSpace(r.URL.Query().Get("ref")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return badRequest("ref must be formatted as YYYY-MM-DD")
		}
		ref = d
	}
	d, err := s.deps.Dashboards.Dashboard(r.Context(), userIDFrom(r.Context()), ref)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toDashboardView(d))
}
