package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"roomsplit/internal/amqp"
	"roomsplit/internal/categorize"
	"roomsplit/internal/core"
	"roomsplit/internal/log"
	"roomsplit/internal/media"
)

// ExpenseService runs the expense write path: categorize, attach the
// receipt, persist, then announce the change.
type ExpenseService struct {
	store       ExpenseStore
	profiles    ProfileStore
	media       MediaStore
	categorizer categorize.Categorizer
	publisher   EventPublisher
	notifier    Notifier
}

// ExpenseServiceDeps groups the collaborators of ExpenseService. Publisher
// and Notifier are optional.
type ExpenseServiceDeps struct {
	Store       ExpenseStore
	Profiles    ProfileStore
	Media       MediaStore
	Categorizer categorize.Categorizer
	Publisher   EventPublisher
	Notifier    Notifier
}

func NewExpenseService(d ExpenseServiceDeps) *ExpenseService {
	return &ExpenseService{
		store:       d.Store,
		profiles:    d.Profiles,
		media:       d.Media,
		categorizer: d.Categorizer,
		publisher:   d.Publisher,
		notifier:    d.Notifier,
	}
}

// CreateInput is a validated new expense. RoomID is the author's current
// room.
type CreateInput struct {
	UserID  string
	RoomID  string
	Draft   core.ExpenseDraft
	Receipt *media.File
}

// UpdateInput is a validated edit. RemoveImage asks for the attached
// receipt to be dropped when no new Receipt is given.
type UpdateInput struct {
	ID          int64
	UserID      string
	Draft       core.ExpenseDraft
	Receipt     *media.File
	RemoveImage bool
}

// Create categorizes and stores a new expense. A categorization failure
// aborts the operation before anything is written.
func (s *ExpenseService) Create(ctx context.Context, in CreateInput) (core.Expense, error) {
	if in.RoomID == "" {
		return core.Expense{}, core.ErrNotInRoom
	}

	res, err := s.categorizer.Categorize(ctx, in.Draft.Shop, in.Draft.Items)
	if err != nil {
		slog.ErrorContext(ctx, "Categorization failed, expense not created",
			log.FieldComponent, log.ComponentExpense, log.FieldUserID, in.UserID, log.FieldError, err)
		return core.Expense{}, asCategorizationError(err)
	}

	e := core.Expense{
		UserID:   in.UserID,
		RoomID:   in.RoomID,
		Date:     in.Draft.Date,
		Shop:     strings.TrimSpace(in.Draft.Shop),
		Items:    strings.TrimSpace(in.Draft.Items),
		Cost:     in.Draft.Cost,
		Category: categoryOr(res.Category, core.Uncategorized),
	}

	if in.Receipt != nil {
		obj, err := s.media.Store(ctx, in.UserID, *in.Receipt)
		if err != nil {
			return core.Expense{}, err
		}
		e.ImageURL, e.ImagePath = obj.URL, obj.Path
	}

	saved, err := s.store.CreateExpense(ctx, e)
	if err != nil {
		s.orphan(ctx, e.ImagePath, in.UserID, "create failed", true)
		return core.Expense{}, &core.PersistenceError{Op: "save", Err: err}
	}

	slog.InfoContext(ctx, "Expense created", log.NewFields().
		WithComponent(log.ComponentExpense).
		WithOperation(log.OpCreate).
		WithExpense(saved.ID, saved.UserID, saved.RoomID, saved.Cost.Cents, saved.Category).
		ToSlice()...)

	s.announce(ctx, amqp.EventCreated, saved)
	return saved, nil
}

// Update rewrites an expense owned by in.UserID. The category is
// recomputed; if that fails the stored category is kept.
func (s *ExpenseService) Update(ctx context.Context, in UpdateInput) (core.Expense, error) {
	existing, err := s.store.GetExpense(ctx, in.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load expense %d: %w", in.ID, err)
	}
	if existing.UserID != in.UserID {
		return core.Expense{}, core.ErrForbidden
	}

	category := categoryOr(existing.Category, core.Uncategorized)
	if res, err := s.categorizer.Categorize(ctx, in.Draft.Shop, in.Draft.Items); err != nil {
		slog.WarnContext(ctx, "Categorization failed during update, keeping previous category",
			log.FieldComponent, log.ComponentExpense, log.FieldExpenseID, in.ID,
			log.FieldCategory, category, log.FieldError, err)
	} else {
		category = categoryOr(res.Category, category)
	}

	updated := existing
	updated.Date = in.Draft.Date
	updated.Shop = strings.TrimSpace(in.Draft.Shop)
	updated.Items = strings.TrimSpace(in.Draft.Items)
	updated.Cost = in.Draft.Cost
	updated.Category = category

	newPath := ""
	switch {
	case in.Receipt != nil:
		if existing.HasImage() {
			s.removeBestEffort(ctx, existing.ImagePath)
		}
		obj, err := s.media.Store(ctx, in.UserID, *in.Receipt)
		if err != nil {
			return core.Expense{}, err
		}
		updated.ImageURL, updated.ImagePath = obj.URL, obj.Path
		newPath = obj.Path
	case in.RemoveImage && existing.HasImage():
		s.removeBestEffort(ctx, existing.ImagePath)
		updated.ImageURL, updated.ImagePath = "", ""
	}

	saved, err := s.store.UpdateExpense(ctx, updated)
	if err != nil {
		s.orphan(ctx, newPath, in.UserID, "update failed", true)
		return core.Expense{}, &core.PersistenceError{Op: "update", Err: err}
	}

	slog.InfoContext(ctx, "Expense updated", log.NewFields().
		WithComponent(log.ComponentExpense).
		WithOperation(log.OpUpdate).
		WithExpense(saved.ID, saved.UserID, saved.RoomID, saved.Cost.Cents, saved.Category).
		ToSlice()...)

	s.announce(ctx, amqp.EventUpdated, saved)
	return saved, nil
}

// Remove deletes an expense and its receipt. The image goes first; if that
// fails for any reason other than absence, the record is kept. Removing an
// expense that no longer exists succeeds, and still clears imagePath when
// the caller owns it.
func (s *ExpenseService) Remove(ctx context.Context, userID string, id int64, imagePath string) error {
	existing, err := s.store.GetExpense(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		if imagePath != "" && media.OwnedBy(imagePath, userID) {
			return s.media.Remove(ctx, imagePath)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("load expense %d: %w", id, err)
	}
	if existing.UserID != userID {
		return core.ErrForbidden
	}

	if existing.HasImage() {
		if err := s.media.Remove(ctx, existing.ImagePath); err != nil {
			return err
		}
	}

	if err := s.store.DeleteExpense(ctx, id); err != nil && !errors.Is(err, core.ErrNotFound) {
		return &core.PersistenceError{Op: "delete", Err: err}
	}

	slog.InfoContext(ctx, "Expense deleted", log.NewFields().
		WithComponent(log.ComponentExpense).
		WithOperation(log.OpDelete).
		WithExpense(existing.ID, existing.UserID, existing.RoomID, existing.Cost.Cents, existing.Category).
		ToSlice()...)

	s.announce(ctx, amqp.EventDeleted, existing)
	return nil
}

// Get returns an expense readable by userID, i.e. one billed to their room.
func (s *ExpenseService) Get(ctx context.Context, userID string, id int64) (core.Expense, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("load profile: %w", err)
	}
	e, err := s.store.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	if !p.InRoom() || e.RoomID != p.RoomID {
		return core.Expense{}, core.ErrForbidden
	}
	return e, nil
}

// ListOptions controls the table view.
type ListOptions struct {
	Sort  core.SortKey
	Desc  bool
	Users []string
}

// ListResult is the table view of a room.
type ListResult struct {
	RoomID   string
	Expenses []core.Expense
	Roster   []core.UserProfile
	Total    core.Money
}

// List returns the expenses of userID's room, filtered and sorted.
func (s *ExpenseService) List(ctx context.Context, userID string, opts ListOptions) (ListResult, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return ListResult{}, fmt.Errorf("load profile: %w", err)
	}
	if !p.InRoom() {
		return ListResult{}, core.ErrNotInRoom
	}
	expenses, err := s.store.ListExpensesByRoom(ctx, p.RoomID)
	if err != nil {
		return ListResult{}, fmt.Errorf("list expenses: %w", err)
	}
	roster, err := s.profiles.ListRoster(ctx, p.RoomID)
	if err != nil {
		return ListResult{}, fmt.Errorf("list roster: %w", err)
	}

	expenses = core.FilterByUsers(expenses, opts.Users)
	core.SortExpenses(expenses, opts.Sort, opts.Desc, roster)
	return ListResult{
		RoomID:   p.RoomID,
		Expenses: expenses,
		Roster:   roster,
		Total:    core.SumCost(expenses),
	}, nil
}

func (s *ExpenseService) removeBestEffort(ctx context.Context, path string) {
	if err := s.media.Remove(ctx, path); err != nil {
		slog.WarnContext(ctx, "Failed to delete previous receipt image",
			log.FieldComponent, log.ComponentExpense, log.FieldImagePath, path, log.FieldError, err)
		s.orphan(ctx, path, "", "replaced image delete failed", false)
	}
}

// orphan queues a stored receipt for deletion by the worker. When the
// message cannot be sent and retryInline is set, the delete is tried here.
func (s *ExpenseService) orphan(ctx context.Context, path, ownerID, reason string, retryInline bool) {
	if path == "" {
		return
	}
	if s.publisher != nil {
		err := s.publisher.PublishReceiptOrphan(ctx, amqp.NewReceiptOrphan(path, ownerID, reason))
		if err == nil {
			return
		}
		slog.ErrorContext(ctx, "Failed to publish receipt orphan",
			log.FieldComponent, log.ComponentExpense, log.FieldImagePath, path, log.FieldError, err)
	}
	if !retryInline {
		return
	}
	if err := s.media.Remove(ctx, path); err != nil {
		slog.ErrorContext(ctx, "Orphaned receipt left in storage",
			log.FieldComponent, log.ComponentExpense, log.FieldImagePath, path, log.FieldError, err)
	}
}

func (s *ExpenseService) announce(ctx context.Context, kind amqp.EventKind, e core.Expense) {
	if s.publisher != nil {
		if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(kind, e.ID, e.RoomID, e.UserID)); err != nil {
			slog.ErrorContext(ctx, "Failed to publish expense event",
				log.FieldComponent, log.ComponentExpense, log.FieldExpenseID, e.ID, log.FieldError, err)
		}
	}
	if s.notifier != nil {
		if err := s.notifier.Notify(ctx, e.RoomID); err != nil {
			slog.WarnContext(ctx, "Failed to notify room subscribers",
				log.FieldComponent, log.ComponentExpense, log.FieldRoomID, e.RoomID, log.FieldError, err)
		}
	}
}

func asCategorizationError(err error) error {
	var ce *core.CategorizationError
	if errors.As(err, &ce) {
		return err
	}
	return &core.CategorizationError{Auth: strings.Contains(err.Error(), "API key"), Err: err}
}

func categoryOr(c, fallback string) string {
	if c = strings.TrimSpace(c); c != "" {
		return c
	}
	return fallback
}
