package http

import (
	"net/http"
	"strings"

	"roomsplit/internal/core"
)

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) error {
	p, err := s.deps.Profiles.Profile(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProfileView(p))
}

// updateProfileRequest is a partial edit; absent fields stay as they are.
type updateProfileRequest struct {
	Name            *string                `json:"name"`
	AvatarURL       *string                `json:"avatarUrl"`
	MonthlyBudget   *amountField           `json:"monthlyBudget"`
	CategoryBudgets map[string]amountField `json:"categoryBudgets"`
}

func (req updateProfileRequest) toUpdate() (core.ProfileUpdate, error) {
	var upd core.ProfileUpdate
	if req.Name != nil {
		name := sanitizeInput(*req.Name)
		if err := core.ValidateName(name); err != nil {
			return upd, err
		}
		upd.Name = &name
	}
	if req.AvatarURL != nil {
		u := strings.TrimSpace(*req.AvatarURL)
		upd.AvatarURL = &u
	}
	if req.MonthlyBudget != nil {
		m, err := req.MonthlyBudget.budget("monthlyBudget")
		if err != nil {
			return upd, err
		}
		upd.MonthlyBudget = &m
	}
	if req.CategoryBudgets != nil {
		upd.CategoryBudgets = make(map[string]core.Money, len(req.CategoryBudgets))
		for cat, raw := range req.CategoryBudgets {
			m, err := raw.budget("categoryBudgets")
			if err != nil {
				return upd, err
			}
			upd.CategoryBudgets[strings.TrimSpace(cat)] = m
		}
	}
	if err := core.ValidateBudgets(upd.MonthlyBudget, upd.CategoryBudgets); err != nil {
		return upd, err
	}
	return upd, nil
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) error {
	var req updateProfileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	upd, err := req.toUpdate()
	if err != nil {
		return err
	}
	p, err := s.deps.Profiles.UpdateProfile(r.Context(), userIDFrom(r.Context()), upd)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProfileView(p))
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := parseForm(r); err != nil {
		return err
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	f, err := imageUpload(r, avatarFormField)
	if err != nil {
		return err
	}
	if f == nil {
		return &core.ValidationError{Field: avatarFormField, Message: "choose an image to upload"}
	}
	defer f.close()

	p, err := s.deps.Profiles.UpdateAvatar(r.Context(), userIDFrom(r.Context()), f.File)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toProfileView(p))
}

type roomView struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) error {
	roomID, err := s.deps.Profiles.CreateRoom(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusCreated, roomView{RoomID: roomID})
}

type joinRoomRequest struct {
	RoomID string `json:"roomId"`
}

func (s *Server) handleJoinRoom(w http.ResponseWriter, r *http.Request) error {
	var req joinRoomRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return err
	}
	roomID := strings.TrimSpace(req.RoomID)
	if err := core.ValidateRoomID(roomID); err != nil {
		return err
	}
	if err := s.deps.Profiles.Join(r.Context(), userIDFrom(r.Context()), roomID); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, roomView{RoomID: roomID})
}

func (s *Server) handleLeaveRoom(w http.ResponseWriter, r *http.Request) error {
	if err := s.deps.Profiles.Leave(r.Context(), userIDFrom(r.Context())); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) error {
	roster, err := s.deps.Profiles.Roster(r.Context(), userIDFrom(r.Context()))
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, toMemberViews(roster))
}
