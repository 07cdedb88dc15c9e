package services

import (
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"roomsplit/internal/core"
	"roomsplit/internal/log"
	"roomsplit/internal/media"
)

// ProfileService manages profiles and room membership.
type ProfileService struct {
	store    ProfileStore
	media    MediaStore
	notifier Notifier
}

func NewProfileService(store ProfileStore, m MediaStore, n Notifier) *ProfileService {
	return &ProfileService{store: store, media: m, notifier: n}
}

func (s *ProfileService) Profile(ctx context.Context, userID string) (core.UserProfile, error) {
	return s.store.GetProfile(ctx, userID)
}

// Join moves the user into roomID. Rooms are just shared keys, so any id
// is accepted.
func (s *ProfileService) Join(ctx context.Context, userID, roomID string) error {
	roomID = strings.TrimSpace(roomID)
	prev, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := s.store.SetRoom(ctx, userID, roomID); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	slog.InfoContext(ctx, "User joined room",
		log.FieldComponent, log.ComponentProfile, log.FieldOperation, log.OpJoin,
		log.FieldUserID, userID, log.FieldRoomID, roomID)

	if prev.InRoom() && prev.RoomID != roomID {
		s.notify(ctx, prev.RoomID)
	}
	s.notify(ctx, roomID)
	return nil
}

// Leave clears the user's room.
func (s *ProfileService) Leave(ctx context.Context, userID string) error {
	prev, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	if err := s.store.SetRoom(ctx, userID, ""); err != nil {
		return fmt.Errorf("leave room: %w", err)
	}
	slog.InfoContext(ctx, "User left room",
		log.FieldComponent, log.ComponentProfile, log.FieldOperation, log.OpLeave,
		log.FieldUserID, userID, log.FieldRoomID, prev.RoomID)
	if prev.InRoom() {
		s.notify(ctx, prev.RoomID)
	}
	return nil
}

// CreateRoom generates a fresh room id and joins it.
func (s *ProfileService) CreateRoom(ctx context.Context, userID string) (string, error) {
	roomID := NewRoomID()
	if err := s.Join(ctx, userID, roomID); err != nil {
		return "", err
	}
	return roomID, nil
}

// UpdateProfile merges upd into the stored profile.
func (s *ProfileService) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.UserProfile, error) {
	p, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("update profile: %w", err)
	}
	slog.InfoContext(ctx, "Profile updated",
		log.FieldComponent, log.ComponentProfile, log.FieldOperation, log.OpUpdate, log.FieldUserID, userID)
	if p.InRoom() {
		s.notify(ctx, p.RoomID)
	}
	return p, nil
}

// UpdateAvatar uploads a profile picture and points the profile at it.
func (s *ProfileService) UpdateAvatar(ctx context.Context, userID string, f media.File) (core.UserProfile, error) {
	obj, err := s.media.StoreAvatar(ctx, userID, f)
	if err != nil {
		return core.UserProfile{}, err
	}
	return s.UpdateProfile(ctx, userID, core.ProfileUpdate{AvatarURL: &obj.URL})
}

// Roster lists the members of userID's room.
func (s *ProfileService) Roster(ctx context.Context, userID string) ([]core.UserProfile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if !p.InRoom() {
		return nil, core.ErrNotInRoom
	}
	return s.store.ListRoster(ctx, p.RoomID)
}

func (s *ProfileService) notify(ctx context.Context, roomID string) {
	if s.notifier == nil || roomID == "" {
		return
	}
	if err := s.notifier.Notify(ctx, roomID); err != nil {
		slog.WarnContext(ctx, "Failed to notify room subscribers",
			log.FieldComponent, log.ComponentProfile, log.FieldRoomID, roomID, log.FieldError, err)
	}
}

// NewRoomID returns "room-" followed by 8 base36 characters.
func NewRoomID() string {
	u := uuid.New()
	n := binary.BigEndian.Uint64(u[:8]) % 2821109907456 // 36^8
	s := strconv.FormatUint(n, 36)
	return "room-" + strings.Repeat("0", 8-len(s)) + s
}
