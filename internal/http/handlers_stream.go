package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"roomsplit/internal/core"
	"roomsplit/internal/live"
	"roomsplit/internal/log"
)

// handleStream pushes the full expense list of the caller's room as
// Server-Sent Events: one "snapshot" event on connect and one per change.
// Snapshots that arrive while the client is slow replace each other, so
// only the newest is written. The stream ends once the caller is no longer
// a member of the room it was opened for.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	p, err := s.deps.Profiles.Profile(ctx, userIDFrom(ctx))
	if err != nil {
		return err
	}
	if !p.InRoom() {
		return core.ErrNotInRoom
	}

	updates := make(chan live.Snapshot, 1)
	unsubscribe := s.deps.Snapshots.Subscribe(p.RoomID, func(snap live.Snapshot) {
		offerLatest(updates, snap)
	})
	defer unsubscribe()

	initial, err := s.deps.Snapshots.Current(ctx, p.RoomID)
	if err != nil {
		return err
	}

	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-store")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	logger := log.FromContext(ctx)
	userID := userIDFrom(ctx)
	roomID := p.RoomID
	member := func() bool {
		cur, err := s.deps.Profiles.Profile(ctx, userID)
		if err != nil {
			logger.DebugContext(ctx, "Event stream membership check failed", log.FieldError, err)
			return false
		}
		return cur.RoomID == roomID
	}

	var last uint64
	send := func(snap live.Snapshot) error {
		if snap.Version <= last {
			return nil
		}
		last = snap.Version
		data, err := json.Marshal(snapshotView{
			RoomID:   snap.RoomID,
			Version:  snap.Version,
			Expenses: toExpenseViews(snap.Expenses),
		})
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", snap.Version, data); err != nil {
			return err
		}
		return rc.Flush()
	}

	if err := send(initial); err != nil {
		logger.DebugContext(ctx, "Event stream closed", log.FieldError, err)
		return nil
	}
	logger.DebugContext(ctx, "Event stream opened", log.FieldRoomID, p.RoomID)

	ticker := time.NewTicker(s.opts.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if !member() {
				logger.DebugContext(ctx, "Event stream closed, user left room", log.FieldRoomID, roomID)
				return nil
			}
			if err := send(snap); err != nil {
				logger.DebugContext(ctx, "Event stream closed", log.FieldError, err)
				return nil
			}
		case <-ticker.C:
			if !member() {
				logger.DebugContext(ctx, "Event stream closed, user left room", log.FieldRoomID, roomID)
				return nil
			}
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return nil
			}
			if err := rc.Flush(); err != nil {
				return nil
			}
		}
	}
}

// offerLatest puts snap in the single-slot channel, keeping whichever of
// the queued and the new snapshot is newer.
func offerLatest(ch chan live.Snapshot, snap live.Snapshot) {
	for {
		select {
		case ch <- snap:
			return
		default:
		}
		select {
		case queued := <-ch:
			if queued.Version > snap.Version {
				snap = queued
			}
		default:
		}
	}
}
