package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"roomsplit/internal/core"
)

const profileColumns = `user_id, name, email, room_id, avatar_url, monthly_budget_cents,
	category_budgets, created_at, updated_at`

func scanProfile(s rowScanner) (core.UserProfile, error) {
	var (
		p                core.UserProfile
		roomID           sql.NullString
		budgets          string
		created, updated int64
	)
	if err := s.Scan(&p.UserID, &p.Name, &p.Email, &roomID, &p.AvatarURL, &p.MonthlyBudget.Cents,
		&budgets, &created, &updated); err != nil {
		return core.UserProfile{}, err
	}
	p.RoomID = roomID.String
	cb, err := decodeBudgets(budgets)
	if err != nil {
		return core.UserProfile{}, err
	}
	p.CategoryBudgets = cb
	p.CreatedAt = fromUnix(created)
	p.UpdatedAt = fromUnix(updated)
	return p, nil
}

func encodeBudgets(m map[string]core.Money) (string, error) {
	raw := make(map[string]int64, len(m))
	for k, v := range m {
		raw[k] = v.Cents
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("encode category budgets: %w", err)
	}
	return string(b), nil
}

func decodeBudgets(s string) (map[string]core.Money, error) {
	if s == "" {
		return nil, nil
	}
	var raw map[string]int64
	if err := json.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("decode category budgets: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	out := make(map[string]core.Money, len(raw))
	for k, v := range raw {
		out[k] = core.Money{Cents: v}
	}
	return out, nil
}

func (r *SQLiteRepository) GetProfile(ctx context.Context, userID string) (core.UserProfile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users_profiles WHERE user_id = ?`, userID)
	p, err := scanProfile(row)
	if err != nil {
		return core.UserProfile{}, notFound(err)
	}
	return p, nil
}

// SetRoom sets the profile's room. An empty roomID clears it.
func (r *SQLiteRepository) SetRoom(ctx context.Context, userID, roomID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users_profiles SET room_id = ?, updated_at = ? WHERE user_id = ?`,
		nullString(roomID), unix(r.now()), userID)
	if err != nil {
		return fmt.Errorf("set room for %s: %w", userID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UpdateProfile merges the non-nil fields of upd into the stored profile
// and returns the result.
func (r *SQLiteRepository) UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.UserProfile, error) {
	var out core.UserProfile
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM users_profiles WHERE user_id = ?`, userID)
		p, err := scanProfile(row)
		if err != nil {
			return notFound(err)
		}
		if upd.Name != nil {
			p.Name = *upd.Name
		}
		if upd.AvatarURL != nil {
			p.AvatarURL = *upd.AvatarURL
		}
		if upd.MonthlyBudget != nil {
			p.MonthlyBudget = *upd.MonthlyBudget
		}
		if upd.CategoryBudgets != nil {
			p.CategoryBudgets = upd.CategoryBudgets
		}
		budgets, err := encodeBudgets(p.CategoryBudgets)
		if err != nil {
			return err
		}
		now := r.now()
		if _, err := tx.ExecContext(ctx, `
			UPDATE users_profiles
			SET name = ?, avatar_url = ?, monthly_budget_cents = ?, category_budgets = ?, updated_at = ?
			WHERE user_id = ?`,
			p.Name, p.AvatarURL, p.MonthlyBudget.Cents, budgets, unix(now), userID); err != nil {
			return fmt.Errorf("update profile %s: %w", userID, err)
		}
		p.UpdatedAt = fromUnix(unix(now))
		if len(p.CategoryBudgets) == 0 {
			p.CategoryBudgets = nil
		}
		out = p
		return nil
	})
	return out, err
}

// ListRoster returns the members of a room ordered by name.
func (r *SQLiteRepository) ListRoster(ctx context.Context, roomID string) ([]core.UserProfile, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM users_profiles
		WHERE room_id = ? ORDER BY name COLLATE NOCASE, user_id`, roomID)
	if err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	defer rows.Close()

	var out []core.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
