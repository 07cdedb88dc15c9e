package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"roomsplit/internal/core"
)

// CreateAccount inserts the account and its empty profile in one
// transaction. A duplicate email yields core.ErrEmailTaken.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, acct core.Account, profile core.UserProfile) error {
	now := unix(r.now())
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE email = ?`, acct.Email).Scan(&exists); err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists > 0 {
			return core.ErrEmailTaken
		}
		budgets, err := encodeBudgets(profile.CategoryBudgets)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users_profiles (user_id, name, email, room_id, avatar_url,
				monthly_budget_cents, category_budgets, created_at, updated_at)
			VALUES (?, ?, ?, NULL, ?, ?, ?, ?, ?)`,
			profile.UserID, profile.Name, profile.Email, profile.AvatarURL,
			profile.MonthlyBudget.Cents, budgets, now, now); err != nil {
			return fmt.Errorf("insert profile: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO accounts (user_id, email, password_hash, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)`,
			acct.UserID, acct.Email, acct.PasswordHash, now, now); err != nil {
			if strings.Contains(err.Error(), "UNIQUE") {
				return core.ErrEmailTaken
			}
			return fmt.Errorf("insert account: %w", err)
		}
		return nil
	})
}

func (r *SQLiteRepository) GetAccountByEmail(ctx context.Context, email string) (core.Account, error) {
	return r.getAccount(ctx, `SELECT user_id, email, password_hash, created_at FROM accounts WHERE email = ?`, email)
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, userID string) (core.Account, error) {
	return r.getAccount(ctx, `SELECT user_id, email, password_hash, created_at FROM accounts WHERE user_id = ?`, userID)
}

func (r *SQLiteRepository) getAccount(ctx context.Context, q string, arg string) (core.Account, error) {
	var (
		a       core.Account
		created int64
	)
	if err := r.db.QueryRowContext(ctx, q, arg).Scan(&a.UserID, &a.Email, &a.PasswordHash, &created); err != nil {
		return core.Account{}, notFound(err)
	}
	a.CreatedAt = fromUnix(created)
	return a, nil
}

func (r *SQLiteRepository) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ?, updated_at = ? WHERE user_id = ?`, hash, unix(r.now()), userID)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// UpdateEmail changes the login email and the profile's copy together.
func (r *SQLiteRepository) UpdateEmail(ctx context.Context, userID, email string) error {
	now := unix(r.now())
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var taken int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM accounts WHERE email = ? AND user_id <> ?`, email, userID).Scan(&taken); err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if taken > 0 {
			return core.ErrEmailTaken
		}
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET email = ?, updated_at = ? WHERE user_id = ?`, email, now, userID)
		if err != nil {
			return fmt.Errorf("update account email: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		if _, err := tx.ExecContext(ctx, `UPDATE users_profiles SET email = ?, updated_at = ? WHERE user_id = ?`, email, now, userID); err != nil {
			return fmt.Errorf("update profile email: %w", err)
		}
		return nil
	})
}

// DeleteUser removes the user's sessions, account, expenses and profile.
// It returns the expenses that were deleted so their receipts can be
// cleaned up by the caller.
func (r *SQLiteRepository) DeleteUser(ctx context.Context, userID string) ([]core.Expense, error) {
	owned, err := r.ListExpensesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	err = r.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM sessions WHERE user_id = ?`,
			`DELETE FROM accounts WHERE user_id = ?`,
			`DELETE FROM expenses WHERE user_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("delete user data: %w", err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users_profiles WHERE user_id = ?`, userID)
		if err != nil {
			return fmt.Errorf("delete profile: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "User deleted", "user_id", userID, "expenses", len(owned))
	return owned, nil
}

func (r *SQLiteRepository) CreateSession(ctx context.Context, s core.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		s.Token, s.UserID, unix(s.ExpiresAt), unix(r.now()))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns the session for token, expired or not.
func (r *SQLiteRepository) GetSession(ctx context.Context, token string) (core.Session, error) {
	var (
		s   core.Session
		exp int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT token, user_id, expires_at FROM sessions WHERE token = ?`, token).Scan(&s.Token, &s.UserID, &exp)
	if err != nil {
		return core.Session{}, notFound(err)
	}
	s.ExpiresAt = fromUnix(exp)
	return s, nil
}

func (r *SQLiteRepository) RenewSession(ctx context.Context, token string, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE sessions SET expires_at = ? WHERE token = ?`, unix(expiresAt), token)
	if err != nil {
		return fmt.Errorf("renew session: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions signs the user out everywhere except keep.
func (r *SQLiteRepository) DeleteUserSessions(ctx context.Context, userID, keep string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = ? AND token <> ?`, userID, keep); err != nil {
		return fmt.Errorf("delete user sessions: %w", err)
	}
	return nil
}

// CleanExpiredSessions removes every expired session and reports how many
// were dropped.
func (r *SQLiteRepository) CleanExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, unix(r.now()))
	if err != nil {
		return 0, fmt.Errorf("clean sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
