package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"roomsplit/internal/core"
)

const expenseColumns = `id, user_id, room_id, date, shop, items, cost_cents, category,
	image_url, image_path, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (core.Expense, error) {
	var (
		e                 core.Expense
		date              string
		imageURL, imgPath sql.NullString
		created, updated  int64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.RoomID, &date, &e.Shop, &e.Items, &e.Cost.Cents,
		&e.Category, &imageURL, &imgPath, &created, &updated); err != nil {
		return core.Expense{}, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", date, err)
	}
	e.Date = d
	e.ImageURL = imageURL.String
	e.ImagePath = imgPath.String
	e.CreatedAt = fromUnix(created)
	e.UpdatedAt = fromUnix(updated)
	return e, nil
}

// CreateExpense inserts e and returns it with its assigned id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO expenses (user_id, room_id, date, shop, items, cost_cents, category,
			image_url, image_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.UserID, e.RoomID, e.Date.String(), e.Shop, e.Items, e.Cost.Cents, e.Category,
		nullString(e.ImageURL), nullString(e.ImagePath), unix(now), unix(now))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now.UTC().Truncate(time.Second)
	e.UpdatedAt = e.CreatedAt

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", id, "room_id", e.RoomID, "user_id", e.UserID, "cost_cents", e.Cost.Cents, "category", e.Category)
	return e, nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id)
	e, err := scanExpense(row)
	if err != nil {
		return core.Expense{}, notFound(err)
	}
	return e, nil
}

// UpdateExpense overwrites the editable fields of the stored expense.
// Author and room never change.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		UPDATE expenses
		SET date = ?, shop = ?, items = ?, cost_cents = ?, category = ?,
			image_url = ?, image_path = ?, updated_at = ?
		WHERE id = ?`,
		e.Date.String(), e.Shop, e.Items, e.Cost.Cents, e.Category,
		nullString(e.ImageURL), nullString(e.ImagePath), unix(now), e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", e.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return r.GetExpense(ctx, e.ID)
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// ListExpensesByRoom returns the room's expenses, newest first.
func (r *SQLiteRepository) ListExpensesByRoom(ctx context.Context, roomID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE room_id = ? ORDER BY date DESC, id DESC`, roomID)
}

func (r *SQLiteRepository) ListExpensesByUser(ctx context.Context, userID string) ([]core.Expense, error) {
	return r.queryExpenses(ctx, `SELECT `+expenseColumns+` FROM expenses
		WHERE user_id = ? ORDER BY date DESC, id DESC`, userID)
}

// ListRooms returns every room id that has at least one expense or member.
func (r *SQLiteRepository) ListRooms(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT room_id FROM expenses
		UNION
		SELECT room_id FROM users_profiles WHERE room_id IS NOT NULL
		ORDER BY 1`)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) queryExpenses(ctx context.Context, q string, args ...any) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
