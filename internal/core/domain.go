package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// Uncategorized is the category stored when no better label is known.
const Uncategorized = "Uncategorized"

const (
	MinShopLength     = 2
	MinItemsLength    = 3
	MinNameLength     = 2
	MinRoomIDLength   = 6
	MinPasswordLength = 6
	// MaxPasswordLength is the bcrypt input limit in bytes.
	MaxPasswordLength = 72
	maxTextLength     = 200
)

type (
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Expense is a single purchase billed to a room.
	Expense struct {
		ID        int64
		UserID    string // author, immutable after create
		RoomID    string // immutable after create
		Date      Date
		Shop      string
		Items     string
		Cost      Money
		Category  string
		ImageURL  string
		ImagePath string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// ExpenseDraft holds the user-editable fields of an expense as they
	// arrive from a form.
	ExpenseDraft struct {
		Date  Date
		Shop  string
		Items string
		Cost  Money
	}

	// UserProfile is the per-user document. An empty RoomID means the user
	// has not joined a room yet.
	UserProfile struct {
		UserID          string
		Name            string
		Email           string
		RoomID          string
		AvatarURL       string
		MonthlyBudget   Money
		CategoryBudgets map[string]Money
		CreatedAt       time.Time
		UpdatedAt       time.Time
	}

	// ProfileUpdate carries a partial profile edit. Nil fields are left as
	// they are.
	ProfileUpdate struct {
		Name            *string
		AvatarURL       *string
		MonthlyBudget   *Money
		CategoryBudgets map[string]Money
	}
)

var (
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("forbidden")
	ErrNotInRoom          = errors.New("user has not joined a room")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already in use")
	ErrInvalidAmount      = errors.New("invalid amount")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, strings.TrimSpace(s))
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// MonthStart returns the first day of d's month.
func (d Date) MonthStart() Date {
	return NewDate(d.Year(), int(d.Month()), 1)
}

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// InRoom reports whether the profile belongs to a room.
func (p UserProfile) InRoom() bool {
	return p.RoomID != ""
}

// HasImage reports whether a receipt is attached.
func (e Expense) HasImage() bool {
	return e.ImagePath != ""
}

// Validate checks the form-level rules. It returns a *ValidationError
// naming the first offending field.
func (d ExpenseDraft) Validate() error {
	if d.Date.IsZero() {
		return &ValidationError{Field: "date", Message: "a purchase date is required"}
	}
	shop := strings.TrimSpace(d.Shop)
	if utf8.RuneCountInString(shop) < MinShopLength {
		return &ValidationError{Field: "shop", Message: "shop name must be at least 2 characters"}
	}
	if len(shop) > maxTextLength {
		return &ValidationError{Field: "shop", Message: "shop name too long (max 200 characters)"}
	}
	items := strings.TrimSpace(d.Items)
	if utf8.RuneCountInString(items) < MinItemsLength {
		return &ValidationError{Field: "items", Message: "items must be at least 3 characters"}
	}
	if len(items) > maxTextLength*5 {
		return &ValidationError{Field: "items", Message: "items too long (max 1000 characters)"}
	}
	if err := d.Cost.Validate(); err != nil {
		return &ValidationError{Field: "cost", Message: "cost must be at least 0.01"}
	}
	return nil
}

// ValidateName checks a display name.
func ValidateName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinNameLength {
		return &ValidationError{Field: "name", Message: "name must be at least 2 characters"}
	}
	return nil
}

// ValidateRoomID checks a room key typed by a user who wants to join it.
func ValidateRoomID(roomID string) error {
	if len(strings.TrimSpace(roomID)) < MinRoomIDLength {
		return &ValidationError{Field: "roomId", Message: "room ID must be at least 6 characters"}
	}
	return nil
}

// ValidatePassword checks a new password.
func ValidatePassword(pw string) error {
	if len(pw) < MinPasswordLength {
		return &ValidationError{Field: "password", Message: "password must be at least 6 characters"}
	}
	if len(pw) > MaxPasswordLength {
		return &ValidationError{Field: "password", Message: "password must be at most 72 bytes"}
	}
	return nil
}

// ValidateBudgets rejects negative budget values.
func ValidateBudgets(monthly *Money, byCategory map[string]Money) error {
	if monthly != nil && monthly.Cents < 0 {
		return &ValidationError{Field: "monthlyBudget", Message: "monthly budget cannot be negative"}
	}
	for cat, limit := range byCategory {
		if strings.TrimSpace(cat) == "" {
			return &ValidationError{Field: "categoryBudgets", Message: "category name cannot be empty"}
		}
		if limit.Cents < 0 {
			return &ValidationError{Field: "categoryBudgets", Message: "budget for " + cat + " cannot be negative"}
		}
	}
	return nil
}
