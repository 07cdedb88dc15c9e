package http

import (
	"time"

	"roomsplit/internal/core"
	"roomsplit/internal/services"
)

type expenseView struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"userId"`
	RoomID    string    `json:"roomId"`
	Date      string    `json:"date"`
	Shop      string    `json:"shop"`
	Items     string    `json:"items"`
	Cost      float64   `json:"cost"`
	CostCents int64     `json:"costCents"`
	Category  string    `json:"category"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	ImagePath string    `json:"imagePath,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func toExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:        e.ID,
		UserID:    e.UserID,
		RoomID:    e.RoomID,
		Date:      e.Date.String(),
		Shop:      e.Shop,
		Items:     e.Items,
		Cost:      e.Cost.Amount(),
		CostCents: e.Cost.Cents,
		Category:  e.Category,
		ImageURL:  e.ImageURL,
		ImagePath: e.ImagePath,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func toExpenseViews(es []core.Expense) []expenseView {
	out := make([]expenseView, 0, len(es))
	for _, e := range es {
		out = append(out, toExpenseView(e))
	}
	return out
}

type profileView struct {
	UserID          string             `json:"userId"`
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	RoomID          *string            `json:"roomId"`
	AvatarURL       string             `json:"avatarUrl,omitempty"`
	MonthlyBudget   float64            `json:"monthlyBudget"`
	CategoryBudgets map[string]float64 `json:"categoryBudgets,omitempty"`
}

func toProfileView(p core.UserProfile) profileView {
	v := profileView{
		UserID:        p.UserID,
		Name:          p.Name,
		Email:         p.Email,
		AvatarURL:     p.AvatarURL,
		MonthlyBudget: p.MonthlyBudget.Amount(),
	}
	if p.InRoom() {
		room := p.RoomID
		v.RoomID = &room
	}
	if len(p.CategoryBudgets) > 0 {
		v.CategoryBudgets = make(map[string]float64, len(p.CategoryBudgets))
		for c, m := range p.CategoryBudgets {
			v.CategoryBudgets[c] = m.Amount()
		}
	}
	return v
}

// memberView is what room mates see of each other.
type memberView struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func toMemberViews(roster []core.UserProfile) []memberView {
	out := make([]memberView, 0, len(roster))
	for _, p := range roster {
		out = append(out, memberView{UserID: p.UserID, Name: p.Name, AvatarURL: p.AvatarURL})
	}
	return out
}

type listView struct {
	RoomID   string        `json:"roomId"`
	Total    float64       `json:"total"`
	Expenses []expenseView `json:"expenses"`
	Members  []memberView  `json:"members"`
}

type userTotalView struct {
	UserID string  `json:"userId"`
	Name   string  `json:"name"`
	Total  float64 `json:"total"`
}

type categoryTotalView struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
}

type categoryProgressView struct {
	Category string  `json:"category"`
	Spent    float64 `json:"spent"`
	Budget   float64 `json:"budget"`
	Percent  float64 `json:"percent"`
}

type dashboardView struct {
	RoomID          string                 `json:"roomId"`
	Reference       string                 `json:"reference"`
	Total           float64                `json:"total"`
	ByUser          []userTotalView        `json:"byUser"`
	ByCategory      []categoryTotalView    `json:"byCategory"`
	RoomMonthToDate float64                `json:"roomMonthToDate"`
	MyMonthToDate   float64                `json:"myMonthToDate"`
	MonthlyBudget   float64                `json:"monthlyBudget"`
	BudgetPercent   float64                `json:"budgetPercent"`
	CategoryBudgets []categoryProgressView `json:"categoryBudgets"`
}

func toDashboardView(d services.Dashboard) dashboardView {
	v := dashboardView{
		RoomID:          d.RoomID,
		Reference:       d.Reference.String(),
		Total:           d.Total.Amount(),
		ByUser:          make([]userTotalView, 0, len(d.ByUser)),
		ByCategory:      make([]categoryTotalView, 0, len(d.ByCategory)),
		RoomMonthToDate: d.RoomMonthToDate.Amount(),
		MyMonthToDate:   d.MyMonthToDate.Amount(),
		MonthlyBudget:   d.MonthlyBudget.Amount(),
		BudgetPercent:   d.BudgetPercent,
		CategoryBudgets: make([]categoryProgressView, 0, len(d.CategoryBudgets)),
	}
	for _, u := range d.ByUser {
		v.ByUser = append(v.ByUser, userTotalView{UserID: u.UserID, Name: u.Name, Total: u.Total.Amount()})
	}
	for _, c := range d.ByCategory {
		v.ByCategory = append(v.ByCategory, categoryTotalView{Category: c.Category, Total: c.Total.Amount()})
	}
	for _, c := range d.CategoryBudgets {
		v.CategoryBudgets = append(v.CategoryBudgets, categoryProgressView{
			Category: c.Category, Spent: c.Spent.Amount(), Budget: c.Budget.Amount(), Percent: c.Percent,
		})
	}
	return v
}

type snapshotView struct {
	RoomID   string        `json:"roomId"`
	Version  uint64        `json:"version"`
	Expenses []expenseView `json:"expenses"`
}
