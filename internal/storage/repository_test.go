package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"roomsplit/internal/core"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo *SQLiteRepository
	ctx  context.Context
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(filepath.Join(s.T().TempDir(), "data", "test.db"))
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) signUp(id, name, email string) {
	err := s.repo.CreateAccount(s.ctx,
		core.Account{UserID: id, Email: email, PasswordHash: "hash"},
		core.UserProfile{UserID: id, Name: name, Email: email})
	require.NoError(s.T(), err)
}

func (s *RepositoryTestSuite) newExpense(user, room string, d core.Date, cents int64) core.Expense {
	e, err := s.repo.CreateExpense(s.ctx, core.Expense{
		UserID: user, RoomID: room, Date: d, Shop: "SuperMart", Items: "milk, bread",
		Cost: core.Money{Cents: cents}, Category: "Groceries",
	})
	require.NoError(s.T(), err)
	return e
}

func (s *RepositoryTestSuite) TestExpenseLifecycle() {
	created := s.newExpense("u1", "room-aaaa", core.NewDate(2025, 5, 2), 1250)
	assert.NotZero(s.T(), created.ID)

	got, err := s.repo.GetExpense(s.ctx, created.ID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Groceries", got.Category)
	assert.Equal(s.T(), int64(1250), got.Cost.Cents)
	assert.Equal(s.T(), core.NewDate(2025, 5, 2), got.Date)
	assert.False(s.T(), got.HasImage())

	got.Shop = "Corner Shop"
	got.ImageURL = "http://x/receipts/u1/1_a.jpg"
	got.ImagePath = "receipts/u1/1_a.jpg"
	updated, err := s.repo.UpdateExpense(s.ctx, got)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Corner Shop", updated.Shop)
	assert.Equal(s.T(), "receipts/u1/1_a.jpg", updated.ImagePath)

	require.NoError(s.T(), s.repo.DeleteExpense(s.ctx, created.ID))
	_, err = s.repo.GetExpense(s.ctx, created.ID)
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	assert.ErrorIs(s.T(), s.repo.DeleteExpense(s.ctx, created.ID), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestEmptyCategoryRejected() {
	_, err := s.repo.CreateExpense(s.ctx, core.Expense{
		UserID: "u1", RoomID: "r", Date: core.NewDate(2025, 1, 1), Shop: "ab", Items: "abc",
		Cost: core.Money{Cents: 1},
	})
	assert.Error(s.T(), err)
}

func (s *RepositoryTestSuite) TestListByRoom() {
	s.newExpense("u1", "room-a", core.NewDate(2025, 4, 30), 100)
	s.newExpense("u2", "room-a", core.NewDate(2025, 5, 3), 200)
	s.newExpense("u1", "room-b", core.NewDate(2025, 5, 4), 300)

	all, err := s.repo.ListExpensesByRoom(s.ctx, "room-a")
	require.NoError(s.T(), err)
	require.Len(s.T(), all, 2)
	assert.Equal(s.T(), core.NewDate(2025, 5, 3), all[0].Date)

	mine, err := s.repo.ListExpensesByUser(s.ctx, "u1")
	require.NoError(s.T(), err)
	require.Len(s.T(), mine, 2)
	assert.Equal(s.T(), "room-b", mine[0].RoomID)

	rooms, err := s.repo.ListRooms(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), []string{"room-a", "room-b"}, rooms)
}

func (s *RepositoryTestSuite) TestProfileRoomAndUpdate() {
	s.signUp("u1", "Alice", "alice@example.com")
	s.signUp("u2", "bob", "bob@example.com")

	p, err := s.repo.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.False(s.T(), p.InRoom())

	require.NoError(s.T(), s.repo.SetRoom(s.ctx, "u1", "room-xyz123"))
	require.NoError(s.T(), s.repo.SetRoom(s.ctx, "u2", "room-xyz123"))
	roster, err := s.repo.ListRoster(s.ctx, "room-xyz123")
	require.NoError(s.T(), err)
	require.Len(s.T(), roster, 2)
	assert.Equal(s.T(), "Alice", roster[0].Name)

	name := "Alicia"
	budget := core.Money{Cents: 50000}
	upd, err := s.repo.UpdateProfile(s.ctx, "u1", core.ProfileUpdate{
		Name:            &name,
		MonthlyBudget:   &budget,
		CategoryBudgets: map[string]core.Money{"Groceries": {Cents: 20000}},
	})
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Alicia", upd.Name)
	assert.Equal(s.T(), "room-xyz123", upd.RoomID)

	again, err := s.repo.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(50000), again.MonthlyBudget.Cents)
	assert.Equal(s.T(), int64(20000), again.CategoryBudgets["Groceries"].Cents)

	require.NoError(s.T(), s.repo.SetRoom(s.ctx, "u1", ""))
	p, err = s.repo.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Empty(s.T(), p.RoomID)

	assert.ErrorIs(s.T(), s.repo.SetRoom(s.ctx, "ghost", "room-1"), core.ErrNotFound)
	_, err = s.repo.UpdateProfile(s.ctx, "ghost", core.ProfileUpdate{Name: &name})
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestAccountsAndEmail() {
	s.signUp("u1", "Alice", "alice@example.com")

	err := s.repo.CreateAccount(s.ctx,
		core.Account{UserID: "u9", Email: "ALICE@example.com", PasswordHash: "h"},
		core.UserProfile{UserID: "u9", Name: "Other", Email: "ALICE@example.com"})
	assert.ErrorIs(s.T(), err, core.ErrEmailTaken)

	acct, err := s.repo.GetAccountByEmail(s.ctx, "Alice@Example.com")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "u1", acct.UserID)

	require.NoError(s.T(), s.repo.UpdatePasswordHash(s.ctx, "u1", "new-hash"))
	acct, err = s.repo.GetAccount(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new-hash", acct.PasswordHash)

	s.signUp("u2", "Bob", "bob@example.com")
	assert.ErrorIs(s.T(), s.repo.UpdateEmail(s.ctx, "u1", "bob@example.com"), core.ErrEmailTaken)
	require.NoError(s.T(), s.repo.UpdateEmail(s.ctx, "u1", "alice@new.example"))
	p, err := s.repo.GetProfile(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "alice@new.example", p.Email)
}

func (s *RepositoryTestSuite) TestSessions() {
	s.signUp("u1", "Alice", "alice@example.com")
	now := time.Now()
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{Token: "t1", UserID: "u1", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{Token: "t2", UserID: "u1", ExpiresAt: now.Add(-time.Hour)}))

	sess, err := s.repo.GetSession(s.ctx, "t1")
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "u1", sess.UserID)

	n, err := s.repo.CleanExpiredSessions(s.ctx)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), int64(1), n)
	_, err = s.repo.GetSession(s.ctx, "t2")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)

	require.NoError(s.T(), s.repo.DeleteSession(s.ctx, "t1"))
	_, err = s.repo.GetSession(s.ctx, "t1")
	assert.True(s.T(), errors.Is(err, core.ErrNotFound))
}

func (s *RepositoryTestSuite) TestDeleteUser() {
	s.signUp("u1", "Alice", "alice@example.com")
	require.NoError(s.T(), s.repo.CreateSession(s.ctx, core.Session{Token: "t1", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}))
	s.newExpense("u1", "room-a", core.NewDate(2025, 1, 1), 100)
	s.newExpense("u2", "room-a", core.NewDate(2025, 1, 1), 100)

	deleted, err := s.repo.DeleteUser(s.ctx, "u1")
	require.NoError(s.T(), err)
	assert.Len(s.T(), deleted, 1)

	_, err = s.repo.GetProfile(s.ctx, "u1")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	_, err = s.repo.GetSession(s.ctx, "t1")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
	left, err := s.repo.ListExpensesByRoom(s.ctx, "room-a")
	require.NoError(s.T(), err)
	assert.Len(s.T(), left, 1)

	_, err = s.repo.DeleteUser(s.ctx, "u1")
	assert.ErrorIs(s.T(), err, core.ErrNotFound)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}
