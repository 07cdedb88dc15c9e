package auth

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"roomsplit/internal/core"
	"roomsplit/internal/storage"
)

type AuthTestSuite struct {
	suite.Suite
	repo *storage.SQLiteRepository
	svc  *Service
	ctx  context.Context
}

func (s *AuthTestSuite) SetupTest() {
	repo, err := storage.NewSQLiteRepository(filepath.Join(s.T().TempDir(), "auth.db"))
	require.NoError(s.T(), err)
	s.repo = repo
	s.svc = NewService(repo, time.Hour)
	s.ctx = context.Background()
}

func (s *AuthTestSuite) TearDownTest() {
	s.repo.Close()
}

func (s *AuthTestSuite) TestSignUpCreatesRoomlessProfile() {
	sess, err := s.svc.SignUp(s.ctx, "Alice", " Alice@Example.com ", "secret1")
	require.NoError(s.T(), err)
	assert.Len(s.T(), sess.Token, 64)

	p, err := s.repo.GetProfile(s.ctx, sess.UserID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "Alice", p.Name)
	assert.Equal(s.T(), "alice@example.com", p.Email)
	assert.False(s.T(), p.InRoom())
}

func (s *AuthTestSuite) TestSignUpValidation() {
	_, err := s.svc.SignUp(s.ctx, "A", "a@example.com", "secret1")
	assert.True(s.T(), core.IsValidation(err))

	_, err = s.svc.SignUp(s.ctx, "Alice", "not-an-email", "secret1")
	assert.True(s.T(), core.IsValidation(err))

	_, err = s.svc.SignUp(s.ctx, "Alice", "a@example.com", "12345")
	assert.True(s.T(), core.IsValidation(err))

	_, err = s.svc.SignUp(s.ctx, "Alice", "a@example.com", strings.Repeat("x", core.MaxPasswordLength+1))
	assert.True(s.T(), core.IsValidation(err), "got %v", err)

	_, err = s.svc.SignUp(s.ctx, "Alice", "a@example.com", "secret1")
	require.NoError(s.T(), err)
	_, err = s.svc.SignUp(s.ctx, "Alice Two", "A@example.com", "secret1")
	assert.ErrorIs(s.T(), err, core.ErrEmailTaken)
}

func (s *AuthTestSuite) TestSignInAndOut() {
	_, err := s.svc.SignUp(s.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(s.T(), err)

	_, err = s.svc.SignIn(s.ctx, "alice@example.com", "wrong!!")
	assert.ErrorIs(s.T(), err, core.ErrInvalidCredentials)
	_, err = s.svc.SignIn(s.ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(s.T(), err, core.ErrInvalidCredentials)

	sess, err := s.svc.SignIn(s.ctx, "ALICE@example.com", "secret1")
	require.NoError(s.T(), err)

	got, renewed, err := s.svc.Authenticate(s.ctx, sess.Token)
	require.NoError(s.T(), err)
	assert.False(s.T(), renewed)
	assert.Equal(s.T(), sess.UserID, got.UserID)

	require.NoError(s.T(), s.svc.SignOut(s.ctx, sess.Token))
	_, _, err = s.svc.Authenticate(s.ctx, sess.Token)
	assert.ErrorIs(s.T(), err, core.ErrInvalidCredentials)
	assert.NoError(s.T(), s.svc.SignOut(s.ctx, sess.Token))
}

func (s *AuthTestSuite) TestRollingRenewal() {
	start := time.Now()
	s.svc.now = func() time.Time { return start }
	sess, err := s.svc.SignUp(s.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(s.T(), err)

	// past the halfway point
	s.svc.now = func() time.Time { return start.Add(40 * time.Minute) }
	got, renewed, err := s.svc.Authenticate(s.ctx, sess.Token)
	require.NoError(s.T(), err)
	assert.True(s.T(), renewed)
	assert.True(s.T(), got.ExpiresAt.After(sess.ExpiresAt))

	// beyond the renewed expiry
	s.svc.now = func() time.Time { return start.Add(3 * time.Hour) }
	_, _, err = s.svc.Authenticate(s.ctx, sess.Token)
	assert.ErrorIs(s.T(), err, core.ErrInvalidCredentials)
	_, err = s.repo.GetSession(s.ctx, sess.Token)
	assert.ErrorIs(s.T(), err, core.ErrNotFound, "expired session is dropped")
}

func (s *AuthTestSuite) TestChangePassword() {
	sess, err := s.svc.SignUp(s.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(s.T(), err)

	assert.ErrorIs(s.T(), s.svc.ChangePassword(s.ctx, sess.UserID, "bad", "newsecret"), core.ErrInvalidCredentials)
	assert.True(s.T(), core.IsValidation(s.svc.ChangePassword(s.ctx, sess.UserID, "secret1", "short")))
	assert.True(s.T(), core.IsValidation(s.svc.ChangePassword(s.ctx, sess.UserID, "secret1", strings.Repeat("x", core.MaxPasswordLength+1))))

	require.NoError(s.T(), s.svc.ChangePassword(s.ctx, sess.UserID, "secret1", "newsecret"))
	_, err = s.svc.SignIn(s.ctx, "alice@example.com", "secret1")
	assert.ErrorIs(s.T(), err, core.ErrInvalidCredentials)
	_, err = s.svc.SignIn(s.ctx, "alice@example.com", "newsecret")
	assert.NoError(s.T(), err)
}

func (s *AuthTestSuite) TestChangeEmail() {
	a, err := s.svc.SignUp(s.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(s.T(), err)
	_, err = s.svc.SignUp(s.ctx, "Bob", "bob@example.com", "secret1")
	require.NoError(s.T(), err)

	assert.ErrorIs(s.T(), s.svc.ChangeEmail(s.ctx, a.UserID, "secret1", "bob@example.com"), core.ErrEmailTaken)
	assert.ErrorIs(s.T(), s.svc.ChangeEmail(s.ctx, a.UserID, "nope", "new@example.com"), core.ErrInvalidCredentials)

	require.NoError(s.T(), s.svc.ChangeEmail(s.ctx, a.UserID, "secret1", "New@Example.com"))
	p, err := s.repo.GetProfile(s.ctx, a.UserID)
	require.NoError(s.T(), err)
	assert.Equal(s.T(), "new@example.com", p.Email)
	_, err = s.svc.SignIn(s.ctx, "new@example.com", "secret1")
	assert.NoError(s.T(), err)
}

func (s *AuthTestSuite) TestRevokeOtherSessions() {
	first, err := s.svc.SignUp(s.ctx, "Alice", "alice@example.com", "secret1")
	require.NoError(s.T(), err)
	second, err := s.svc.SignIn(s.ctx, "alice@example.com", "secret1")
	require.NoError(s.T(), err)

	require.NoError(s.T(), s.svc.RevokeOtherSessions(s.ctx, first.UserID, second.Token))
	_, _, err = s.svc.Authenticate(s.ctx, first.Token)
	assert.True(s.T(), errors.Is(err, core.ErrInvalidCredentials))
	_, _, err = s.svc.Authenticate(s.ctx, second.Token)
	assert.NoError(s.T(), err)
}

func TestAuthTestSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)
	assert.True(t, CheckPassword("secret1", hash))
	assert.False(t, CheckPassword("secret2", hash))
}

func TestGenerateSessionTokenIsUnique(t *testing.T) {
	a, err := GenerateSessionToken()
	require.NoError(t, err)
	b, err := GenerateSessionToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestNormalizeEmail(t *testing.T) {
	got, err := NormalizeEmail("  Bob@Example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got)

	for _, bad := range []string{"", "bob", "Bob <bob@example.com>", "bob@"} {
		_, err := NormalizeEmail(bad)
		assert.Error(t, err, bad)
	}
}
