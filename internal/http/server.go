// Package http serves the roomsplit JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"roomsplit/internal/core"
	"roomsplit/internal/live"
	"roomsplit/internal/log"
	"roomsplit/internal/media"
	"roomsplit/internal/middleware/ratelimit"
	"roomsplit/internal/middleware/security"
	"roomsplit/internal/middleware/trace"
	"roomsplit/internal/services"
)

// Identity signs users in and out.
type Identity interface {
	SignUp(ctx context.Context, name, email, password string) (core.Session, error)
	SignIn(ctx context.Context, email, password string) (core.Session, error)
	SignOut(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (core.Session, bool, error)
	Reauthenticate(ctx context.Context, userID, password string) error
	ChangePassword(ctx context.Context, userID, current, next string) error
	ChangeEmail(ctx context.Context, userID, password, newEmail string) error
	RevokeOtherSessions(ctx context.Context, userID, keep string) error
}

// Expenses is the expense write and table path.
type Expenses interface {
	Create(ctx context.Context, in services.CreateInput) (core.Expense, error)
	Update(ctx context.Context, in services.UpdateInput) (core.Expense, error)
	Remove(ctx context.Context, userID string, id int64, imagePath string) error
	Get(ctx context.Context, userID string, id int64) (core.Expense, error)
	List(ctx context.Context, userID string, opts services.ListOptions) (services.ListResult, error)
}

// Profiles manages profiles and room membership.
type Profiles interface {
	Profile(ctx context.Context, userID string) (core.UserProfile, error)
	Join(ctx context.Context, userID, roomID string) error
	Leave(ctx context.Context, userID string) error
	CreateRoom(ctx context.Context, userID string) (string, error)
	UpdateProfile(ctx context.Context, userID string, upd core.ProfileUpdate) (core.UserProfile, error)
	UpdateAvatar(ctx context.Context, userID string, f media.File) (core.UserProfile, error)
	Roster(ctx context.Context, userID string) ([]core.UserProfile, error)
}

// Dashboards computes the aggregated room view.
type Dashboards interface {
	Dashboard(ctx context.Context, userID string, ref core.Date) (services.Dashboard, error)
}

// Snapshots feeds the live expense stream.
type Snapshots interface {
	Subscribe(roomID string, fn func(live.Snapshot)) (unsubscribe func())
	Current(ctx context.Context, roomID string) (live.Snapshot, error)
}

// Deps are the collaborators of the server. Ready and MediaRoot are
// optional.
type Deps struct {
	Identity   Identity
	Expenses   Expenses
	Profiles   Profiles
	Dashboards Dashboards
	Snapshots  Snapshots
	Logger     *log.Logger

	// Ready reports whether the store can serve requests.
	Ready func(ctx context.Context) error
	// MediaRoot is served under /media/ when media is stored locally.
	MediaRoot string
}

// Options tunes the server.
type Options struct {
	Addr           string
	SecureCookie   bool
	RateLimit      int
	MaxUploadBytes int64
	// Heartbeat is the interval of keep-alive comments on event streams.
	Heartbeat time.Duration
}

type Server struct {
	http.Server
	deps    Deps
	opts    Options
	logger  *log.Logger
	limiter *ratelimit.Limiter
	tracer  *trace.Middleware
	started time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(opts Options, deps Deps) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	logger := deps.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	clientIP := security.NewClientIP()
	s := &Server{
		deps:    deps,
		opts:    opts,
		logger:  logger,
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimit}),
		tracer:  trace.NewMiddleware(logger, clientIP.Extract),
		started: time.Now(),
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.limitWrites(clientIP.Extract)(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("POST /api/auth/signup", api(s.handleSignUp))
	mux.Handle("POST /api/auth/signin", api(s.handleSignIn))
	mux.Handle("POST /api/auth/signout", api(s.handleSignOut))
	mux.Handle("POST /api/auth/reauth", s.requireAuth(s.handleReauth))
	mux.Handle("POST /api/auth/password", s.requireAuth(s.handleChangePassword))
	mux.Handle("POST /api/auth/email", s.requireAuth(s.handleChangeEmail))

	mux.Handle("GET /api/me", s.requireAuth(s.handleGetProfile))
	mux.Handle("PATCH /api/me", s.requireAuth(s.handleUpdateProfile))
	mux.Handle("POST /api/me/avatar", s.requireAuth(s.handleUploadAvatar))

	mux.Handle("POST /api/rooms", s.requireAuth(s.handleCreateRoom))
	mux.Handle("POST /api/rooms/join", s.requireAuth(s.handleJoinRoom))
	mux.Handle("POST /api/rooms/leave", s.requireAuth(s.handleLeaveRoom))
	mux.Handle("GET /api/rooms/members", s.requireAuth(s.handleRoster))

	mux.Handle("GET /api/expenses", s.requireAuth(s.handleListExpenses))
	mux.Handle("POST /api/expenses", s.requireAuth(s.handleCreateExpense))
	mux.Handle("GET /api/expenses/stream", s.requireAuth(s.handleStream))
	mux.Handle("GET /api/expenses/{id}", s.requireAuth(s.handleGetExpense))
	mux.Handle("PUT /api/expenses/{id}", s.requireAuth(s.handleUpdateExpense))
	mux.Handle("DELETE /api/expenses/{id}", s.requireAuth(s.handleDeleteExpense))

	mux.Handle("GET /api/dashboard", s.requireAuth(s.handleDashboard))

	if s.deps.MediaRoot != "" {
		files := http.StripPrefix("/media/", http.FileServer(http.Dir(s.deps.MediaRoot)))
		mux.Handle("GET /media/", security.StaticAssetMiddleware(3600)(noListing(files)))
	}
}

// api adapts an error-returning handler to http.Handler and marks the
// response uncacheable.
func api(fn func(w http.ResponseWriter, r *http.Request) error) http.Handler {
	return security.NoStore(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			writeError(w, r, err)
		}
	}))
}

// limitWrites applies the per-client rate limit to state-changing requests.
func (s *Server) limitWrites(clientIP func(*http.Request) string) func(http.Handler) http.Handler {
	onLimit := func(w http.ResponseWriter, r *http.Request) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, clientIP(r), log.FieldMethod, r.Method, log.FieldPath, r.URL.Path)
		NewJSONResponse().Status(http.StatusTooManyRequests).
			Data(errorBody{Error: "rate limit exceeded, please try again later"}).Write(w)
	}
	limited := s.limiter.Middleware(clientIP, onLimit)
	return func(next http.Handler) http.Handler {
		withLimit := limited(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				withLimit.ServeHTTP(w, r)
			}
		})
	}
}

func noListing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
