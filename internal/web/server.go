// Package web serves the HTML front end: registration, login, the
// session-gated secrets page, logout and the protected download.
package web

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"authPortal/internal/auth"
	"authPortal/internal/download"
	"authPortal/models"
	"authPortal/repository"
)

// PasswordHasher hashes and verifies passwords. *hasher.Hasher satisfies it.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, encoded string) bool
}

// SessionManager issues and revokes sessions. *session.Manager satisfies it.
type SessionManager interface {
	auth.Resolver
	Login(ctx context.Context, u *models.User) (string, error)
	Logout(ctx context.Context, token string) error
	TTL() time.Duration
}

// Pinger reports storage health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps is the application context handed to the HTTP layer at startup.
type Deps struct {
	Users    repository.UserRepositoryI
	Hasher   PasswordHasher
	Sessions SessionManager
	Files    download.Source
	DB       Pinger
	Log      *slog.Logger

	CookieName     string
	CookieSecure   bool
	AllowedOrigins []string
}

type Server struct {
	users    repository.UserRepositoryI
	hasher   PasswordHasher
	sessions SessionManager
	files    download.Source
	db       Pinger
	log      *slog.Logger
	pages    *renderer

	cookieName     string
	cookieSecure   bool
	allowedOrigins []string
}

const defaultCookieName = "session"

func NewServer(d Deps) (*Server, error) {
	if d.Users == nil || d.Hasher == nil || d.Sessions == nil || d.Files == nil {
		return nil, errors.New("web: users, hasher, sessions and files are required")
	}
	pages, err := newRenderer()
	if err != nil {
		return nil, err
	}
	log := d.Log
	if log == nil {
		log = slog.Default()
	}
	cookie := d.CookieName
	if cookie == "" {
		cookie = defaultCookieName
	}
	return &Server{
		users:          d.Users,
		hasher:         d.Hasher,
		sessions:       d.Sessions,
		files:          d.Files,
		db:             d.DB,
		log:            log,
		pages:          pages,
		cookieName:     cookie,
		cookieSecure:   d.CookieSecure,
		allowedOrigins: d.AllowedOrigins,
	}, nil
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	if len(s.allowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.allowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", s.handle(s.healthz))

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.sessions, s.cookieName, s.cookieSecure, s.log))

		r.Get("/", s.handle(s.home))
		r.Get("/register", s.handle(s.registerForm))
		r.Post("/register", s.handle(s.register))
		r.Get("/login", s.handle(s.loginForm))
		r.Post("/login", s.handle(s.login))

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireLogin(withNotice("/login", noticeLoginRequired)))
			r.Get("/secrets", s.handle(s.secrets))
			r.Get("/logout", s.handle(s.logout))
			r.Get("/download", s.handle(s.download))
		})
	})
	return r
}

// logRequests logs one line per request once the response is written.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			s.log.InfoContext(r.Context(), "http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
