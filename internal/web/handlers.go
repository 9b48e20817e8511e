package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"time"

	"authPortal/internal/auth"
	"authPortal/internal/download"
	"authPortal/models"
	"authPortal/repository"
)

func loggedIn(r *http.Request) bool {
	_, ok := auth.FromContext(r.Context())
	return ok
}

func (s *Server) home(w http.ResponseWriter, r *http.Request) error {
	return s.pages.render(w, http.StatusOK, pageIndex, pageData{
		Title:    "Home",
		LoggedIn: loggedIn(r),
		Notice:   noticeFrom(r),
	})
}

func (s *Server) registerForm(w http.ResponseWriter, r *http.Request) error {
	return s.pages.render(w, http.StatusOK, pageRegister, pageData{
		Title:    "Register",
		LoggedIn: loggedIn(r),
		Notice:   noticeFrom(r),
	})
}

func (s *Server) loginForm(w http.ResponseWriter, r *http.Request) error {
	return s.pages.render(w, http.StatusOK, pageLogin, pageData{
		Title:    "Login",
		LoggedIn: loggedIn(r),
		Notice:   noticeFrom(r),
	})
}

// register creates the account and logs it in. Missing form fields arrive as
// empty strings and are stored as such.
func (s *Server) register(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	email := r.PostFormValue("email")

	// Fast path for a friendly message; the unique index is the real guard.
	existing, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	if existing != nil {
		redirectWithNotice(w, r, "/login", noticeAlreadyRegistered)
		return nil
	}

	hash, err := s.hasher.Hash(r.PostFormValue("password"))
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u, err := s.users.Create(ctx, email, hash, r.PostFormValue("name"))
	if errors.Is(err, repository.ErrDuplicateEmail) {
		redirectWithNotice(w, r, "/login", noticeAlreadyRegistered)
		return nil
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if err := s.startSession(ctx, w, r, u); err != nil {
		return err
	}
	s.log.InfoContext(ctx, "user registered", "user_id", u.ID)
	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	email := r.PostFormValue("email")
	password := r.PostFormValue("password")

	u, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	if u == nil {
		redirectWithNotice(w, r, "/login", noticeUnknownEmail)
		return nil
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		s.log.InfoContext(ctx, "login rejected", "user_id", u.ID)
		redirectWithNotice(w, r, "/login", noticeWrongPassword)
		return nil
	}

	if err := s.startSession(ctx, w, r, u); err != nil {
		return err
	}
	http.Redirect(w, r, "/secrets", http.StatusFound)
	return nil
}

func (s *Server) secrets(w http.ResponseWriter, r *http.Request) error {
	// RequireLogin guarantees a user here.
	u, _ := auth.FromContext(r.Context())
	w.Header().Set("Cache-Control", "no-store")
	return s.pages.render(w, http.StatusOK, pageSecrets, pageData{
		Title:    "Secrets",
		LoggedIn: true,
		Name:     u.Name,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) error {
	if err := s.sessions.Logout(r.Context(), auth.TokenFromRequest(r, s.cookieName)); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	s.clearCookie(w)
	http.Redirect(w, r, "/", http.StatusFound)
	return nil
}

// download streams the configured file. The name comes from the source,
// never from the request.
func (s *Server) download(w http.ResponseWriter, r *http.Request) error {
	f, err := s.files.Open(r.Context())
	if errors.Is(err, download.ErrNotFound) {
		return ClientErr(http.StatusNotFound, "file not found")
	}
	if err != nil {
		return err
	}
	defer f.Content.Close()

	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}))
	w.Header().Set("Cache-Control", "no-store")

	if rs, ok := f.Content.(io.ReadSeeker); ok {
		http.ServeContent(w, r, f.Name, f.ModTime, rs)
		return nil
	}
	if f.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(f.Size, 10))
	}
	if _, err := io.Copy(w, f.Content); err != nil {
		s.log.WarnContext(r.Context(), "download interrupted", "err", err)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) error {
	status, code := "ok", http.StatusOK
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.log.WarnContext(ctx, "health check failed", "err", err)
			status, code = "unavailable", http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// startSession replaces any session the client already holds with a new one for u.
func (s *Server) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, u *models.User) error {
	if old := auth.TokenFromRequest(r, s.cookieName); old != "" {
		if err := s.sessions.Logout(ctx, old); err != nil {
			return fmt.Errorf("revoke previous session: %w", err)
		}
	}
	token, err := s.sessions.Login(ctx, u)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.sessions.TTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (s *Server) clearCookie(w http.ResponseWriter) {
	auth.ExpireCookie(w, s.cookieName, s.cookieSecure)
}
