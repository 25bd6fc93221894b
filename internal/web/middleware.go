package web

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/bcnelson/l2vpn-manager/internal/auth"
	"github.com/bcnelson/l2vpn-manager/internal/domain"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
)

type contextKey string

const (
	sessionContextKey   contextKey = "session"
	workspaceContextKey contextKey = "workspace"
)

// sessionAuth puts the signed-in user in the request context. With OIDC
// disabled every request runs as the configured default user.
func (s *Server) sessionAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var session *auth.Session
		if s.oidc != nil {
			var err error
			session, err = s.oidc.Sessions.Get(r)
			if err != nil {
				if !errors.Is(err, auth.ErrNoCookie) {
					s.log.Debug("rejecting session", logger.Err(err))
					s.oidc.Sessions.Clear(w)
				}
				s.redirectToLogin(w, r)
				return
			}
		} else {
			session = s.defaultSession(r.Context())
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, session)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/login?return_to=" + url.QueryEscape(r.URL.RequestURI())
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// defaultSession describes the configured default user.
func (s *Server) defaultSession(ctx context.Context) *auth.Session {
	session := &auth.Session{
		Email:       s.defaultUser,
		WorkgroupID: s.workgroupID,
		ReadOnly:    s.readOnly,
	}
	if user := s.lookupUser(ctx, s.defaultUser); user != nil {
		session.Name = user.FullName()
		session.IsAdmin = user.IsAdmin
	}
	return session
}

// lookupUser finds email in the backend's user list.
func (s *Server) lookupUser(ctx context.Context, email string) *domain.User {
	if email == "" {
		return nil
	}
	users, err := s.client.ListUsers(ctx)
	if err != nil {
		s.log.Warn("listing users", logger.Err(err))
		return nil
	}
	for _, u := range users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// getSession retrieves the session from context.
func getSession(ctx context.Context) *auth.Session {
	session, _ := ctx.Value(sessionContextKey).(*auth.Session)
	return session
}

// loadWorkspace resolves the {workspace} URL parameter for its owner.
func (s *Server) loadWorkspace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := getSession(r.Context())
		ws, ok := s.workspaces.get(chi.URLParam(r, "workspace"), session.Email)
		if !ok {
			s.renderError(w, "This editor has expired. Please reopen the circuit.", http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), workspaceContextKey, ws)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getWorkspace(ctx context.Context) *workspace {
	ws, _ := ctx.Value(workspaceContextKey).(*workspace)
	return ws
}

// requireEditable rejects mutations from read-only users.
func (s *Server) requireEditable(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !getSession(r.Context()).Editable() {
			s.renderError(w, "You have read-only access.", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
