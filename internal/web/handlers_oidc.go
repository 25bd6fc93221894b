package web

import (
	"net/http"
	"net/url"

	"github.com/bcnelson/l2vpn-manager/internal/auth"
	"github.com/bcnelson/l2vpn-manager/internal/logger"
)

// handleOIDCLogin initiates the OIDC login flow.
func (s *Server) handleOIDCLogin(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Error(w, "OIDC authentication is not enabled", http.StatusNotFound)
		return
	}

	stateData, err := s.oidc.States.Generate(w, safeReturnTo(r.URL.Query().Get("return_to")))
	if err != nil {
		s.log.Error("generating OIDC state", logger.Err(err))
		loginError(w, r, "Failed to initiate login")
		return
	}

	http.Redirect(w, r, s.oidc.Provider.AuthCodeURL(stateData.State, stateData.Nonce), http.StatusSeeOther)
}

// handleOIDCCallback completes the login and creates the session.
func (s *Server) handleOIDCCallback(w http.ResponseWriter, r *http.Request) {
	if s.oidc == nil {
		http.Error(w, "OIDC authentication is not enabled", http.StatusNotFound)
		return
	}

	ctx := r.Context()
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		errDesc := q.Get("error_description")
		if errDesc == "" {
			errDesc = errParam
		}
		s.log.Warn("OIDC provider returned error", logger.String("error", errParam), logger.String("description", errDesc))
		loginError(w, r, errDesc)
		return
	}

	code := q.Get("code")
	if code == "" {
		loginError(w, r, "No authorization code received")
		return
	}

	stateData, err := s.oidc.States.Validate(r, q.Get("state"))
	if err != nil {
		s.log.Warn("OIDC state validation failed", logger.Err(err))
		loginError(w, r, "Invalid state parameter")
		return
	}
	s.oidc.States.Clear(w)

	claims, err := s.oidc.Provider.Exchange(ctx, code, stateData.Nonce)
	if err != nil {
		s.log.Warn("OIDC login failed", logger.Err(err))
		loginError(w, r, "Failed to complete authentication")
		return
	}

	session := &auth.Session{
		Subject:     claims.Subject,
		Email:       claims.Email,
		Name:        claims.Name,
		WorkgroupID: s.workgroupID,
		ReadOnly:    s.readOnly,
	}
	if user := s.lookupUser(ctx, claims.Email); user != nil {
		session.IsAdmin = user.IsAdmin
		if session.Name == "" {
			session.Name = user.FullName()
		}
	}

	if err := s.oidc.Sessions.Create(w, session); err != nil {
		s.log.Error("creating session", logger.Err(err))
		loginError(w, r, "Failed to create session")
		return
	}

	s.log.Info("user signed in", logger.String("email", session.Email), logger.Bool("admin", session.IsAdmin))
	http.Redirect(w, r, stateData.ReturnTo, http.StatusSeeOther)
}

func loginError(w http.ResponseWriter, r *http.Request, msg string) {
	http.Redirect(w, r, "/login?error="+url.QueryEscape(msg), http.StatusSeeOther)
}
