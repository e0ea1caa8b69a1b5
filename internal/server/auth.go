package server

import (
	"net/http"

	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/channels", http.StatusSeeOther)
}

func (s *Server) handleRegisterPage(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "register", nil)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	form := readCredentials(r)
	if err := validateForm(s.validate, form); err != nil {
		s.logger.Debug("register rejected", "error", err)
		s.redirect(w, r, "/register", noticeFillAll)
		return
	}
	u, err := s.accounts.Register(r.Context(), form.Username, form.Password)
	if err != nil {
		s.fail(w, r, err, "/register")
		return
	}
	s.logger.Info("account registered", "user_id", u.ID, "username", u.Username)
	s.redirect(w, r, "/login", noticeAccountCreated)
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	if session.FromContext(r.Context()) != nil {
		http.Redirect(w, r, "/channels", http.StatusSeeOther)
		return
	}
	s.render(w, r, http.StatusOK, "login", nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	form := readCredentials(r)
	if err := validateForm(s.validate, form); err != nil {
		s.redirect(w, r, "/login", noticeFillAll)
		return
	}
	u, err := s.accounts.Authenticate(r.Context(), form.Username, form.Password)
	if err != nil {
		s.fail(w, r, err, "/login")
		return
	}
	if _, err := s.sessions.Start(r.Context(), w, u); err != nil {
		s.fail(w, r, err, "/login")
		return
	}
	s.logger.Info("login", "user_id", u.ID, "admin", u.Admin)
	if u.Admin {
		s.redirect(w, r, "/admin", noticeLoggedIn)
		return
	}
	s.redirect(w, r, "/channels", noticeLoggedIn)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.End(w, r); err != nil {
		s.logger.Warn("end session", "error", err)
	}
	s.redirect(w, r, "/login", noticeLoggedOut)
}
