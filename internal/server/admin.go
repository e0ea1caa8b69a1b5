package server

import (
	"errors"
	"net/http"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/service"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

type adminView struct {
	Users []models.User
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	users, err := s.accounts.ListUsers(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			s.redirect(w, r, "/channels", noticeAdminOnly)
			return
		}
		s.fail(w, r, err, "/channels")
		return
	}
	s.render(w, r, http.StatusOK, "admin", adminView{Users: users})
}

func (s *Server) handleAdminCreate(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	form := readCreateUser(r)
	if err := validateForm(s.validate, form); err != nil {
		s.logger.Debug("create user rejected", "error", err)
		s.redirect(w, r, "/admin", noticeFillAll)
		return
	}
	u, err := s.accounts.CreateUser(r.Context(), sess.UserID, service.NewUser{
		Username:       form.Username,
		Password:       form.Password,
		Premium:        form.Premium,
		ExpiresInHours: form.ExpiresHours,
	})
	if err != nil {
		s.fail(w, r, err, "/admin")
		return
	}
	s.logger.Info("account created", "actor_id", sess.UserID, "user_id", u.ID, "premium", u.Premium)
	s.redirect(w, r, "/admin", noticeUserCreated)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	id, err := parseID(r, "id")
	if err != nil {
		s.redirect(w, r, "/admin", noticeUserNotFound)
		return
	}
	if err := s.accounts.DeleteUser(r.Context(), sess.UserID, id); err != nil {
		if errors.Is(err, models.ErrInvalidInput) {
			s.redirect(w, r, "/admin", noticeSelfDelete)
			return
		}
		s.fail(w, r, err, "/admin")
		return
	}
	s.logger.Info("account deleted", "actor_id", sess.UserID, "user_id", id)
	s.redirect(w, r, "/admin", noticeUserRemoved)
}
