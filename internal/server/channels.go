package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/JET-SOUZA/Legacy.tv/internal/models"
	"github.com/JET-SOUZA/Legacy.tv/internal/service"
	"github.com/JET-SOUZA/Legacy.tv/internal/session"
)

type channelsView struct {
	Count    int
	Groups   []models.Group
	LoadedAt time.Time
	Stale    bool
	CanPlay  bool
}

func (s *Server) handleChannels(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	snap := s.playlist.Current()
	s.render(w, r, http.StatusOK, "channels", channelsView{
		Count:    snap.Len(),
		Groups:   snap.Grouped(),
		LoadedAt: snap.LoadedAt(),
		Stale:    snap.Stale(),
		CanPlay:  sess.Premium || sess.Admin,
	})
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	sess := session.FromContext(r.Context())
	if _, err := s.accounts.RequirePremium(r.Context(), sess.UserID); err != nil {
		if errors.Is(err, models.ErrUnauthorized) {
			s.redirect(w, r, "/channels", noticePremiumRequired)
			return
		}
		s.fail(w, r, err, "/channels")
		return
	}
	ch, ok := s.playlist.Current().Lookup(r.PathValue("key"))
	if !ok {
		s.redirect(w, r, "/channels", noticeChannelNotFound)
		return
	}
	s.render(w, r, http.StatusOK, "player", ch)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	// The fetch is shared with concurrent callers, so it must not die with this request.
	ctx := context.WithoutCancel(r.Context())
	snap, err := s.playlist.Reload(ctx)
	switch {
	case errors.Is(err, service.ErrReloadInProgress):
		s.redirect(w, r, "/channels", noticeReloadBusy)
	case err != nil:
		s.redirect(w, r, "/channels", noticeReloadFailed)
	default:
		s.redirect(w, r, "/channels", fmt.Sprintf(noticeReloaded, snap.Len()))
	}
}

type channelsResponse struct {
	Count    int              `json:"count"`
	LoadedAt time.Time        `json:"loaded_at"`
	Stale    bool             `json:"stale"`
	Groups   []string         `json:"groups"`
	Channels []models.Channel `json:"channels"`
}

// apiUser resolves the caller for JSON routes, writing a 401 or 500 itself on failure.
func (s *Server) apiUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	sess := session.FromContext(r.Context())
	if sess == nil {
		s.writeErr(w, http.StatusUnauthorized, errors.New("login required"))
		return nil, false
	}
	u, err := s.accounts.RequireActive(r.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, models.ErrUnauthorized) || errors.Is(err, models.ErrExpired) {
			s.writeErr(w, http.StatusUnauthorized, err)
			return nil, false
		}
		s.writeErr(w, http.StatusInternalServerError, err)
		return nil, false
	}
	return u, true
}

// redactURLs hides stream URLs from accounts that may not play them.
func redactURLs(u *models.User, channels []models.Channel) []models.Channel {
	if u.CanPlay() {
		return channels
	}
	return lo.Map(channels, func(ch models.Channel, _ int) models.Channel {
		ch.URL = ""
		return ch
	})
}

func (s *Server) handleAPIChannels(w http.ResponseWriter, r *http.Request) {
	u, ok := s.apiUser(w, r)
	if !ok {
		return
	}
	snap := s.playlist.Current()
	channels := snap.Channels()
	if group := r.URL.Query().Get("group"); group != "" {
		channels = lo.Filter(channels, func(ch models.Channel, _ int) bool {
			return ch.Group == group || (ch.Group == "" && group == models.DefaultGroup)
		})
	}
	if channels == nil {
		channels = []models.Channel{}
	}
	s.writeJSON(w, http.StatusOK, channelsResponse{
		Count:    len(channels),
		LoadedAt: snap.LoadedAt(),
		Stale:    snap.Stale(),
		Groups:   snap.Groups(),
		Channels: redactURLs(u, channels),
	})
}

func (s *Server) handleAPIChannel(w http.ResponseWriter, r *http.Request) {
	u, ok := s.apiUser(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid id: %s", r.PathValue("id")))
		return
	}
	ch, found := s.playlist.Current().ByID(id)
	if !found {
		s.writeErr(w, http.StatusNotFound, fmt.Errorf("channel %d not found", id))
		return
	}
	s.writeJSON(w, http.StatusOK, redactURLs(u, []models.Channel{ch})[0])
}
