// Package metrics holds the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "legacytv"

// Reload results.
const (
	ReloadOK       = "ok"
	ReloadError    = "error"
	ReloadLocked   = "locked"
	ReloadFallback = "fallback"
)

// Login results.
const (
	LoginOK          = "ok"
	LoginAuthFailure = "auth_failure"
	LoginExpired     = "expired"
	LoginRateLimited = "rate_limited"
)

// Account operations.
const (
	OpRegister = "register"
	OpCreate   = "create"
	OpDelete   = "delete"
)

var (
	PlaylistReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playlist_reloads_total",
		Help:      "Playlist reload attempts by result.",
	}, []string{"result"})

	PlaylistChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "playlist_channels",
		Help:      "Channels in the published playlist snapshot.",
	})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Login attempts by result.",
	}, []string{"result"})

	Accounts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accounts_total",
		Help:      "Account mutations by operation.",
	}, []string{"op"})
)
