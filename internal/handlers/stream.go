package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/skillswap/backend/internal/logging"
	"github.com/skillswap/backend/internal/metrics"
	"github.com/skillswap/backend/internal/models"
	"github.com/skillswap/backend/internal/realtime"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamReadLimit  = 512
)

// streamFrame is one message written to a profile stream client.
type streamFrame struct {
	Type     string           `json:"type"`
	Profiles []models.Profile `json:"profiles,omitempty"`
	Message  string           `json:"message,omitempty"`
}

// StreamHandler pushes the live browse result and admin broadcasts over a
// websocket.
type StreamHandler struct {
	Directory      ProfileDirectory
	Feed           realtime.Feed
	AllowedOrigins []string
}

// Serve handles GET /api/v1/profiles/stream?q=&availability=.
func (h StreamHandler) Serve(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if h.Feed == nil {
		respondMessage(r.Context(), w, http.StatusServiceUnavailable, "live updates are unavailable")
		return
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.StreamConnections.Inc()
	defer metrics.StreamConnections.Dec()

	logger := logging.FromContext(r.Context())
	logger.Info("profile stream opened")

	term, slot := r.URL.Query().Get("q"), r.URL.Query().Get("availability")
	frames := make(chan streamFrame, 4)
	g, ctx := errgroup.WithContext(r.Context())

	send := func(f streamFrame) {
		select {
		case frames <- f:
		case <-ctx.Done():
		}
	}

	g.Go(func() error {
		conn.SetReadLimit(streamReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(streamPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(streamPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return err
			}
		}
	})

	g.Go(func() error {
		return h.Directory.Watch(ctx, h.Feed, actor.UserID, term, slot, func(profiles []models.Profile) {
			if profiles == nil {
				profiles = []models.Profile{}
			}
			send(streamFrame{Type: "profiles", Profiles: profiles})
		})
	})

	g.Go(func() error {
		events, cancel, err := h.Feed.Subscribe(ctx, realtime.TableBroadcast)
		if err != nil {
			return err
		}
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-events:
				if !ok {
					return nil
				}
				send(streamFrame{Type: "broadcast", Message: ev.Message})
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteWait))
				return conn.Close()
			case frame := <-frames:
				_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
				if err := conn.WriteJSON(frame); err != nil {
					return err
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return err
				}
			}
		}
	})

	err = g.Wait()
	switch {
	case err == nil, errors.Is(err, context.Canceled), websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		logger.Info("profile stream closed")
	default:
		logger.Warn("profile stream ended", "error", err)
	}
}

func (h StreamHandler) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}
