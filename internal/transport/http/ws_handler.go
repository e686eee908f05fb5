package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	"github.com/vovakirdan/wirechat-relay/internal/metrics"
	"github.com/vovakirdan/wirechat-relay/internal/proto"
)

// WSHandler authenticates the upgrade request and bridges the connection to the hub.
// It is mounted on the server mux directly; Accept must hijack an unwrapped writer.
type WSHandler struct {
	hub       *core.Hub
	auth      *auth.Service
	origins   []string
	rateLimit int
	log       *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, authService *auth.Service, cfg *config.Config, logger *zerolog.Logger) *WSHandler {
	return &WSHandler{
		hub:       hub,
		auth:      authService,
		origins:   cfg.AllowedOrigins,
		rateLimit: cfg.RateLimitPerMinute,
		log:       logger,
	}
}

// authenticate resolves the caller from a Bearer header or the token query parameter.
func (h *WSHandler) authenticate(r *http.Request) (core.Identity, bool) {
	token, ok := tokenFromRequest(r)
	if !ok {
		return core.Identity{}, false
	}
	claims, err := h.auth.ValidateToken(token)
	if err != nil {
		h.log.Debug().Err(err).Msg("ws invalid token")
		return core.Identity{}, false
	}
	return core.Identity{UserID: claims.UserID, Username: claims.Username}, true
}

// ServeHTTP serves GET /ws.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	identity, ok := h.authenticate(r)
	if !ok {
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, "/ws", strconv.Itoa(http.StatusUnauthorized)).Inc()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "unauthorized"})
		return
	}

	opts := &websocket.AcceptOptions{OriginPatterns: h.origins}
	if len(h.origins) == 0 {
		opts.InsecureSkipVerify = true
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	metrics.HTTPRequestsTotal.WithLabelValues(r.Method, "/ws", strconv.Itoa(http.StatusSwitchingProtocols)).Inc()
	defer conn.Close(websocket.StatusInternalError, "internal error")

	client, err := h.hub.Connect(uuid.NewString(), identity)
	if err != nil {
		h.log.Error().Err(err).Msg("register connection")
		conn.Close(websocket.StatusTryAgainLater, "registration failed")
		return
	}
	defer h.hub.Disconnect(client)

	logger := h.log.With().Str("conn_id", client.ID).Str("user", identity.Username).Logger()
	logger.Info().Msg("ws connected")

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error { return h.readLoop(ctx, conn, client, &logger) })
	g.Go(func() error { return h.writeLoop(ctx, conn, client, &logger) })
	err = g.Wait()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != -1 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			if status == websocket.StatusNormalClosure {
				status = websocket.StatusInternalError
			}
			reason = "connection error"
			logger.Warn().Err(err).Msg("ws connection closed with error")
		}
	}

	logger.Info().Msg("ws disconnected")
	conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	limiter := newRateLimiter(h.rateLimit)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		if !limiter.allow() {
			metrics.InboundRateLimited.Inc()
			if err := h.send(ctx, conn, protoErrorFrame(&proto.Error{Code: proto.ErrCodeRateLimited, Msg: "too many events"})); err != nil {
				return err
			}
			continue
		}

		var inbound proto.Inbound
		if err := json.Unmarshal(data, &inbound); err != nil {
			if err := h.send(ctx, conn, protoErrorFrame(&proto.Error{Code: proto.ErrCodeBadRequest, Msg: "malformed frame"})); err != nil {
				return err
			}
			continue
		}

		cmd, perr := inboundToCommand(inbound)
		if perr != nil {
			if err := h.send(ctx, conn, protoErrorFrame(perr)); err != nil {
				return err
			}
			continue
		}

		if err := h.hub.Handle(ctx, client, cmd); err != nil {
			if errors.Is(err, core.ErrNotRegistered) {
				return err
			}
			logger.Debug().Err(err).Str("type", inbound.Type).Msg("command rejected")
			if err := h.send(ctx, conn, errorFrame(err)); err != nil {
				return err
			}
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client, logger *zerolog.Logger) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := h.send(ctx, conn, outboundFromEvent(event)); err != nil {
				logger.Error().Err(err).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) send(ctx context.Context, conn *websocket.Conn, out proto.Outbound) error {
	return wsjson.Write(ctx, conn, out)
}
