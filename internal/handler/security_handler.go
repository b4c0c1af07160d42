package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-cms/internal/metrics"
	"github.com/stemsi/exstem-cms/internal/middleware"
	"github.com/stemsi/exstem-cms/internal/model"
	"github.com/stemsi/exstem-cms/internal/response"
	"github.com/stemsi/exstem-cms/internal/service"
	ws "github.com/stemsi/exstem-cms/internal/websocket"
)

const pingInterval = 30 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// EventFeed streams live security events.
type EventFeed interface {
	Subscribe(ctx context.Context) (<-chan model.SecurityEvent, func() error)
}

// AuditStats exposes the in-process audit queue.
type AuditStats interface {
	Pending() int
	Dropped() int64
}

// SecurityHandler serves the security dashboard and the live event feed.
type SecurityHandler struct {
	securityService *service.SecurityService
	metrics         *metrics.PipelineMetrics
	audit           AuditStats
	feed            EventFeed
	upgrader        websocket.Upgrader
	log             zerolog.Logger
}

// NewSecurityHandler creates a new SecurityHandler.
func NewSecurityHandler(
	securityService *service.SecurityService,
	m *metrics.PipelineMetrics,
	audit AuditStats,
	feed EventFeed,
	log zerolog.Logger,
	allowedOrigins []string,
) *SecurityHandler {
	return &SecurityHandler{
		securityService: securityService,
		metrics:         m,
		audit:           audit,
		feed:            feed,
		upgrader:        buildUpgrader(allowedOrigins),
		log:             log.With().Str("component", "security_handler").Logger(),
	}
}

// PipelineMetrics godoc
// GET /api/v1/admin/security/metrics
func (h *SecurityHandler) PipelineMetrics(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{
		"pipeline": h.metrics.Snapshot(),
		"audit": gin.H{
			"pending": h.audit.Pending(),
			"dropped": h.audit.Dropped(),
		},
	})
}

// Overview godoc
// GET /api/v1/admin/security/overview?user_id=&limit=
func (h *SecurityHandler) Overview(c *gin.Context) {
	var userID *int64
	if raw := c.Query("user_id"); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}
		userID = &id
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, map[string]string{
				"limit": "limit must be a number",
			})
			return
		}
		limit = n
	}

	overview, err := h.securityService.Overview(c.Request.Context(), userID, limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to build security overview")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrRepository)
		return
	}

	response.Success(c, http.StatusOK, overview)
}

// EventStream godoc
// WS /ws/v1/security/events
// Relays audited security events as they are published. Clients may send
// {"action":"filter","user_id":N} to follow one author and {"action":"ping"}.
func (h *SecurityHandler) EventStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	events, closeFeed := h.feed.Subscribe(ctx)
	defer closeFeed()

	wsLog := h.log.With().Int64("viewer_id", claims.UserID).Logger()
	wsLog.Info().Msg("Admin attached to security feed")

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(ws.PongWait))
	})

	requests := make(chan ws.RequestEnvelope)
	go readRequests(ctx, cancel, conn, requests, wsLog)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	var filter int64
	for {
		select {
		case <-ctx.Done():
			wsLog.Info().Msg("Admin detached from security feed")
			return

		case e, ok := <-events:
			if !ok {
				ws.WriteError(conn, "feed closed")
				return
			}
			if filter != 0 && e.UserID != filter {
				continue
			}
			if err := ws.WriteTyped(conn, ws.SecurityEventMessage{Event: ws.EventSecurity, Data: e}); err != nil {
				return
			}

		case req := <-requests:
			var err error
			switch req.Action {
			case ws.ActionPing:
				err = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			case ws.ActionFilter:
				filter = req.UserID
				err = ws.WriteTyped(conn, ws.FilterResponse{Event: ws.EventFiltered, UserID: filter})
			default:
				err = ws.WriteError(conn, "unknown action: "+string(req.Action))
			}
			if err != nil {
				return
			}

		case <-ticker.C:
			if err := ws.WritePing(conn); err != nil {
				return
			}
		}
	}
}

// readRequests owns the read side of conn. Malformed frames are forwarded as
// empty actions so the writer can answer them; any other error ends the stream.
func readRequests(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out chan<- ws.RequestEnvelope, log zerolog.Logger) {
	defer cancel()
	for {
		var req ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if !errors.As(err, &syntaxErr) && !errors.As(err, &typeErr) {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			req = ws.RequestEnvelope{}
		}
		select {
		case out <- req:
		case <-ctx.Done():
			return
		}
	}
}
