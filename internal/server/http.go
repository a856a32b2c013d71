// Package server exposes the participant-facing HTTP/JSON API. Caller
// identity arrives in the X-Account-ID header; authentication is an
// upstream gateway concern.
package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"SynthSettle/internal/engine"
	"SynthSettle/internal/ledger"
	"SynthSettle/internal/observability"
	"SynthSettle/internal/projection"
	"SynthSettle/internal/service"
)

const accountHeader = "X-Account-ID"

type Server struct {
	shell   *service.Shell
	history *projection.CycleHistory
	health  *observability.HealthChecker
	metrics *observability.Metrics
	log     zerolog.Logger
}

// New builds the API server. history may be nil when no database is
// wired, in which case the cycle history endpoint reports unavailable.
func New(shell *service.Shell, history *projection.CycleHistory, health *observability.HealthChecker, metrics *observability.Metrics, log zerolog.Logger) *Server {
	return &Server{
		shell:   shell,
		history: history,
		health:  health,
		metrics: metrics,
		log:     log,
	}
}

// Router builds the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.observe)

	v1 := r.Group("/v1")
	{
		v1.POST("/adjust", s.handleAdjust)
		v1.POST("/collateral/topup", s.handleTopUp)
		v1.GET("/accounts/:id", s.handleAccount)
		v1.GET("/escrow", s.handleEscrow)
		v1.GET("/cycles", s.handleCycles)
	}

	r.GET("/healthz", gin.WrapF(s.health.LivenessHandler))
	r.GET("/readyz", gin.WrapF(s.health.ReadinessHandler))

	return r
}

// observe records request metrics per endpoint.
func (s *Server) observe(c *gin.Context) {
	start := time.Now()
	c.Next()

	if s.metrics == nil {
		return
	}
	endpoint := c.FullPath()
	if endpoint == "" {
		endpoint = "unmatched"
	}
	s.metrics.QueryRequests.WithLabelValues(endpoint, http.StatusText(c.Writer.Status())).Inc()
	s.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

type adjustRequest struct {
	DeltaPosition int64 `json:"delta_position"`
	DeltaMargin   int64 `json:"delta_margin"`
}

type adjustResponse struct {
	RequestID string `json:"request_id"`
}

func (s *Server) handleAdjust(c *gin.Context) {
	account, ok := callerAccount(c)
	if !ok {
		return
	}

	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	requestID := uuid.New()
	if err := s.shell.Adjust(requestID, account, req.DeltaPosition, req.DeltaMargin); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, adjustResponse{RequestID: requestID.String()})
}

type topUpRequest struct {
	Amount uint64 `json:"amount"`
}

func (s *Server) handleTopUp(c *gin.Context) {
	account, ok := callerAccount(c)
	if !ok {
		return
	}

	var req topUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	requestID := uuid.New()
	if err := s.shell.TopUpCollateral(requestID, account, req.Amount); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, adjustResponse{RequestID: requestID.String()})
}

func (s *Server) handleAccount(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account id"})
		return
	}

	c.JSON(http.StatusOK, s.shell.Account(id))
}

func (s *Server) handleEscrow(c *gin.Context) {
	price, set := s.shell.RefPrice()
	resp := gin.H{
		"total_escrow": s.shell.EscrowBalance(),
		"cycle_seq":    s.shell.CycleSeq(),
	}
	if set {
		resp["ref_price"] = price
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleCycles(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "cycle history unavailable"})
		return
	}

	limit := 50
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 1000 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be in [1, 1000]"})
			return
		}
		limit = parsed
	}

	records, err := s.history.RecentCycles(c.Request.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("cycle history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cycle history query failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"cycles": records})
}

func callerAccount(c *gin.Context) (uuid.UUID, bool) {
	raw := c.GetHeader(accountHeader)
	if raw == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing " + accountHeader + " header"})
		return uuid.Nil, false
	}
	account, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid " + accountHeader + " header"})
		return uuid.Nil, false
	}
	return account, true
}

// statusFor maps the engine error taxonomy onto HTTP statuses. The margin
// gate is a semantic rejection (422), an unfunded transfer is a conflict
// with ledger state (409), and a missing reference price means the
// service cannot price the request yet (503).
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotEnoughIM):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusConflict
	case errors.Is(err, engine.ErrPriceNotSet):
		return http.StatusServiceUnavailable
	case errors.Is(err, engine.ErrOverflow), errors.Is(err, engine.ErrAmountConvertFailed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
