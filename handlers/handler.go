// Package handlers exposes the violation workflow over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Jwl06/civicledger360/chain"
	"github.com/Jwl06/civicledger360/evidence"
	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/Jwl06/civicledger360/services"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Deps are the collaborators the handlers call. Poller and Feed are optional.
type Deps struct {
	Violations *services.ViolationService
	Vehicles   *services.VehicleService
	Evidence   *evidence.Service
	Poller     *reconcile.Poller
	Feed       *services.FeedHub
	Logger     *zap.Logger
}

// Handler serves the REST API.
type Handler struct {
	violations *services.ViolationService
	vehicles   *services.VehicleService
	evidence   *evidence.Service
	poller     *reconcile.Poller
	feed       *services.FeedHub
	log        *zap.Logger
	started    time.Time
}

func New(d Deps) *Handler {
	return &Handler{
		violations: d.Violations,
		vehicles:   d.Vehicles,
		evidence:   d.Evidence,
		poller:     d.Poller,
		feed:       d.Feed,
		log:        d.Logger,
		started:    time.Now(),
	}
}

// RegisterRoutes mounts /api and the websocket feed on r.
func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/violations", h.HandleFeedWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.GET("/statistics", h.GetStatistics)
		api.POST("/upload", h.UploadEvidence)
		api.GET("/review/queue", h.GetReviewQueue)
		api.GET("/reporters/:address/summary", h.GetReporterSummary)
		api.GET("/feed/stats", h.GetFeedStats)

		violations := api.Group("/violations")
		{
			violations.GET("", h.GetViolations)
			violations.POST("", h.PostViolation)
			violations.GET("/pending", h.GetPendingViolations)
			violations.GET("/reporter/:address", h.GetReporterViolations)
			violations.GET("/:id", h.GetViolation)
			violations.PUT("/:id/review", h.ReviewViolation)
		}

		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", h.GetVehicles)
			vehicles.POST("", h.PostVehicle)
			vehicles.GET("/:id", h.GetVehicle)
		}
	}
}

// respondError maps the error taxonomy onto HTTP statuses.
func (h *Handler) respondError(c *gin.Context, err error) {
	var partial *models.PartialReviewError
	if errors.As(err, &partial) {
		c.JSON(statusFor(partial.Err), gin.H{
			"error":          partial.Error(),
			"backendApplied": partial.BackendApplied,
			"chainApplied":   partial.ChainApplied,
		})
		return
	}

	status := statusFor(err)
	body := gin.H{"error": err.Error()}
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		body["error"] = verr.Message
		body["field"] = verr.Field
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		if status == http.StatusInternalServerError {
			body["error"] = "Internal server error"
		}
	}
	c.JSON(status, body)
}

func statusFor(err error) int {
	var verr *models.ValidationError
	var ext *models.ExternalServiceError
	switch {
	case errors.As(err, &verr), errors.Is(err, services.ErrChainDisabled):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, chain.ErrReadOnly):
		return http.StatusServiceUnavailable
	case errors.As(err, &ext):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func parseID(c *gin.Context, what string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + what + " ID", "field": "id"})
		return 0, false
	}
	return id, true
}
