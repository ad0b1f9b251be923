package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Jwl06/civicledger360/models"
	"github.com/Jwl06/civicledger360/reconcile"
	"github.com/Jwl06/civicledger360/services"
	"github.com/Jwl06/civicledger360/store"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PostViolation handles POST /api/violations - submit a citizen report
func (h *Handler) PostViolation(c *gin.Context) {
	var req services.SubmitInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	violation, err := h.violations.Submit(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, violation)
}

// GetViolations handles GET /api/violations - list with filters, newest first
func (h *Handler) GetViolations(c *gin.Context) {
	var filter store.Filter

	if status := c.Query("status"); status != "" {
		parsed, err := models.ParseViolationStatus(status)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "status"})
			return
		}
		filter.Status = parsed
	}
	if violationType := c.Query("violationType"); violationType != "" {
		parsed, err := models.ParseViolationType(violationType)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "violationType"})
			return
		}
		filter.ViolationType = parsed
	}
	if vehicleID := c.Query("vehicleId"); vehicleID != "" {
		parsed, err := strconv.ParseInt(vehicleID, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid vehicleId", "field": "vehicleId"})
			return
		}
		filter.VehicleID = parsed
	}
	filter.Reporter = strings.TrimSpace(c.Query("reporter"))

	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	filter.Limit = limit

	h.listViolations(c, filter)
}

// GetPendingViolations handles GET /api/violations/pending
func (h *Handler) GetPendingViolations(c *gin.Context) {
	h.listViolations(c, store.Filter{Status: models.ViolationPending})
}

// GetReporterViolations handles GET /api/violations/reporter/:address
func (h *Handler) GetReporterViolations(c *gin.Context) {
	h.listViolations(c, store.Filter{Reporter: c.Param("address")})
}

func (h *Handler) listViolations(c *gin.Context, filter store.Filter) {
	violations, err := h.violations.List(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"violations": violations,
		"total":      len(violations),
	})
}

func parseLimit(c *gin.Context) (int, bool) {
	limitStr := c.Query("limit")
	if limitStr == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer", "field": "limit"})
		return 0, false
	}
	return limit, true
}

// GetViolation handles GET /api/violations/:id
func (h *Handler) GetViolation(c *gin.Context) {
	id, ok := parseID(c, "violation")
	if !ok {
		return
	}
	violation, err := h.violations.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, violation)
}

type reviewRequest struct {
	Status      string           `json:"status"`
	Reviewer    string           `json:"reviewer"`
	FineAmount  *decimal.Decimal `json:"fineAmount"`
	ReviewNotes string           `json:"reviewNotes"`
	Target      string           `json:"target"`
}

// ReviewViolation handles PUT /api/violations/:id/review. target picks backend
// (default), chain or both.
func (h *Handler) ReviewViolation(c *gin.Context) {
	id, ok := parseID(c, "violation")
	if !ok {
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	target, err := services.ParseReviewTarget(req.Target)
	if err != nil {
		h.respondError(c, err)
		return
	}

	in := models.ReviewInput{
		Reviewer:   req.Reviewer,
		Decision:   models.ViolationStatus(strings.ToUpper(strings.TrimSpace(req.Status))),
		FineAmount: req.FineAmount,
		Notes:      req.ReviewNotes,
	}

	violation, err := h.violations.ReviewOn(c.Request.Context(), target, id, in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, violation)
}

// GetStatistics handles GET /api/statistics
func (h *Handler) GetStatistics(c *gin.Context) {
	stats, err := h.violations.Statistics(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GetReporterSummary handles GET /api/reporters/:address/summary
func (h *Handler) GetReporterSummary(c *gin.Context) {
	summary, err := h.violations.ReporterSummary(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// GetReviewQueue handles GET /api/review/queue - the merged backend and chain queue
func (h *Handler) GetReviewQueue(c *gin.Context) {
	if h.poller != nil {
		c.JSON(http.StatusOK, h.poller.Snapshot())
		return
	}

	pending, err := h.violations.List(c.Request.Context(), store.Filter{Status: models.ViolationPending})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, reconcile.Snapshot{
		Violations:   reconcile.MergePendingViolations(pending, nil),
		BackendCount: len(pending),
	})
}
