package handlers

import (
	"net/http"
	"time"

	"github.com/Jwl06/civicledger360/store"
	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Health handles GET /api/health
func (h *Handler) Health(c *gin.Context) {
	all, err := h.violations.List(c.Request.Context(), store.Filter{})
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       "ok",
		"timestamp":    time.Now().UTC(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
		"violations":   len(all),
		"chainEnabled": h.violations.ChainEnabled(),
		"resources":    resources(),
	})
}

func resources() map[string]interface{} {
	out := make(map[string]interface{})
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		out["cpuPercent"] = cpuPercent[0]
	}
	if memInfo, err := mem.VirtualMemory(); err == nil {
		out["memoryTotal"] = memInfo.Total
		out["memoryUsed"] = memInfo.Used
		out["memoryPercent"] = memInfo.UsedPercent
	}
	return out
}
