package handlers

import (
	"net/http"

	"github.com/Jwl06/civicledger360/services"
	"github.com/gin-gonic/gin"
)

// PostVehicle handles POST /api/vehicles
func (h *Handler) PostVehicle(c *gin.Context) {
	var req services.VehicleInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	vehicle, err := h.vehicles.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, vehicle)
}

// GetVehicles handles GET /api/vehicles?owner=
func (h *Handler) GetVehicles(c *gin.Context) {
	vehicles, err := h.vehicles.List(c.Request.Context(), c.Query("owner"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vehicles": vehicles,
		"total":    len(vehicles),
	})
}

// GetVehicle handles GET /api/vehicles/:id
func (h *Handler) GetVehicle(c *gin.Context) {
	id, ok := parseID(c, "vehicle")
	if !ok {
		return
	}
	vehicle, err := h.vehicles.Get(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, vehicle)
}
