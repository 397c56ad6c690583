package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"

	"fieldtrack-go/internal/models"
	"fieldtrack-go/internal/store/middleware"
	"fieldtrack-go/internal/store/repos"
	"fieldtrack-go/internal/store/services"
)

type StoreHandler struct {
	svc *services.StoreService
}

func NewStoreHandler(svc *services.StoreService) *StoreHandler {
	return &StoreHandler{svc: svc}
}

type photoBody struct {
	ImageBase64 string `json:"image_base64"`
	Filename    string `json:"filename"`
}

func (h *StoreHandler) SaveLocation(c *gin.Context) {
	var rec models.LocationRecord
	if err := c.ShouldBindJSON(&rec); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json body"})
		return
	}
	row, err := h.svc.SaveLocation(c.Request.Context(), middleware.DeviceIDFromContext(c), rec)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "row": row})
}

func (h *StoreHandler) ListLocations(c *gin.Context) {
	locs, err := h.svc.ListLocations(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "locations": locs})
}

func (h *StoreHandler) UpdateLocation(c *gin.Context) {
	var patch models.RecordPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json body"})
		return
	}
	rec, err := h.svc.UpdateLocation(c.Request.Context(), c.Param("row"), patch)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "location": rec})
}

func (h *StoreHandler) SaveRoute(c *gin.Context) {
	var f geojson.Feature
	if err := c.ShouldBindJSON(&f); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid geojson feature"})
		return
	}
	id, err := h.svc.SaveRoute(c.Request.Context(), middleware.DeviceIDFromContext(c), &f)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (h *StoreHandler) SavePhoto(c *gin.Context) {
	var body photoBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid json body"})
		return
	}
	link, err := h.svc.SavePhoto(c.Request.Context(), body.ImageBase64, body.Filename)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "photo_link": link})
}

func (h *StoreHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, repos.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "not found"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}
