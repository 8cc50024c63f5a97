package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"greenhouse_control/internal/apperr"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/repository"

	"github.com/gin-gonic/gin"
)

type resolveRequest struct {
	ActionTaken string `json:"actionTaken"`
}

// @Summary      List alerts
// @Tags         alerts
// @Produce      json
// @Param        greenhouseId  query     string  false  "Greenhouse id"
// @Param        resolved      query     bool    false  "Only resolved (true) or unresolved (false)"
// @Param        severity      query     string  false  "Severity"  Enums(LOW,MEDIUM,HIGH,CRITICAL)
// @Param        limit         query     int     false  "Max alerts, newest first"
// @Success      200           {object}  map[string]interface{}  "count, alerts"
// @Failure      400           {object}  map[string]string
// @Router       /api/v1/alerts [get]
// @Security     BearerAuth
func (h *Handler) listAlerts(c *gin.Context) {
	f := repository.AlertFilter{
		GreenhouseID: h.greenhouseParam(c),
		Severity:     models.Severity(strings.ToUpper(strings.TrimSpace(c.Query("severity")))),
	}
	if s := c.Query("resolved"); s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'resolved'; use true or false"})
			return
		}
		f.Resolved = &b
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f.Limit = limit

	alerts, err := h.services.ListAlerts(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "alerts_list_failed", err, "greenhouse_id", f.GreenhouseID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

// @Summary      Unresolved alerts
// @Tags         alerts
// @Produce      json
// @Param        greenhouseId  query     string  false  "Greenhouse id"
// @Success      200           {object}  map[string]interface{}  "count, alerts"
// @Router       /api/v1/alerts/active [get]
// @Security     BearerAuth
func (h *Handler) activeAlerts(c *gin.Context) {
	gh := h.greenhouseParam(c)
	alerts, err := h.services.ActiveAlerts(c.Request.Context(), gh)
	if err != nil {
		h.respondError(c, "alerts_active_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(alerts), "alerts": alerts})
}

// @Summary      Alert statistics
// @Tags         alerts
// @Produce      json
// @Param        greenhouseId  query     string  false  "Greenhouse id"
// @Param        hours         query     int     false  "Window in hours (default 24)"
// @Success      200           {object}  models.AlertStats
// @Router       /api/v1/alerts/stats [get]
// @Security     BearerAuth
func (h *Handler) alertStats(c *gin.Context) {
	gh := h.greenhouseParam(c)
	hours := 0
	if s := c.Query("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'hours'; use a positive integer"})
			return
		}
		hours = n
	}
	stats, err := h.services.AlertStats(c.Request.Context(), gh, hours)
	if err != nil {
		h.respondError(c, "alerts_stats_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// @Summary      Raise alert manually
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        body  body      models.AlertIntent  true  "Alert"
// @Success      201   {object}  models.Alert
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/alerts [post]
// @Security     BearerAuth
func (h *Handler) createAlert(c *gin.Context) {
	var in models.AlertIntent
	if ok := h.bindJSONOrBadRequest(c, &in); !ok {
		return
	}
	if in.GreenhouseID == "" {
		in.GreenhouseID = h.greenhouseParam(c)
	}
	a, err := h.services.CreateAlert(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, "alert_create_failed", err, "greenhouse_id", in.GreenhouseID)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// @Summary      Resolve alert
// @Description  Resolving an already resolved alert returns 409 and the unchanged alert.
// @Tags         alerts
// @Accept       json
// @Produce      json
// @Param        alertId  path      string          true   "Alert id"
// @Param        body     body      resolveRequest  false  "Resolution"
// @Success      200      {object}  models.Alert
// @Failure      404      {object}  map[string]string
// @Failure      409      {object}  map[string]interface{}
// @Router       /api/v1/alerts/{alertId}/resolve [put]
// @Security     BearerAuth
func (h *Handler) resolveAlert(c *gin.Context) {
	var req resolveRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	actor, _ := actorFrom(c)
	id := c.Param("alertId")

	a, err := h.services.ResolveAlert(c.Request.Context(), id, actor.Username, req.ActionTaken)
	if errors.Is(err, apperr.ErrAlreadyResolved) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "alert": a})
		return
	}
	if err != nil {
		h.respondError(c, "alert_resolve_failed", err, "alert_id", id)
		return
	}
	c.JSON(http.StatusOK, a)
}

// @Summary      Delete alert
// @Tags         alerts
// @Param        alertId  path  string  true  "Alert id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/alerts/{alertId} [delete]
// @Security     BearerAuth
func (h *Handler) deleteAlert(c *gin.Context) {
	id := c.Param("alertId")
	if err := h.services.DeleteAlert(c.Request.Context(), id); err != nil {
		h.respondError(c, "alert_delete_failed", err, "alert_id", id)
		return
	}
	c.Status(http.StatusNoContent)
}
