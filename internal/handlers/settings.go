package handlers

import (
	"net/http"

	"greenhouse_control/internal/models"

	"github.com/gin-gonic/gin"
)

// @Summary      Get alert thresholds
// @Description  Unconfigured greenhouses return all bounds unset.
// @Tags         settings
// @Produce      json
// @Param        greenhouseId  path      string  true  "Greenhouse id"
// @Success      200           {object}  models.Settings
// @Router       /api/v1/settings/{greenhouseId} [get]
// @Security     BearerAuth
func (h *Handler) getSettings(c *gin.Context) {
	actor, _ := actorFrom(c)
	gh := c.Param("greenhouseId")
	st, err := h.services.GetThresholds(c.Request.Context(), actor.UserID, gh)
	if err != nil {
		h.respondError(c, "settings_get_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Save alert thresholds
// @Tags         settings
// @Accept       json
// @Produce      json
// @Param        greenhouseId  path      string             true  "Greenhouse id"
// @Param        body          body      models.Thresholds  true  "Thresholds"
// @Success      200           {object}  models.Settings
// @Failure      422           {object}  map[string]string
// @Router       /api/v1/settings/{greenhouseId}/thresholds [put]
// @Security     BearerAuth
func (h *Handler) saveThresholds(c *gin.Context) {
	var t models.Thresholds
	if ok := h.bindJSONOrBadRequest(c, &t); !ok {
		return
	}
	actor, _ := actorFrom(c)
	gh := c.Param("greenhouseId")
	st, err := h.services.SaveThresholds(c.Request.Context(), actor.UserID, gh, t)
	if err != nil {
		h.respondError(c, "settings_save_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, st)
}
