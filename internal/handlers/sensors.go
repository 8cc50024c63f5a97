package handlers

import (
	"net/http"
	"strings"

	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

// @Summary      Latest readings
// @Description  Most recent reading of each sensor kind.
// @Tags         sensors
// @Produce      json
// @Param        greenhouseId  path      string  true  "Greenhouse id"
// @Success      200           {object}  map[string]interface{}  "count, readings"
// @Router       /api/v1/sensors/latest/{greenhouseId} [get]
// @Security     BearerAuth
func (h *Handler) latestReadings(c *gin.Context) {
	gh := c.Param("greenhouseId")
	readings, err := h.services.LatestReadings(c.Request.Context(), gh)
	if err != nil {
		h.respondError(c, "sensors_latest_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}

// @Summary      Sensor history
// @Tags         sensors
// @Produce      json
// @Param        greenhouseId  path      string  true   "Greenhouse id"
// @Param        sensorType    query     string  false  "Sensor kind"  Enums(DHT11,LDR,SOIL_MOISTURE,ULTRASONIC)
// @Param        deviceId      query     string  false  "Device id"
// @Param        from          query     string  false  "Start of range"
// @Param        to            query     string  false  "End of range"
// @Param        limit         query     int     false  "Max readings (default 100)"
// @Success      200           {object}  map[string]interface{}  "count, readings"
// @Failure      400           {object}  map[string]string
// @Router       /api/v1/sensors/historical/{greenhouseId} [get]
// @Security     BearerAuth
func (h *Handler) historicalReadings(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := service.HistoryFilter{
		GreenhouseID: c.Param("greenhouseId"),
		SensorType:   strings.ToUpper(strings.TrimSpace(c.Query("sensorType"))),
		DeviceID:     c.Query("deviceId"),
		From:         from,
		To:           to,
		Limit:        limit,
	}
	readings, err := h.services.History(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "sensors_history_failed", err, "greenhouse_id", f.GreenhouseID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(readings), "readings": readings})
}
