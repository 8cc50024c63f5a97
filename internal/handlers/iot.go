package handlers

import (
	"net/http"

	"greenhouse_control/internal/models"

	"github.com/gin-gonic/gin"
)

type bulkRequest struct {
	Readings []models.TelemetryPayload `json:"readings" binding:"required"`
}

type bulkItemError struct {
	Index    int    `json:"index"`
	DeviceID string `json:"deviceId"`
	Error    string `json:"error"`
}

// @Summary      Ingest ESP32 telemetry
// @Description  Splits the payload into one reading per sensor kind, evaluates thresholds and pushes updates to the greenhouse room.
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      models.TelemetryPayload  true  "Telemetry"
// @Success      200   {object}  models.IngestResult
// @Failure      400   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Failure      500   {object}  map[string]string
// @Router       /api/iot [post]
func (h *Handler) ingest(c *gin.Context) {
	var p models.TelemetryPayload
	if ok := h.bindJSONOrBadRequest(c, &p); !ok {
		return
	}
	h.runIngest(c, p)
}

// @Summary      Ingest legacy telemetry
// @Description  Older firmware may send numbers as strings.
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      models.LegacyTelemetry  true  "Telemetry"
// @Success      200   {object}  models.IngestResult
// @Failure      400   {object}  map[string]string
// @Router       /api/iot/old-format [post]
// @Router       /api/iot/legacy [post]
func (h *Handler) ingestLegacy(c *gin.Context) {
	var l models.LegacyTelemetry
	if ok := h.bindJSONOrBadRequest(c, &l); !ok {
		return
	}
	h.runIngest(c, l.Payload())
}

func (h *Handler) runIngest(c *gin.Context, p models.TelemetryPayload) {
	res, err := h.services.HandleIngest(c.Request.Context(), p)
	if err != nil {
		h.respondError(c, "iot_ingest_failed", err, "device_id", p.DeviceID)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary      Ingest a batch of telemetry payloads
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      bulkRequest  true  "Batch"
// @Success      200   {object}  map[string]interface{}  "processed, total, errors"
// @Failure      400   {object}  map[string]string
// @Router       /api/iot/bulk-data [post]
func (h *Handler) ingestBulk(c *gin.Context) {
	var req bulkRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}

	ctx := c.Request.Context()
	processed := 0
	failed := []bulkItemError{}
	for i, p := range req.Readings {
		if _, err := h.services.HandleIngest(ctx, p); err != nil {
			h.log.Infow("iot_bulk_item_failed", "index", i, "device_id", p.DeviceID, "err", err)
			failed = append(failed, bulkItemError{Index: i, DeviceID: p.DeviceID, Error: err.Error()})
			continue
		}
		processed++
	}
	c.JSON(http.StatusOK, gin.H{
		"processed": processed,
		"total":     len(req.Readings),
		"errors":    failed,
	})
}

// @Summary      Report device status
// @Description  Sent by an actuator after it changes state on its own. A fault raises a malfunction alert.
// @Tags         iot
// @Accept       json
// @Produce      json
// @Param        body  body      models.StatusReport  true  "Status"
// @Success      200   {object}  models.Device
// @Failure      400   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/iot/device-status [post]
func (h *Handler) deviceStatus(c *gin.Context) {
	var rep models.StatusReport
	if ok := h.bindJSONOrBadRequest(c, &rep); !ok {
		return
	}
	d, err := h.services.ReportStatus(c.Request.Context(), rep)
	if err != nil {
		h.respondError(c, "iot_device_status_failed", err, "device_id", rep.DeviceID)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Poll desired device state
// @Tags         iot
// @Produce      json
// @Param        deviceId  path      string  true  "Device id"
// @Success      200       {object}  service.DeviceState
// @Failure      404       {object}  map[string]string
// @Router       /api/iot/device-commands/{deviceId} [get]
func (h *Handler) deviceCommands(c *gin.Context) {
	id := c.Param("deviceId")
	st, err := h.services.DeviceCommand(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "iot_device_commands_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, st)
}
