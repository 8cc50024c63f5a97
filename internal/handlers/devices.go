package handlers

import (
	"net/http"

	"greenhouse_control/internal/models"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

type controlRequest struct {
	Action       models.Action `json:"action" binding:"required"`
	Value        any           `json:"value,omitempty"`
	GreenhouseID string        `json:"greenhouseId,omitempty"`
	Notes        string        `json:"notes,omitempty"`
}

type setupRequest struct {
	GreenhouseID string `json:"greenhouseId"`
}

// @Summary      List devices
// @Tags         devices
// @Produce      json
// @Param        greenhouseId  query     string  false  "Greenhouse id"
// @Success      200           {object}  map[string]interface{}  "count, devices"
// @Failure      401           {object}  map[string]string
// @Failure      500           {object}  map[string]string
// @Router       /api/v1/devices [get]
// @Security     BearerAuth
func (h *Handler) listDevices(c *gin.Context) {
	gh := h.greenhouseParam(c)
	devices, err := h.services.ListDevices(c.Request.Context(), gh)
	if err != nil {
		h.respondError(c, "devices_list_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// @Summary      Get device
// @Tags         devices
// @Produce      json
// @Param        deviceId  path      string  true  "Device id"
// @Success      200       {object}  models.Device
// @Failure      404       {object}  map[string]string
// @Router       /api/v1/devices/{deviceId} [get]
// @Security     BearerAuth
func (h *Handler) getDevice(c *gin.Context) {
	id := c.Param("deviceId")
	d, err := h.services.GetDevice(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, "device_get_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Register device
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      models.Device  true  "Device"
// @Success      201   {object}  models.Device
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/v1/devices [post]
// @Security     BearerAuth
func (h *Handler) addDevice(c *gin.Context) {
	var d models.Device
	if ok := h.bindJSONOrBadRequest(c, &d); !ok {
		return
	}
	created, err := h.services.AddDevice(c.Request.Context(), d)
	if err != nil {
		h.respondError(c, "device_add_failed", err, "device_id", d.DeviceID)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// @Summary      Remove device
// @Tags         devices
// @Param        deviceId  path  string  true  "Device id"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/v1/devices/{deviceId} [delete]
// @Security     BearerAuth
func (h *Handler) removeDevice(c *gin.Context) {
	id := c.Param("deviceId")
	if err := h.services.RemoveDevice(c.Request.Context(), id); err != nil {
		h.respondError(c, "device_remove_failed", err, "device_id", id)
		return
	}
	c.Status(http.StatusNoContent)
}

// @Summary      Create the standard ESP32 actuators
// @Description  Missing canonical devices are created; existing ones are left as they are.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        body  body      setupRequest  false  "Greenhouse"
// @Success      200   {object}  map[string]interface{}  "count, devices"
// @Router       /api/v1/devices/setup-iot-devices [post]
// @Security     BearerAuth
func (h *Handler) setupIoTDevices(c *gin.Context) {
	var req setupRequest
	// empty body is fine
	_ = c.ShouldBindJSON(&req)
	gh := req.GreenhouseID
	if gh == "" {
		gh = h.greenhouseParam(c)
	}
	devices, err := h.services.EnsureCanonicalDevices(c.Request.Context(), gh)
	if err != nil {
		h.respondError(c, "devices_setup_failed", err, "greenhouse_id", gh)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(devices), "devices": devices})
}

// @Summary      Control device
// @Description  Applies the action, records a control-log entry and notifies the greenhouse room.
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        deviceId  path      string          true  "Device id"
// @Param        body      body      controlRequest  true  "Command"
// @Success      200       {object}  models.CommandOutcome
// @Failure      400       {object}  map[string]string
// @Failure      403       {object}  map[string]string
// @Failure      404       {object}  map[string]string
// @Router       /api/v1/devices/{deviceId}/control [post]
// @Security     BearerAuth
func (h *Handler) controlDevice(c *gin.Context) {
	var req controlRequest
	if ok := h.bindJSONOrBadRequest(c, &req); !ok {
		return
	}
	actor, _ := actorFrom(c)
	cmd := models.DeviceCommand{
		DeviceID:     c.Param("deviceId"),
		Action:       req.Action,
		GreenhouseID: req.GreenhouseID,
		Value:        req.Value,
		Notes:        req.Notes,
	}
	out, err := h.services.ControlDevice(c.Request.Context(), &actor, cmd)
	if err != nil {
		h.respondError(c, "device_control_failed", err, "device_id", cmd.DeviceID, "action", cmd.Action)
		return
	}
	c.JSON(http.StatusOK, out)
}

// @Summary      Update automation rules
// @Tags         devices
// @Accept       json
// @Produce      json
// @Param        deviceId  path      string                    true  "Device id"
// @Param        body      body      service.AutomationUpdate  true  "Rules"
// @Success      200       {object}  models.Device
// @Failure      404       {object}  map[string]string
// @Router       /api/v1/devices/{deviceId}/automation [put]
// @Security     BearerAuth
func (h *Handler) updateAutomation(c *gin.Context) {
	var u service.AutomationUpdate
	if ok := h.bindJSONOrBadRequest(c, &u); !ok {
		return
	}
	id := c.Param("deviceId")
	d, err := h.services.UpdateAutomation(c.Request.Context(), id, u)
	if err != nil {
		h.respondError(c, "device_automation_failed", err, "device_id", id)
		return
	}
	c.JSON(http.StatusOK, d)
}
