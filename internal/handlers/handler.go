package handlers

import (
	"net/http"

	"greenhouse_control/internal/logger"
	"greenhouse_control/internal/models"
	"greenhouse_control/internal/realtime"
	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Rooms is the membership side of the room registry.
type Rooms interface {
	Join(key string, sub realtime.Subscriber) bool
	Leave(key string, sub realtime.Subscriber) bool
	LeaveAll(sub realtime.Subscriber) []string
}

type Options struct {
	DefaultGreenhouse string
	SendBuffer        int      // per-socket outbound queue
	AllowedOrigins    []string // empty allows any origin
	Metrics           http.Handler
}

// Handler wires HTTP layer to services and logging.
type Handler struct {
	services *service.Service
	rooms    Rooms
	log      *logger.Logger
	opts     Options
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, rooms Rooms, log *logger.Logger, opts Options) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	if opts.DefaultGreenhouse == "" {
		opts.DefaultGreenhouse = models.DefaultGreenhouseID
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaultSendBuffer
	}
	return &Handler{services: services, rooms: rooms, log: log, opts: opts}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/health", h.health)
	if h.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(h.opts.Metrics))
	}

	h.registerAuthRoutes(router)
	h.registerIoTRoutes(router)
	h.registerAPIRoutes(router)

	// Socket auth happens before the upgrade.
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
		auth.GET("/me", h.userIdentity, h.me)
	}
}

// Device-facing endpoints. Firmware has no token; payloads carry a pincode.
func (h *Handler) registerIoTRoutes(r *gin.Engine) {
	iot := r.Group("/api/iot")
	{
		iot.POST("", h.ingest)
		iot.POST("/old-format", h.ingestLegacy)
		iot.POST("/legacy", h.ingestLegacy)
		iot.POST("/bulk-data", h.ingestBulk)
		iot.POST("/device-status", h.deviceStatus)
		iot.GET("/device-commands/:deviceId", h.deviceCommands)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdentity)
	{
		h.registerDeviceRoutes(api)
		h.registerAlertRoutes(api)
		h.registerSettingsRoutes(api)
		h.registerSensorRoutes(api)
		api.GET("/control-history", h.controlHistory)
	}
}

func (h *Handler) registerDeviceRoutes(api *gin.RouterGroup) {
	operate := requireRole(models.RoleAdmin, models.RoleOperator)

	devices := api.Group("/devices")
	{
		devices.GET("", h.listDevices)
		devices.GET("/:deviceId", h.getDevice)
		devices.POST("", operate, h.addDevice)
		devices.DELETE("/:deviceId", requireRole(models.RoleAdmin), h.removeDevice)
		devices.POST("/setup-iot-devices", operate, h.setupIoTDevices)
		// Body example: {"action":"set_intensity","value":60}
		devices.POST("/:deviceId/control", operate, h.controlDevice)
		devices.PUT("/:deviceId/automation", operate, h.updateAutomation)
	}
}

func (h *Handler) registerAlertRoutes(api *gin.RouterGroup) {
	alerts := api.Group("/alerts")
	{
		alerts.GET("", h.listAlerts)
		alerts.GET("/active", h.activeAlerts)
		alerts.GET("/stats", h.alertStats)
		alerts.POST("", h.createAlert)
		alerts.PUT("/:alertId/resolve", h.resolveAlert)
		alerts.DELETE("/:alertId", requireRole(models.RoleAdmin), h.deleteAlert)
	}
}

func (h *Handler) registerSettingsRoutes(api *gin.RouterGroup) {
	settings := api.Group("/settings")
	{
		settings.GET("/:greenhouseId", h.getSettings)
		settings.PUT("/:greenhouseId/thresholds", h.saveThresholds)
	}
}

func (h *Handler) registerSensorRoutes(api *gin.RouterGroup) {
	sensors := api.Group("/sensors")
	{
		sensors.GET("/latest/:greenhouseId", h.latestReadings)
		sensors.GET("/historical/:greenhouseId", h.historicalReadings)
	}
}

// greenhouseParam picks the greenhouse from the query, falling back to the default.
func (h *Handler) greenhouseParam(c *gin.Context) string {
	if gh := c.Query("greenhouseId"); gh != "" {
		return gh
	}
	return h.opts.DefaultGreenhouse
}
