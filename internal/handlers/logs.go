package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"greenhouse_control/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	errFromInvalid = "invalid 'from' time; use RFC3339 or YYYY-MM-DD"
	errToInvalid   = "invalid 'to' time; use RFC3339 or YYYY-MM-DD"

	layoutDateTime = "2006-01-02 15:04:05"
	layoutDate     = "2006-01-02"
)

// isDateOnly reports whether the query string represents a date without time component.
func isDateOnly(s string) bool {
	return !strings.ContainsAny(s, "T ")
}

// queryRange reads ?from and ?to. A date-only 'to' covers the whole day.
// On failure the 400 has already been written.
func queryRange(c *gin.Context) (from, to time.Time, ok bool) {
	var err error
	if qs := c.Query("from"); qs != "" {
		from, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errFromInvalid})
			return time.Time{}, time.Time{}, false
		}
	}
	if qs := c.Query("to"); qs != "" {
		to, err = parseQueryTime(qs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": errToInvalid})
			return time.Time{}, time.Time{}, false
		}
		if isDateOnly(qs) {
			to = to.Add(24*time.Hour - time.Nanosecond).UTC()
		}
	}
	if !from.IsZero() && !to.IsZero() && from.After(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'from' must be <= 'to'"})
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

// @Summary      Device control history
// @Description  Filter by date (RFC3339, 'YYYY-MM-DD HH:MM:SS', or 'YYYY-MM-DD'). If 'to' is date-only, it is treated as end-of-day inclusive.
// @Tags         devices
// @Produce      json
// @Param        greenhouseId  query   string  false  "Greenhouse id"
// @Param        deviceId      query   string  false  "Device id"
// @Param        source        query   string  false  "Who caused the change"  Enums(manual,automation,iot_device,schedule)
// @Param        from          query   string  false  "Start of range"  example(2025-08-01)
// @Param        to            query   string  false  "End of range. Date-only treated as end of day."  example(2025-08-31)
// @Param        limit         query   int     false  "Max entries (default 50)"
// @Success      200           {object}  map[string]interface{}  "count, logs"
// @Failure      400           {object}  map[string]string
// @Failure      401           {object}  map[string]string
// @Failure      500           {object}  map[string]string
// @Router       /api/v1/control-history [get]
// @Security     BearerAuth
func (h *Handler) controlHistory(c *gin.Context) {
	from, to, ok := queryRange(c)
	if !ok {
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	f := service.LogFilter{
		GreenhouseID: h.greenhouseParam(c),
		DeviceID:     c.Query("deviceId"),
		Source:       strings.ToLower(strings.TrimSpace(c.Query("source"))),
		From:         from,
		To:           to,
		Limit:        limit,
	}
	entries, err := h.services.EventLog.List(c.Request.Context(), f)
	if err != nil {
		h.respondError(c, "control_history_failed", err, "from", from, "to", to, "source", f.Source)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count": len(entries),
		"logs":  entries,
	})
}

func parseQueryTime(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, layoutDateTime, layoutDate} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf(
		"invalid time format %q, expected one of: "+
			"RFC3339 (e.g. 2025-08-27T15:04:05Z), "+
			"'YYYY-MM-DD HH:MM:SS', "+
			"'YYYY-MM-DD'",
		s,
	)
}
