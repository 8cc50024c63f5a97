package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"greenhouse_control/internal/apperr"

	"github.com/gin-gonic/gin"
)

const (
	statusOK           = "ok"
	errInvalidBodyPref = "invalid body: "
	errLimitInvalid    = "invalid 'limit'; use a positive integer"
)

// respondError logs err under logKey and writes the mapped status. Internal
// failures get a generic message; everything else echoes the error text.
func (h *Handler) respondError(c *gin.Context, logKey string, err error, kv ...interface{}) {
	code := apperr.HTTPStatus(err)
	fields := append([]interface{}{"err", err}, kv...)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		h.log.Errorw(logKey, fields...)
		msg = http.StatusText(code)
	} else {
		h.log.Infow(logKey, fields...)
	}
	c.JSON(code, gin.H{"error": msg})
}

// bindJSONOrBadRequest tries to bind the request body into dst and writes a 400 JSON on failure.
// Returns false if the request was already handled (aborted), true otherwise.
func (h *Handler) bindJSONOrBadRequest(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.log.Infow("bad_request_body", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return false
	}
	return true
}

var errBadLimit = errors.New(errLimitInvalid)

// queryLimit parses ?limit. Missing means 0, which lets the service default apply.
func queryLimit(c *gin.Context) (int, error) {
	s := c.Query("limit")
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errBadLimit
	}
	return n, nil
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}
