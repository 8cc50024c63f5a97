package handlers

import (
	"errors"
	"net/http"
	"strings"

	"greenhouse_control/internal/models"

	"github.com/gin-gonic/gin"
)

const actorKey = "actor"

var (
	errMissingAuth = errors.New("missing Authorization header")
	errBadAuth     = errors.New("invalid Authorization header format")
)

// bearerToken extracts the token from "Authorization: Bearer <token>".
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingAuth
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", errBadAuth
	}
	return parts[1], nil
}

func (h *Handler) userIdentity(c *gin.Context) {
	token, err := bearerToken(c.GetHeader("Authorization"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": err.Error(),
		})
		return
	}

	actor, err := h.services.ParseToken(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	// store in Gin context
	c.Set(actorKey, actor)
	c.Next()
}

// requireRole rejects actors whose role is not listed. Must run after userIdentity.
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error": "role " + actor.Role + " may not perform this action",
		})
	}
}

func actorFrom(c *gin.Context) (models.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return models.Actor{}, false
	}
	actor, ok := v.(models.Actor)
	return actor, ok
}
