package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"founderos-api/internal/transport/http/middleware"
)

// principal is the authenticated caller injected by the JWT middleware.
type principal struct {
	UserID      uuid.UUID
	WorkspaceID uuid.UUID
}

func principalFromContext(c *gin.Context) (principal, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return principal{}, false
	}
	workspaceIDAny, exists := c.Get(middleware.ContextWorkspaceIDKey)
	if !exists {
		return principal{}, false
	}
	userID, ok := userIDAny.(uuid.UUID)
	if !ok {
		return principal{}, false
	}
	workspaceID, ok := workspaceIDAny.(uuid.UUID)
	if !ok {
		return principal{}, false
	}
	return principal{UserID: userID, WorkspaceID: workspaceID}, true
}
