package handlers

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/httpresp"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/services"
)

type UserHandler struct {
	log   *logger.Logger
	users *services.UserService
}

func NewUserHandler(log *logger.Logger, users *services.UserService) *UserHandler {
	return &UserHandler{log: log.With("handler", "user"), users: users}
}

// Create merges the user root. 201 on first creation, 200 when the user
// already existed.
func (h *UserHandler) Create(c *gin.Context) {
	userID := c.Param("user_id")

	existed, err := h.users.CreateUser(c.Request.Context(), userID)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	if existed {
		httpresp.OK(c, gin.H{"message": fmt.Sprintf("user %q already exists", userID)})
		return
	}
	httpresp.Created(c, gin.H{"message": fmt.Sprintf("user %q created", userID)})
}

func (h *UserHandler) Delete(c *gin.Context) {
	userID := c.Param("user_id")

	if err := h.users.DeleteUser(c.Request.Context(), userID); err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"message": fmt.Sprintf("user %q deleted", userID)})
}
