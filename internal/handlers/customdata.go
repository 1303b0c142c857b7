package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/httpresp"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/services"
)

var errMissingOutputSchema = errors.New("output_schema is required")

// CustomDataHandler accepts pre-structured nodes and relationships and
// merges them through the same path ingestion uses.
type CustomDataHandler struct {
	log   *logger.Logger
	ops   *services.GraphOps
	users *services.UserService
}

func NewCustomDataHandler(log *logger.Logger, ops *services.GraphOps, users *services.UserService) *CustomDataHandler {
	return &CustomDataHandler{log: log.With("handler", "custom_data"), ops: ops, users: users}
}

type customDataRequest struct {
	Nodes         []domain.Node         `json:"nodes"`
	Relationships []domain.Relationship `json:"relationships"`
}

func (h *CustomDataHandler) Upsert(c *gin.Context) {
	userID := c.Param("user_id")

	exists, err := h.users.UserExists(c.Request.Context(), userID)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	if !exists {
		httpresp.FromError(c, kgerr.Errorf(kgerr.KindUserAbsent, "handlers.custom_data", "user does not exist"))
		return
	}

	var req customDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	update := domain.GraphUpdate{Nodes: req.Nodes, Relationships: req.Relationships}
	if err := h.ops.UpdateGraph(c.Request.Context(), update, userID); err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"status": "ok"})
}
