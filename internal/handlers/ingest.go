package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/domain"
	"github.com/yungbote/mindgraph-backend/internal/httpresp"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/services"
)

type IngestHandler struct {
	log         *logger.Logger
	constructor *services.Constructor
}

func NewIngestHandler(log *logger.Logger, constructor *services.Constructor) *IngestHandler {
	return &IngestHandler{log: log.With("handler", "ingest"), constructor: constructor}
}

type ingestRequest struct {
	Title    string            `json:"title"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	userID := c.Param("user_id")

	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	input := domain.UnstructuredInput{
		Title:    req.Title,
		Content:  req.Content,
		Metadata: req.Metadata,
	}
	update, err := h.constructor.Ingest(c.Request.Context(), input, userID)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}

	httpresp.Created(c, gin.H{
		"message":       "ingestion complete",
		"nodes":         len(update.Nodes),
		"relationships": len(update.Relationships),
	})
}
