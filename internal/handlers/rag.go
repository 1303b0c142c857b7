package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/mindgraph-backend/internal/httpresp"
	"github.com/yungbote/mindgraph-backend/internal/kgerr"
	"github.com/yungbote/mindgraph-backend/internal/platform/logger"
	"github.com/yungbote/mindgraph-backend/internal/services"
)

type RAGHandler struct {
	log   *logger.Logger
	rag   *services.RAG
	users *services.UserService
}

func NewRAGHandler(log *logger.Logger, rag *services.RAG, users *services.UserService) *RAGHandler {
	return &RAGHandler{log: log.With("handler", "rag"), rag: rag, users: users}
}

type queryRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

type askRequest struct {
	Query        string         `json:"query"`
	OutputSchema map[string]any `json:"output_schema"`
}

func (h *RAGHandler) requireUser(c *gin.Context) (string, bool) {
	userID := c.Param("user_id")
	exists, err := h.users.UserExists(c.Request.Context(), userID)
	if err != nil {
		httpresp.FromError(c, err)
		return "", false
	}
	if !exists {
		httpresp.FromError(c, kgerr.Errorf(kgerr.KindUserAbsent, "handlers.rag", "user does not exist"))
		return "", false
	}
	return userID, true
}

func (h *RAGHandler) Query(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	answer, err := h.rag.Query(c.Request.Context(), req.Query, userID)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"answer": answer})
}

func (h *RAGHandler) QueryVector(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	names, err := h.rag.QueryVectorOnly(c.Request.Context(), req.Query, userID, req.TopK)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"query": req.Query, "response": names})
}

func (h *RAGHandler) Search(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	result, err := h.rag.Similar(c.Request.Context(), req.Query, userID, req.TopK)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"query": result.Query, "results": result.Results})
}

func (h *RAGHandler) Ask(c *gin.Context) {
	userID, ok := h.requireUser(c)
	if !ok {
		return
	}

	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if len(req.OutputSchema) == 0 {
		httpresp.Fail(c, http.StatusBadRequest, "invalid_body", errMissingOutputSchema)
		return
	}

	result, err := h.rag.AskStructured(c.Request.Context(), req.Query, userID, "ask_response", req.OutputSchema)
	if err != nil {
		httpresp.FromError(c, err)
		return
	}
	httpresp.OK(c, gin.H{"result": result})
}
