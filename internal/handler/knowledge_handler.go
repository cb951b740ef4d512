package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/hongianguyen/IndochinaPro/internal/knowledge"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/errcode"
	"github.com/hongianguyen/IndochinaPro/internal/pkg/response"
)

type KnowledgeHandler struct {
	hub *knowledge.Hub
}

func NewKnowledgeHandler(hub *knowledge.Hub) *KnowledgeHandler {
	return &KnowledgeHandler{hub: hub}
}

type saveKnowledgeRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

func (h *KnowledgeHandler) Save(c *gin.Context) {
	var req saveKnowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	if req.Filename == "" || req.Content == "" {
		response.Error(c, errcode.ErrInvalid, "filename and content are required")
		return
	}
	if knowledge.Classify(req.Filename) == "" {
		response.Error(c, errcode.ErrInvalid, "filename does not match a structured knowledge slot")
		return
	}
	if err := h.hub.Save(c.Request.Context(), req.Filename, req.Content); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"saved": knowledge.Classify(req.Filename)})
}

func (h *KnowledgeHandler) List(c *gin.Context) {
	files, err := h.hub.Status(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	if files == nil {
		files = []string{}
	}
	response.Success(c, gin.H{"files": files})
}

func (h *KnowledgeHandler) Invalidate(c *gin.Context) {
	h.hub.Invalidate()
	response.Success(c, gin.H{"invalidated": true})
}
