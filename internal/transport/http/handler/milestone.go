package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"founderos-api/internal/ai"
	"founderos-api/internal/app"
	"founderos-api/internal/transport/http/response"
)

type MilestoneHandler struct {
	importService *app.ImportService
}

func NewMilestoneHandler(importService *app.ImportService) *MilestoneHandler {
	return &MilestoneHandler{importService: importService}
}

type ParseImportRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *MilestoneHandler) ParseImport(c *gin.Context) {
	if _, ok := principalFromContext(c); !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ParseImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	preview, err := h.importService.ParseText(c.Request.Context(), req.Content)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoPhasesFound):
			response.Error(c, http.StatusUnprocessableEntity, response.CodeUnprocessableText,
				"could not extract any phases from the provided text")
		case errors.Is(err, ai.ErrGenerationProvider):
			response.Error(c, http.StatusBadGateway, response.CodeUpstreamProvider, "text parsing failed")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "parse import failed")
		}
		return
	}

	response.OK(c, preview)
}
