package handler

import (
	"net/http"

	"estate_crm_backend/internal/leads/service"
	"estate_crm_backend/internal/leads/transport"
	"estate_crm_backend/internal/pipeline/domain"
	"estate_crm_backend/platform/httpkit"
	"estate_crm_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterPipelineRoutes mounts the board routes on rg (/pipeline).
func (h *Handler) RegisterPipelineRoutes(rg *gin.RouterGroup) {
	rg.GET("/statuses", h.Statuses)
	rg.GET("/agents", h.Agents)
	rg.GET("/board", h.Board)
	rg.POST("/board/move", h.MoveLead)
	rg.GET("/filters", h.GetFilters)
	rg.PUT("/filters", h.ReplaceFilters)
	rg.PATCH("/filters", h.PatchFilters)
	rg.DELETE("/filters", h.ClearFilters)
	rg.GET("/agent-selection", h.GetAgentSelection)
	rg.PUT("/agent-selection", h.SetAgentSelection)
}

// RegisterLeadRoutes mounts the lead routes on rg (/leads).
func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id/pipeline-type", h.ChangePipelineType)
	rg.DELETE("/:id", h.Delete)
}

func (h *Handler) Statuses(c *gin.Context) {
	pipelineType, ok := h.bindPipelineType(c)
	if !ok {
		return
	}
	httpkit.OK(c, h.svc.Statuses(pipelineType))
}

func (h *Handler) Agents(c *gin.Context) {
	_, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	members, err := h.svc.TeamMembers(c.Request.Context(), orgID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, members)
}

func (h *Handler) Board(c *gin.Context) {
	id, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	pipelineType, ok := h.bindPipelineType(c)
	if !ok {
		return
	}
	resp, err := h.svc.Board(c.Request.Context(), orgID, id.UserID(), pipelineType)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) MoveLead(c *gin.Context) {
	id, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	var req transport.MoveLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.MoveLead(c.Request.Context(), orgID, id.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) GetFilters(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	httpkit.OK(c, h.svc.GetFilters(c.Request.Context(), id.UserID()))
}

func (h *Handler) ReplaceFilters(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	resp, err := h.svc.ReplaceFilters(c.Request.Context(), id.UserID(), body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) PatchFilters(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	body, err := c.GetRawData()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	resp, err := h.svc.PatchFilters(c.Request.Context(), id.UserID(), body)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) ClearFilters(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	httpkit.OK(c, h.svc.ClearFilters(c.Request.Context(), id.UserID()))
}

func (h *Handler) GetAgentSelection(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	httpkit.OK(c, h.svc.GetAgentSelection(c.Request.Context(), id.UserID()))
}

func (h *Handler) SetAgentSelection(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	var req transport.AgentSelectionRequest
	if !h.bindJSON(c, &req) {
		return
	}
	httpkit.OK(c, h.svc.SetAgentSelection(c.Request.Context(), id.UserID(), req))
}

func (h *Handler) Create(c *gin.Context) {
	_, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	var req transport.CreateLeadRequest
	if !h.bindJSON(c, &req) {
		return
	}
	lead, err := h.svc.Create(c.Request.Context(), orgID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	_, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	lead, err := h.svc.GetLead(c.Request.Context(), orgID, leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) ChangePipelineType(c *gin.Context) {
	id, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	var req transport.ChangePipelineTypeRequest
	if !h.bindJSON(c, &req) {
		return
	}
	resp, err := h.svc.ChangePipelineType(c.Request.Context(), orgID, id.UserID(), leadID, domain.PipelineType(req.PipelineType))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) Delete(c *gin.Context) {
	_, orgID, ok := httpkit.MustGetTenant(c)
	if !ok {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}
	if httpkit.HandleError(c, h.svc.Delete(c.Request.Context(), orgID, leadID)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return false
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return false
	}
	return true
}

// bindPipelineType reads ?pipelineType=, defaulting to purchase.
func (h *Handler) bindPipelineType(c *gin.Context) (domain.PipelineType, bool) {
	var q transport.BoardQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return "", false
	}
	if err := h.val.Struct(q); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return "", false
	}
	if q.PipelineType == "" {
		return domain.PipelinePurchase, true
	}
	return domain.PipelineType(q.PipelineType), true
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}
