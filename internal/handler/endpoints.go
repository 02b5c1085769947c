package handler

import (
	"net/http"

	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

type EndpointHandler struct {
	svc *service.EndpointService
}

func NewEndpointHandler(svc *service.EndpointService) *EndpointHandler {
	return &EndpointHandler{svc: svc}
}

func tenantID(c *gin.Context) (string, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing tenant context", nil))
		return "", false
	}
	return p.TenantID, true
}

func (h *EndpointHandler) List(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	eps, err := h.svc.List(c.Request.Context(), tid)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoints": eps})
}

func (h *EndpointHandler) Create(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var req model.EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()).WithReason("malformed_json"))
		return
	}
	ep, err := h.svc.Create(c.Request.Context(), tid, req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, ep)
}

func (h *EndpointHandler) Update(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	var req model.EndpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()).WithReason("malformed_json"))
		return
	}
	ep, err := h.svc.Update(c.Request.Context(), tid, c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, ep)
}

func (h *EndpointHandler) Delete(c *gin.Context) {
	tid, ok := tenantID(c)
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), tid, c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
