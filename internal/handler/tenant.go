package handler

import (
	"net/http"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

type TenantHandler struct {
	svc *service.TenantService
}

func NewTenantHandler(svc *service.TenantService) *TenantHandler {
	return &TenantHandler{svc: svc}
}

func (h *TenantHandler) Get(c *gin.Context) {
	tenant, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, tenant)
}

// ChangePlan is called by the billing integration after checkout or renewal.
func (h *TenantHandler) ChangePlan(c *gin.Context) {
	var req model.PlanChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()).WithReason("invalid_plan_change"))
		return
	}
	res, err := h.svc.ChangePlan(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, res)
}
