package handler

import (
	"net/http"

	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

const defaultAuditLimit = 100

type AuditHandler struct {
	svc *service.AuditService
}

func NewAuditHandler(svc *service.AuditService) *AuditHandler {
	return &AuditHandler{svc: svc}
}

// List returns the security audit trail of the tenant named by the tenant
// query parameter, or unauthenticated activity when it is omitted.
func (h *AuditHandler) List(c *gin.Context) {
	limit, err := queryLimit(c, defaultAuditLimit)
	if err != nil {
		c.Error(err)
		return
	}
	tenant := c.DefaultQuery("tenant", model.AuditSystemTenant)

	records, err := h.svc.List(c.Request.Context(), tenant, limit)
	if err != nil {
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": records})
}
