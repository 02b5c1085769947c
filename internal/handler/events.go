package handler

import (
	"net/http"
	"strconv"

	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	svc *service.EventService
}

func NewEventHandler(svc *service.EventService) *EventHandler {
	return &EventHandler{svc: svc}
}

func (h *EventHandler) List(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing tenant context", nil))
		return
	}

	limit, err := queryLimit(c, service.DefaultEventListLimit)
	if err != nil {
		c.Error(err)
		return
	}

	list, err := h.svc.List(c.Request.Context(), p.TenantID, limit)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func queryLimit(c *gin.Context, def int) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apperrors.NewInvalidRequest("limit must be a positive integer").WithReason("invalid_limit")
	}
	return n, nil
}
