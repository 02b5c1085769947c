package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/GoPolymarket/hookgate/internal/middleware"
	"github.com/GoPolymarket/hookgate/internal/model"
	"github.com/GoPolymarket/hookgate/internal/pkg/apperrors"
	"github.com/GoPolymarket/hookgate/internal/service"
	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps how much of a submission is read. The payload limit
// itself is enforced on the parsed payload field.
const MaxBodyBytes = 64 << 10

const (
	HeaderUsageLimit     = "X-Usage-Limit"
	HeaderUsageUsed      = "X-Usage-Used"
	HeaderUsageRemaining = "X-Usage-Remaining"
	HeaderUsageWarning   = "X-Usage-Warning"
)

type IngestHandler struct {
	svc *service.IngestService
}

func NewIngestHandler(svc *service.IngestService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

func (h *IngestHandler) Submit(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, MaxBodyBytes+1))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("failed to read request body").WithReason("unreadable_body"))
		return
	}

	res, err := h.svc.Ingest(c.Request.Context(), service.IngestRequest{
		Body:         body,
		BodyTooLarge: len(body) > MaxBodyBytes,
		Credential:   c.GetHeader(middleware.HeaderAPIKey),
		Signature:    c.GetHeader(middleware.HeaderSignature),
		Timestamp:    c.GetHeader(middleware.HeaderTimestamp),
		Info:         middleware.RequestInfoFrom(c),
	})
	if err != nil {
		c.Error(err)
		return
	}

	if u := res.Usage; u != nil {
		c.Header(HeaderUsageLimit, strconv.FormatInt(u.Limit, 10))
		c.Header(HeaderUsageUsed, strconv.FormatInt(u.Used, 10))
		c.Header(HeaderUsageRemaining, strconv.FormatInt(u.Remaining, 10))
		c.Header(middleware.HeaderRateLimitPlan, u.Plan.String())
		c.Header(middleware.HeaderRateLimitRemaining, strconv.Itoa(u.RateRemaining))
		if u.Warning != "" {
			c.Header(HeaderUsageWarning, u.Warning)
		}
	}
	c.JSON(http.StatusOK, model.IngestResponse{EventID: res.EventID, Status: "accepted"})
}
