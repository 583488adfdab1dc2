package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging_service/internal/entities"
	"messaging_service/internal/usecases"
)

// OutboundURLs are the fixed per-channel provider endpoints.
type OutboundURLs struct {
	SMS   string
	Email string
}

type Handler struct {
	ingest       *usecases.IngestService
	logger       *zap.SugaredLogger
	outboundURLs OutboundURLs
}

func NewHandler(ingest *usecases.IngestService, logger *zap.SugaredLogger, outboundURLs OutboundURLs) *Handler {
	return &Handler{
		ingest:       ingest,
		logger:       logger,
		outboundURLs: outboundURLs,
	}
}

func SetupRoutes(r *gin.Engine, h *Handler, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20)) // 1MB max request size
	r.Use(middleware.RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(middleware.RateLimitPerClient(20, 40))
	{
		api.POST("/inbound_sms", h.InboundSMS)
		api.POST("/outbound_sms", h.OutboundSMS)
		api.POST("/inbound_email", h.InboundEmail)
		api.POST("/outbound_email", h.OutboundEmail)
	}
}

func (h *Handler) InboundSMS(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	h.processInbound(c, payload, entities.CommMethodPhone, smsPayloadFields(entities.DirectionInbound), nil)
}

func (h *Handler) OutboundSMS(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	h.processOutbound(c, payload, entities.CommMethodPhone, smsPayloadFields(entities.DirectionOutbound), nil, h.outboundURLs.SMS)
}

func (h *Handler) InboundEmail(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	// The email provider does not send a type field.
	payload["type"] = "email"
	h.processInbound(c, payload, entities.CommMethodEmail, emailPayloadFields(entities.DirectionInbound), []string{"body", "attachments"})
}

func (h *Handler) OutboundEmail(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	payload["type"] = "email"
	h.processOutbound(c, payload, entities.CommMethodEmail, emailPayloadFields(entities.DirectionOutbound), []string{"body", "attachments"}, h.outboundURLs.Email)
}

func (h *Handler) processInbound(c *gin.Context, payload map[string]any, commType entities.CommMethodType, fields []FieldSpec, oneOf []string) {
	if err := ValidatePayload(payload, fields, oneOf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID, err := h.ingest.ProcessInbound(c.Request.Context(), payload, commType)
	if err != nil {
		h.writeError(c, commType, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "message received successfully", "message_id": messageID})
}

func (h *Handler) processOutbound(c *gin.Context, payload map[string]any, commType entities.CommMethodType, fields []FieldSpec, oneOf []string, endpoint string) {
	if err := ValidatePayload(payload, fields, oneOf); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	messageID, err := h.ingest.ProcessOutbound(c.Request.Context(), payload, commType, endpoint)
	if err != nil {
		h.writeError(c, commType, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "message sent successfully", "message_id": messageID})
}

// writeError maps the core's error taxonomy to a caller-visible status:
// not-found and validation failures are the caller's fault (400), delivery
// failures and integrity violations are ours (500).
func (h *Handler) writeError(c *gin.Context, commType entities.CommMethodType, err error) {
	h.logger.Errorw("error processing payload", "channel", commType, "error", err)

	var notFound *entities.NotFoundError
	var validation *entities.ValidationError
	var delivery *entities.DeliveryFailedError

	switch {
	case errors.As(err, &notFound), errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &delivery):
		c.JSON(http.StatusInternalServerError, gin.H{
			"status": "message failed to send",
			"error":  "failed to send message",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func bindPayload(c *gin.Context) (map[string]any, bool) {
	var payload map[string]any
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing json payload"})
		return nil, false
	}
	return payload, true
}
