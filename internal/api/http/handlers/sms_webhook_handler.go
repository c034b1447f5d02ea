package handlers

import (
	"encoding/xml"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/pediamatch/intake-service/internal/api/dto"
	"github.com/pediamatch/intake-service/internal/service"
)

// Reply texts for requests that never reach the reply service.
const (
	ReplyFailedMessage  = "Sorry, we could not update the consultation right now. Please try again later."
	ReplyLimitedMessage = "Too many replies received. Please wait a minute and try again."
)

// SmsWebhookHandler answers inbound operator replies with TwiML.
type SmsWebhookHandler struct {
	replies *service.SmsReplyService
	logger  *zap.Logger
}

// NewSmsWebhookHandler constructs handler.
func NewSmsWebhookHandler(replies *service.SmsReplyService, logger *zap.Logger) *SmsWebhookHandler {
	return &SmsWebhookHandler{replies: replies, logger: logger}
}

// Receive POST /sms/webhook. Always answers 200 so the provider does not
// redeliver; failures are described in the reply text.
func (h *SmsWebhookHandler) Receive(c *fiber.Ctx) error {
	var req dto.SmsWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		h.logger.Warn("sms webhook payload unreadable", zap.Error(err))
	}

	outcome, err := h.replies.HandleReply(c.UserContext(), req.From, req.Body)
	if err != nil {
		h.logger.Error("sms reply failed", zap.String("from", req.From), zap.Error(err))
		return WriteTwiML(c, ReplyFailedMessage)
	}
	if outcome.NotifyErr != nil {
		h.logger.Warn("sms reply saved, notification failed",
			zap.Int64("patient_id", outcome.Patient.ID),
			zap.Error(outcome.NotifyErr))
	}
	return WriteTwiML(c, outcome.Message)
}

// WriteTwiML answers 200 with a single-message TwiML document.
func WriteTwiML(c *fiber.Ctx, message string) error {
	out, err := xml.Marshal(dto.TwiMLResponse{Message: message})
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, fiber.MIMEApplicationXMLCharsetUTF8)
	return c.Status(fiber.StatusOK).SendString(xml.Header + string(out))
}
