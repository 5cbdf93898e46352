package messaging

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/types"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/validation"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

const (
	msgNotConnected = "The bot is not connected to WhatsApp."
	msgInvalidInput = "Invalid number and/or message."
)

type Sender interface {
	IsConnected() bool
	SendTextMessage(ctx context.Context, chatID string, text string) (string, error)
}

type Controller struct {
	gateway Sender
}

func New(gateway Sender) *Controller {
	return &Controller{gateway: gateway}
}

// ChatID coerces a bare number into a user chat id and keeps ids that already
// carry a server suffix.
func ChatID(number string) string {
	number = strings.TrimSpace(number)
	if number == "" || strings.Contains(number, "@") {
		return number
	}
	return strings.TrimPrefix(number, "+") + "@c.us"
}

// SendMessage
// @Summary     Send a text message
// @Tags        WhatsApp
// @Accept      json
// @Produce     json
// @Param       body body typWhatsApp.RequestSendMessage true "Recipient and text"
// @Success     200 {object} router.SendResult
// @Failure     400 {object} router.SendResult
// @Failure     500 {object} router.SendResult
// @Router      /api/send-message [post]
func (ctl *Controller) SendMessage(c *fiber.Ctx) error {
	if !ctl.gateway.IsConnected() {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgNotConnected)
	}

	var req typWhatsApp.RequestSendMessage
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgInvalidInput)
	}

	chatID := ChatID(req.Number)
	if chatID == "" || strings.TrimSpace(req.Message) == "" {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgInvalidInput)
	}
	if err := validation.ValidateRecipient(req.Number); err != nil {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgInvalidInput)
	}
	if err := validation.ValidateMessage(req.Message); err != nil {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	msgID, err := ctl.gateway.SendTextMessage(ctx, chatID, req.Message)
	switch {
	case errors.Is(err, pkgWhatsApp.ErrNotConnected):
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgNotConnected)
	case errors.Is(err, pkgWhatsApp.ErrInvalidChatID):
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, msgInvalidInput)
	case err != nil:
		log.Chat(chatID, "send-message").WithError(err).Error("Failed to send message")
		return router.ResponseSendError(c, fiber.StatusInternalServerError, "Failed to send message.", err)
	}

	log.Chat(chatID, "send-message").WithField("message_id", msgID).Info("Message sent")
	return router.ResponseSendSuccess(c, "Message sent successfully!")
}
