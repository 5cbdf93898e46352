package device

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
)

type Reconnector interface {
	Reconnect(ctx context.Context) error
}

type Controller struct {
	gateway Reconnector
}

func New(gateway Reconnector) *Controller {
	return &Controller{gateway: gateway}
}

// Reconnect
// @Summary     Reconnect the WhatsApp session
// @Description Logs the session out when it is logged in and initializes a new one. Poll /api/status for the new QR code.
// @Tags        WhatsApp
// @Produce     json
// @Success     200 {object} router.SendResult
// @Failure     500 {object} router.SendResult
// @Router      /api/reconnect [post]
func (ctl *Controller) Reconnect(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	if err := ctl.gateway.Reconnect(ctx); err != nil {
		log.Print(c).WithError(err).Error("Reconnect failed")
		return router.ResponseSendError(c, fiber.StatusInternalServerError, "Reconnect attempt failed", err)
	}
	return router.ResponseSendSuccess(c, "Reconnect command sent. Check the status for a new QR code.")
}
