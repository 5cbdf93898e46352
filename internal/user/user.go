package user

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

type ContactLister interface {
	Contacts(ctx context.Context) ([]pkgWhatsApp.Contact, error)
}

type Controller struct {
	gateway ContactLister
}

func New(gateway ContactLister) *Controller {
	return &Controller{gateway: gateway}
}

// GetContacts
// @Summary     List contacts
// @Description Individual contacts of the paired account
// @Tags        WhatsApp
// @Produce     json
// @Success     200 {array}  pkgWhatsApp.Contact
// @Failure     400 {object} router.SendResult
// @Router      /api/contacts [get]
func (ctl *Controller) GetContacts(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	contacts, err := ctl.gateway.Contacts(ctx)
	if errors.Is(err, pkgWhatsApp.ErrNotConnected) {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, "The bot is not connected to WhatsApp.")
	}
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list contacts")
		return router.ResponseJSON(c, fiber.StatusInternalServerError, fiber.Map{"error": "Failed to fetch contacts."})
	}

	return router.ResponseJSON(c, fiber.StatusOK, contacts)
}
