package index

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

type StatusSource interface {
	Status() pkgWhatsApp.Status
}

type Controller struct {
	gateway StatusSource
}

func New(gateway StatusSource) *Controller {
	return &Controller{gateway: gateway}
}

// Index
// @Summary     Show The Status of The Server
// @Tags        Root
// @Produce     json
// @Success     200
// @Router      / [get]
func (ctl *Controller) Index(c *fiber.Ctx) error {
	return router.ResponseSuccess(c, "Go WhatsApp Chatbot Flow is running")
}

// Status
// @Summary     Connection status
// @Description Connected flag and, while pairing, the QR code as a base64 PNG
// @Tags        WhatsApp
// @Produce     json
// @Success     200 {object} pkgWhatsApp.Status
// @Router      /api/status [get]
func (ctl *Controller) Status(c *fiber.Ctx) error {
	return router.ResponseJSON(c, http.StatusOK, ctl.gateway.Status())
}
