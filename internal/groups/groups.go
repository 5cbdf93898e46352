package groups

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

type GroupLister interface {
	Groups(ctx context.Context) ([]pkgWhatsApp.Group, error)
}

type Controller struct {
	gateway GroupLister
}

func New(gateway GroupLister) *Controller {
	return &Controller{gateway: gateway}
}

// List
// @Summary     List groups
// @Description Groups the paired account has joined
// @Tags        WhatsApp
// @Produce     json
// @Success     200 {array}  pkgWhatsApp.Group
// @Failure     400 {object} router.SendResult
// @Router      /api/groups [get]
func (ctl *Controller) List(c *fiber.Ctx) error {
	startFetch := time.Now()

	ctx := c.UserContext()
	if ctx == nil {
		ctx = context.Background()
	}

	groups, err := ctl.gateway.Groups(ctx)
	if errors.Is(err, pkgWhatsApp.ErrNotConnected) {
		return router.ResponseSendFailure(c, fiber.StatusBadRequest, "The bot is not connected to WhatsApp.")
	}
	if err != nil {
		log.Print(c).WithError(err).Error("Failed to list groups")
		return router.ResponseJSON(c, fiber.StatusInternalServerError, fiber.Map{"error": "Failed to fetch groups."})
	}

	log.Print(c).WithField("group_count", len(groups)).WithField("fetch_duration_ms", time.Since(startFetch).Milliseconds()).Debug("Groups listed")
	return router.ResponseJSON(c, fiber.StatusOK, groups)
}
