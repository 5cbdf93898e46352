package admin

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	typWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/types"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/internal/webhook"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/auth"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/flow"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/router"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/whatsapp"
)

type Sessions interface {
	State(ctx context.Context, chatID string) (stateID string, seen bool, err error)
	Forget(ctx context.Context, chatID string) error
	Len(ctx context.Context) (int, error)
}

type Gateway interface {
	IsConnected() bool
}

type Workers interface {
	Workers() int
}

type Deliveries interface {
	Enabled() bool
	Recent() []webhook.DeliveryLog
}

type Versions interface {
	Status() pkgWhatsApp.VersionStatus
	Refresh(ctx context.Context, force bool) (pkgWhatsApp.VersionStatus, bool, error)
}

// Controller serves /api/admin. Workers, Webhooks and Versions are optional.
type Controller struct {
	Flow     *flow.Definition
	Sessions Sessions
	Gateway  Gateway
	Workers  Workers
	Webhooks Deliveries
	Versions Versions
	Issuer   *auth.Issuer

	StartedAt time.Time
}

func userContext(c *fiber.Ctx) context.Context {
	if ctx := c.UserContext(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// chatID canonicalizes the :chat_id path parameter to the id the chatbot
// keys its sessions by.
func chatID(c *fiber.Ctx) (string, error) {
	raw := strings.TrimSpace(c.Params("chat_id"))
	jid, err := pkgWhatsApp.ParseChatID(raw)
	if err != nil {
		return "", err
	}
	return jid.String(), nil
}

// GetFlow
// @Summary     Dialogue graph
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       format query string false "json (default) or dot"
// @Success     200 {object} router.Response
// @Router      /api/admin/flow [get]
func (ctl *Controller) GetFlow(c *fiber.Ctx) error {
	graph := ctl.Flow.Graph()
	if strings.EqualFold(c.Query("format"), "dot") {
		c.Type("gv", "utf-8")
		return c.SendString(graph.DOT())
	}
	return router.ResponseSuccessWithData(c, "Success get flow graph", graph)
}

// GetSession
// @Summary     Current dialogue state of a chat
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       chat_id path string true "Phone number or chat id"
// @Success     200 {object} router.Response
// @Failure     400 {object} router.Response
// @Router      /api/admin/sessions/{chat_id} [get]
func (ctl *Controller) GetSession(c *fiber.Ctx) error {
	id, err := chatID(c)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	stateID, seen, err := ctl.Sessions.State(userContext(c), id)
	if err != nil {
		log.Chat(id, "admin-session").WithError(err).Error("Failed to load session")
		return router.ResponseInternalError(c, "Failed to load session")
	}

	return router.ResponseSuccessWithData(c, "Success get session", typWhatsApp.ResponseSession{
		ChatID:  id,
		StateID: stateID,
		Seen:    seen,
	})
}

// DeleteSession
// @Summary     Forget the dialogue state of a chat
// @Description The next message from the chat is handled as a first contact.
// @Tags        Admin
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       chat_id path string true "Phone number or chat id"
// @Success     200 {object} router.Response
// @Router      /api/admin/sessions/{chat_id} [delete]
func (ctl *Controller) DeleteSession(c *fiber.Ctx) error {
	id, err := chatID(c)
	if err != nil {
		return router.ResponseBadRequest(c, err.Error())
	}

	if err := ctl.Sessions.Forget(userContext(c), id); err != nil {
		log.Chat(id, "admin-session").WithError(err).Error("Failed to delete session")
		return router.ResponseInternalError(c, "Failed to delete session")
	}

	log.Chat(id, "admin-session").Info("Session reset by admin")
	return router.ResponseSuccess(c, "Session reset")
}

// IssueToken
// @Summary     Issue an API token
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       body body typWhatsApp.RequestIssueToken true "Token subject"
// @Success     201 {object} router.Response
// @Failure     503 {object} router.Response
// @Router      /api/admin/tokens [post]
func (ctl *Controller) IssueToken(c *fiber.Ctx) error {
	var req typWhatsApp.RequestIssueToken
	if err := c.BodyParser(&req); err != nil {
		return router.ResponseBadRequest(c, "Invalid request body")
	}
	req.Subject = strings.TrimSpace(req.Subject)
	if req.Subject == "" {
		return router.ResponseBadRequest(c, "subject is required")
	}
	if req.TTLSeconds < 0 {
		return router.ResponseBadRequest(c, "ttl_seconds must not be negative")
	}
	if ctl.Issuer == nil {
		return router.ResponseServiceUnavailable(c, auth.ErrNoSecret.Error())
	}

	token, claims, err := ctl.Issuer.Issue(req.Subject, req.Scope, time.Duration(req.TTLSeconds)*time.Second)
	if errors.Is(err, auth.ErrNoSecret) {
		return router.ResponseServiceUnavailable(c, err.Error())
	}
	if err != nil {
		return router.ResponseInternalError(c, err.Error())
	}

	return router.ResponseCreatedWithData(c, "Success issue token", typWhatsApp.ResponseToken{
		Token:     token,
		TokenID:   claims.ID,
		Subject:   claims.Subject,
		ExpiresAt: claims.ExpiresAt.Unix(),
	})
}

// GetHealth
// @Summary     Service health
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Success     200 {object} router.Response
// @Router      /api/admin/health [get]
func (ctl *Controller) GetHealth(c *fiber.Ctx) error {
	health := fiber.Map{
		"connected":   ctl.Gateway.IsConnected(),
		"flow_states": ctl.Flow.Len(),
	}
	if !ctl.StartedAt.IsZero() {
		health["uptime_seconds"] = int64(time.Since(ctl.StartedAt).Seconds())
	}

	if sessions, err := ctl.Sessions.Len(userContext(c)); err != nil {
		log.Print(c).WithError(err).Warn("Failed to count sessions")
		health["sessions_error"] = err.Error()
	} else {
		health["sessions"] = sessions
	}
	if ctl.Workers != nil {
		health["chat_workers"] = ctl.Workers.Workers()
	}
	if ctl.Versions != nil {
		health["whatsapp_web"] = ctl.Versions.Status()
	}
	if ctl.Webhooks != nil {
		health["webhooks"] = fiber.Map{
			"enabled": ctl.Webhooks.Enabled(),
			"recent":  ctl.Webhooks.Recent(),
		}
	}

	return router.ResponseSuccessWithData(c, "Success get health", health)
}

// RefreshWhatsAppWebVersion
// @Summary     Refresh the WhatsApp Web version
// @Tags        Admin
// @Produce     json
// @Param       X-Admin-Secret header string true "Admin secret key"
// @Param       force query bool false "Ignore the refresh throttle"
// @Success     200 {object} router.Response
// @Router      /api/admin/whatsapp/version/refresh [post]
func (ctl *Controller) RefreshWhatsAppWebVersion(c *fiber.Ctx) error {
	if ctl.Versions == nil {
		return router.ResponseServiceUnavailable(c, "Version refresh is not available")
	}

	ctx, cancel := context.WithTimeout(userContext(c), 30*time.Second)
	defer cancel()

	status, refreshed, err := ctl.Versions.Refresh(ctx, c.QueryBool("force", false))
	if err != nil {
		return router.ResponseInternalError(c, "WA Web version refresh failed: "+err.Error())
	}
	return router.ResponseSuccessWithData(c, "Success refresh WA Web version", fiber.Map{
		"refreshed": refreshed,
		"status":    status,
	})
}
