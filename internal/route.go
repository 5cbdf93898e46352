package internal

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	swagger "github.com/gofiber/swagger"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/auth"

	ctlAdmin "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/admin"
	ctlDevice "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/device"
	ctlGroups "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/groups"
	ctlIndex "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/index"
	ctlMessaging "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/messaging"
	ctlUser "github.com/gdbrns/go-whatsapp-chatbot-flow/internal/user"
)

func Routes(app *fiber.App, svc *Service) {
	baseURL := svc.Router.BaseURL

	index := ctlIndex.New(svc.Gateway)
	device := ctlDevice.New(svc.Gateway)
	messaging := ctlMessaging.New(svc.Gateway)
	user := ctlUser.New(svc.Gateway)
	groups := ctlGroups.New(svc.Gateway)

	admin := &ctlAdmin.Controller{
		Flow:      svc.Flow,
		Sessions:  svc.Sessions,
		Gateway:   svc.Gateway,
		Webhooks:  svc.Webhooks,
		Versions:  svc.Versions,
		StartedAt: svc.StartedAt,
	}
	if svc.Adapter != nil {
		admin.Workers = svc.Adapter
	}
	if svc.Auth.JWTSecret != "" {
		admin.Issuer = svc.Issuer
	}

	// Route for Index
	// ---------------------------------------------
	if baseURL == "" {
		app.Get("/", index.Index)
	} else {
		app.Get(baseURL, index.Index)
		app.Get(baseURL+"/", index.Index)
	}

	// Route for OpenAPI / Swagger
	// ---------------------------------------------
	app.Get(baseURL+"/docs/swagger.json", func(c *fiber.Ctx) error {
		return c.SendFile("docs/swagger.json")
	})
	app.Get(baseURL+"/docs/*", swagger.New(swagger.Config{
		URL: baseURL + "/docs/swagger.json",
	}))

	// Route for Prometheus
	// ---------------------------------------------
	app.Get(baseURL+"/metrics", adaptor.HTTPHandler(svc.Metrics.Handler()))

	// Route for Chatbot API
	// ---------------------------------------------
	// Bearer tokens are only enforced once JWT_SECRET_KEY is configured.
	var bearer *auth.Issuer
	if svc.Auth.JWTSecret != "" {
		bearer = svc.Issuer
	}
	api := app.Group(baseURL + "/api")
	apiAuth := auth.BearerAuth(bearer)

	api.Get("/status", apiAuth, index.Status)
	api.Post("/send-message", apiAuth, messaging.SendMessage)
	api.Post("/reconnect", apiAuth, device.Reconnect)
	api.Get("/contacts", apiAuth, user.GetContacts)
	api.Get("/groups", apiAuth, groups.List)

	// Route for Admin API (X-Admin-Secret)
	// ---------------------------------------------
	adminAuth := auth.AdminAuth(svc.Auth.AdminSecret)

	api.Get("/admin/flow", adminAuth, admin.GetFlow)
	api.Get("/admin/sessions/:chat_id", adminAuth, admin.GetSession)
	api.Delete("/admin/sessions/:chat_id", adminAuth, admin.DeleteSession)
	api.Post("/admin/tokens", adminAuth, admin.IssueToken)
	api.Get("/admin/health", adminAuth, admin.GetHealth)
	api.Post("/admin/whatsapp/version/refresh", adminAuth, admin.RefreshWhatsAppWebVersion)
}
