package internal

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/env"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

const (
	healthCheckSpec           = "0 */5 * * * *"
	defaultVersionRefreshSpec = "0 0 3 * * *"
	routineTimeout            = 30 * time.Second
)

// Routines registers the periodic jobs on c and starts it. The cron must be
// built with seconds enabled.
func Routines(c *cron.Cron, svc *Service) {
	log.Print(nil).Info("Running Routine Tasks")

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_HEALTH_CHECK_CRON", true) {
		if _, err := c.AddFunc(healthCheckSpec, func() { healthCheck(svc) }); err != nil {
			log.Print(nil).WithError(err).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on whatsmeow auto reconnect")
	}

	if env.GetEnvBoolOrDefault("WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON", false) {
		spec := env.GetEnvStringOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_SPEC", defaultVersionRefreshSpec)
		force := env.GetEnvBoolOrDefault("WHATSAPP_WAVERSION_REFRESH_CRON_FORCE", false)
		if _, err := c.AddFunc(spec, func() { refreshVersion(svc, force) }); err != nil {
			log.Print(nil).WithError(err).Error("Failed to add WA Web version refresh cron job")
		} else {
			log.Print(nil).WithField("spec", spec).WithField("force", force).Info("WA Web version refresh cron enabled")
		}
	}

	c.Start()
}

func healthCheck(svc *Service) {
	ctx, cancel := context.WithTimeout(context.Background(), routineTimeout)
	defer cancel()

	if err := svc.Gateway.EnsureConnected(ctx); err != nil {
		log.Gateway("health").WithError(err).Warn("WhatsApp client is unhealthy")
	}

	connected := svc.Gateway.IsConnected()
	svc.Metrics.SetConnected(connected)
	log.Gateway("health").WithField("connected", connected).Debug("Health check complete")
}

func refreshVersion(svc *Service, force bool) {
	ctx, cancel := context.WithTimeout(context.Background(), routineTimeout)
	defer cancel()

	status, refreshed, err := svc.Versions.Refresh(ctx, force)
	if err != nil {
		log.Print(nil).WithField("version", status.CurrentVersion).WithField("force", force).Error("WA Web version refresh failed: " + err.Error())
		return
	}
	log.Print(nil).WithField("version", status.CurrentVersion).WithField("refreshed", refreshed).WithField("force", force).Info("WA Web version refresh completed")
}
