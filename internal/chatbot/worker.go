package chatbot

import (
	"context"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/dialogue"
	"github.com/gdbrns/go-whatsapp-chatbot-flow/pkg/log"
)

type worker struct {
	chatID string
	queue  chan Inbound
}

func (a *Adapter) run(w *worker) {
	defer func() {
		a.metrics.Workers.Dec()
		a.wg.Done()
	}()

	idle := time.NewTimer(a.cfg.WorkerIdle)
	defer idle.Stop()

	for {
		select {
		case in, ok := <-w.queue:
			if !ok {
				return
			}
			a.process(in)
			idle.Reset(a.cfg.WorkerIdle)

		case <-idle.C:
			// Handle enqueues under a.mu, so checking the queue under the same
			// lock guarantees nothing is left behind once we unregister.
			a.mu.Lock()
			if len(w.queue) > 0 || a.closed {
				a.mu.Unlock()
				idle.Reset(a.cfg.WorkerIdle)
				continue
			}
			delete(a.workers, w.chatID)
			a.mu.Unlock()
			return
		}
	}
}

func (a *Adapter) process(in Inbound) {
	ctx := a.ctx
	logger := log.Chat(in.ChatID, "process")

	reply, err := a.engine.Step(ctx, in.ChatID, in.Text)
	if err != nil {
		a.metrics.Inbound.WithLabelValues("error").Inc()
		logger.WithError(err).Error("dialogue step failed, no reply sent")
		return
	}
	a.metrics.Steps.WithLabelValues(string(reply.Outcome)).Inc()
	logger.WithField("from", reply.From).WithField("to", reply.StateID).WithField("outcome", reply.Outcome).Debug("dialogue step")

	if a.cfg.AckReaction != "" && a.reactor != nil && in.MessageID != "" {
		if err := a.reactor.React(ctx, in.ChatID, in.SenderID, in.MessageID, a.cfg.AckReaction); err != nil {
			logger.WithError(err).Warn("failed to send acknowledgement reaction")
		}
	}

	if a.notifier != nil && reply.Transitioned() {
		a.notifier.Publish(EventTransition, map[string]any{
			"chat_id": in.ChatID,
			"from":    reply.From,
			"to":      reply.StateID,
			"outcome": string(reply.Outcome),
		})
	}

	a.dispatch(ctx, reply)
}

// dispatch sends the payloads in order. A failed or timed out media payload
// turns into a notice prefixed to the text payload; the text is always sent.
func (a *Adapter) dispatch(ctx context.Context, reply dialogue.Reply) {
	logger := log.Chat(reply.ChatID, "dispatch")
	var notice string

	for _, p := range reply.Payloads {
		switch p.Kind {
		case dialogue.PayloadMedia:
			if p.Media == nil {
				continue
			}
			media := *p.Media
			err := a.send(ctx, "media", func(ctx context.Context) error {
				mctx, cancel := context.WithTimeout(ctx, a.cfg.MediaTimeout)
				defer cancel()
				return a.sender.SendMedia(mctx, reply.ChatID, media)
			})
			if err != nil {
				logger.WithError(err).WithField("source", media.Source).Warn("media dispatch failed, degrading to text")
				notice = reply.MediaFailedNotice
				continue
			}
			if a.cfg.MediaTextDelay > 0 {
				if err := sleep(ctx, a.cfg.MediaTextDelay); err != nil {
					return
				}
			}

		case dialogue.PayloadText:
			text := p.Text
			if notice != "" {
				text = notice + "\n\n" + text
			}
			if strings.TrimSpace(text) == "" {
				continue
			}
			if err := a.send(ctx, "text", func(ctx context.Context) error {
				return a.sender.SendText(ctx, reply.ChatID, text)
			}); err != nil {
				logger.WithError(err).Error("failed to send reply")
			}
		}
	}
}

func (a *Adapter) send(ctx context.Context, kind string, fn func(context.Context) error) error {
	if a.limiter != nil {
		if err := a.limiter.Wait(ctx); err != nil {
			a.metrics.Dispatch.WithLabelValues(kind, "error").Inc()
			return err
		}
	}

	start := time.Now()
	err := fn(ctx)
	a.metrics.DispatchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if err != nil {
		a.metrics.Dispatch.WithLabelValues(kind, "error").Inc()
		return err
	}
	a.metrics.Dispatch.WithLabelValues(kind, "ok").Inc()
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
