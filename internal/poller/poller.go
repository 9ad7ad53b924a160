// Package poller runs the continuous reconciliation loop: fetch orders in
// the configured source statuses, dispatch matching notification templates,
// advance the order status, and record progress so no order is processed
// twice.
package poller

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MarcineQ18/apilo-notifier1/internal/apilo"
	"github.com/MarcineQ18/apilo-notifier1/internal/db"
	"github.com/MarcineQ18/apilo-notifier1/internal/match"
	"github.com/MarcineQ18/apilo-notifier1/internal/metrics"
)

// OrderAPI is the slice of the order service client the loop needs.
type OrderAPI interface {
	ListOrdersInStatus(ctx context.Context, statusID int) ([]apilo.OrderData, error)
	GetOrderDetails(ctx context.Context, orderID string) (apilo.OrderData, error)
	UpdateOrderStatus(ctx context.Context, orderID string, newStatus int) error
	GetInvoiceURL(ctx context.Context, orderID string) (string, error)
}

// Store is the slice of the persistence layer the loop needs: the template
// catalog, dynamic settings, and the delivery ledger.
type Store interface {
	ListEmailTemplates(ctx context.Context) ([]db.Template, error)
	ListSMSTemplates(ctx context.Context) ([]db.Template, error)
	StatusFromIDs(ctx context.Context, def []int) ([]int, error)
	StatusToID(ctx context.Context, def int) (int, error)
	WasSent(ctx context.Context, channel, orderID string, templateID int64) (bool, error)
	MarkSent(ctx context.Context, channel, orderID string, templateID int64) error
}

// EmailSender delivers one email notification.
type EmailSender interface {
	Send(ctx context.Context, toAddr, subject, body string, isHTML bool) error
}

// SMSSender delivers one text message.
type SMSSender interface {
	SendSMS(ctx context.Context, toPhone, message string) (string, error)
}

type Config struct {
	PollInterval      time.Duration
	DryRun            bool
	DefaultStatusFrom []int
	DefaultStatusTo   int
}

type Poller struct {
	api      OrderAPI
	store    Store
	progress *Progress
	email    EmailSender
	sms      SMSSender // nil when no SMS gateway is configured
	cfg      Config
	logger   *zap.Logger

	// replaced in tests to avoid real delays
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates the dispatch loop. sms may be nil.
func New(api OrderAPI, store Store, progress *Progress, email EmailSender, sms SMSSender, cfg Config, logger *zap.Logger) *Poller {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = 60 * time.Second
	}

	return &Poller{
		api:      api,
		store:    store,
		progress: progress,
		email:    email,
		sms:      sms,
		cfg:      cfg,
		logger:   logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// Run executes cycles until the context is cancelled. A cycle-level failure
// is logged and the loop continues after its normal sleep; the loop never
// exits on error.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller starting",
		zap.Duration("interval", p.cfg.PollInterval),
		zap.Bool("dry_run", p.cfg.DryRun),
	)

	for {
		start := time.Now()
		if err := p.RunCycle(ctx); err != nil {
			p.logger.Error("poller cycle failed", zap.Error(err))
		}
		metrics.RecordPollCycle(time.Since(start).Seconds())

		if err := p.sleep(ctx, p.cfg.PollInterval); err != nil {
			p.logger.Info("poller stopping")
			return
		}
	}
}

// RunCycle performs one reconciliation pass.
func (p *Poller) RunCycle(ctx context.Context) error {
	log := p.logger.With(zap.String("cycle", uuid.NewString()[:8]))

	// Settings are read fresh every cycle so the admin surface can
	// reconfigure statuses without a restart.
	statusFrom, err := p.store.StatusFromIDs(ctx, p.cfg.DefaultStatusFrom)
	if err != nil {
		return err
	}
	statusTo, err := p.store.StatusToID(ctx, p.cfg.DefaultStatusTo)
	if err != nil {
		return err
	}

	// Merge orders across source statuses by id, last writer wins.
	merged := make(map[string]apilo.OrderData)
	var orderIDs []string
	for _, sid := range statusFrom {
		batch, err := p.api.ListOrdersInStatus(ctx, sid)
		if err != nil {
			log.Warn("failed to list orders for status",
				zap.Int("status", sid),
				zap.Error(err),
			)
			continue
		}
		for _, o := range batch {
			id := o.ID()
			if id == "" {
				continue
			}
			if _, seen := merged[id]; !seen {
				orderIDs = append(orderIDs, id)
			}
			merged[id] = o
		}
	}

	log.Info("cycle work set",
		zap.Int("orders", len(merged)),
		zap.Ints("status_from", statusFrom),
		zap.Int("status_to", statusTo),
	)

	for _, id := range orderIDs {
		p.processOrder(ctx, log, id, statusTo)
	}

	return nil
}

// processOrder takes one order through processing → done. Failures inside
// are isolated: they are logged and the order still reaches done.
func (p *Poller) processOrder(ctx context.Context, log *zap.Logger, orderID string, statusTo int) {
	if state := p.progress.State(orderID); state == StateProcessing || state == StateDone {
		return
	}

	log = log.With(zap.String("order_id", orderID))

	// Write-before-work: processing is durable before any side effect so a
	// restart never double-sends. A crash here leaves the order stuck in
	// processing until cleared manually.
	if err := p.progress.Set(orderID, StateProcessing); err != nil {
		log.Error("failed to persist processing state, skipping order", zap.Error(err))
		return
	}

	defer func() {
		if err := p.progress.Set(orderID, StateDone); err != nil {
			log.Error("failed to persist done state", zap.Error(err))
		}
		metrics.RecordOrderProcessed()
	}()

	details, err := p.api.GetOrderDetails(ctx, orderID)
	if err != nil {
		log.Error("failed to fetch order details", zap.Error(err))
		return
	}

	email := details.CustomerEmail()
	phone := details.CustomerPhone()
	skus := details.SKUs()

	invoiceURL, err := p.api.GetInvoiceURL(ctx, orderID)
	if err != nil {
		log.Warn("invoice unavailable", zap.Error(err))
		invoiceURL = ""
	}

	fmtCtx := map[string]string{
		"order_id":    orderID,
		"payment_id":  details.PaymentID(),
		"email":       email,
		"phone":       phone,
		"invoice_url": invoiceURL,
	}

	sentEmail := false
	if email != "" {
		sentEmail = p.dispatchEmail(ctx, log, orderID, email, skus, fmtCtx)
	}

	sentSMS := false
	if p.sms != nil && phone != "" {
		sentSMS = p.dispatchSMS(ctx, log, orderID, phone, skus, fmtCtx)
	}

	// Advance status only when something actually went out. Target 0 means
	// leave the order where it is.
	if (sentEmail || sentSMS) && statusTo != 0 && !p.cfg.DryRun {
		if err := p.api.UpdateOrderStatus(ctx, orderID, statusTo); err != nil {
			// The order is still marked done: the transition is not retried.
			log.Error("status update failed", zap.Int("status_to", statusTo), zap.Error(err))
			metrics.RecordStatusUpdate("failure")
		} else {
			metrics.RecordStatusUpdate("success")
		}
	}
}

func (p *Poller) dispatchEmail(ctx context.Context, log *zap.Logger, orderID, email string, skus []string, fmtCtx map[string]string) bool {
	catalog, err := p.store.ListEmailTemplates(ctx)
	if err != nil {
		log.Error("failed to load email templates", zap.Error(err))
		return false
	}

	sent := false
	for _, tpl := range match.Match(catalog, skus) {
		tplLog := log.With(zap.String("template", tpl.TemplateKey))

		if !p.cfg.DryRun {
			was, err := p.store.WasSent(ctx, db.ChannelEmail, orderID, tpl.ID)
			if err != nil {
				tplLog.Error("ledger lookup failed", zap.Error(err))
				continue
			}
			if was {
				metrics.RecordNotificationSkipped(db.ChannelEmail)
				continue
			}
		}

		subject := Render(tpl.Subject, fmtCtx)
		body := Render(tpl.Body, fmtCtx)

		if p.cfg.DryRun {
			tplLog.Info("dry run: would send email", zap.String("to", email))
			sent = true
			continue
		}

		if err := p.email.Send(ctx, email, subject, body, tpl.IsHTML); err != nil {
			// Ledger stays unmarked so the next cycle can retry.
			tplLog.Error("email send failed", zap.Error(err))
			metrics.RecordNotificationSent(db.ChannelEmail, "failure")
			continue
		}
		if err := p.store.MarkSent(ctx, db.ChannelEmail, orderID, tpl.ID); err != nil {
			tplLog.Error("failed to record email send", zap.Error(err))
		}
		metrics.RecordNotificationSent(db.ChannelEmail, "success")
		sent = true
	}
	return sent
}

func (p *Poller) dispatchSMS(ctx context.Context, log *zap.Logger, orderID, phone string, skus []string, fmtCtx map[string]string) bool {
	catalog, err := p.store.ListSMSTemplates(ctx)
	if err != nil {
		log.Error("failed to load sms templates", zap.Error(err))
		return false
	}

	sent := false
	for _, tpl := range match.Match(catalog, skus) {
		tplLog := log.With(zap.String("template", tpl.TemplateKey))

		if !p.cfg.DryRun {
			was, err := p.store.WasSent(ctx, db.ChannelSMS, orderID, tpl.ID)
			if err != nil {
				tplLog.Error("ledger lookup failed", zap.Error(err))
				continue
			}
			if was {
				metrics.RecordNotificationSkipped(db.ChannelSMS)
				continue
			}
		}

		message := Render(tpl.Body, fmtCtx)

		if p.cfg.DryRun {
			tplLog.Info("dry run: would send sms", zap.String("to", phone))
			sent = true
			continue
		}

		messageID, err := p.sms.SendSMS(ctx, phone, message)
		if err != nil {
			tplLog.Error("sms send failed", zap.Error(err))
			metrics.RecordNotificationSent(db.ChannelSMS, "failure")
			continue
		}
		if err := p.store.MarkSent(ctx, db.ChannelSMS, orderID, tpl.ID); err != nil {
			tplLog.Error("failed to record sms send", zap.Error(err))
		}
		tplLog.Info("sms delivered", zap.String("message_id", messageID))
		metrics.RecordNotificationSent(db.ChannelSMS, "success")
		sent = true
	}
	return sent
}
