package service

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"giveaway-bot/internal/common/metrics"
	"giveaway-bot/internal/features/broadcast/models"
)

// Deliverer sends one payload to one recipient.
type Deliverer interface {
	Deliver(ctx context.Context, to models.Recipient, payload models.Payload) error
}

type Options struct {
	Workers         int
	RatePerSecond   int // 0 disables pacing
	MaxFloodRetries int
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeFailed
	outcomeBlocked
	outcomeSkipped
)

// blockedPatterns match Bot API descriptions for recipients that will never
// accept messages again.
var blockedPatterns = []string{
	"blocked by the user",
	"bot was blocked",
	"user is deactivated",
	"bot was kicked",
	"user_is_blocked",
	"input_user_deactivated",
}

// IsBlocked classifies a delivery error as a permanent recipient-side refusal.
func IsBlocked(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range blockedPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Coordinator fans a payload out to many recipients. A failure for one
// recipient never affects another; only setup errors and cancellation are
// returned to the caller.
type Coordinator struct {
	deliverer Deliverer
	opts      Options
	limiter   *rate.Limiter
	logger    zerolog.Logger
}

func NewCoordinator(deliverer Deliverer, opts Options, logger zerolog.Logger) *Coordinator {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.MaxFloodRetries < 0 {
		opts.MaxFloodRetries = 0
	}

	var limiter *rate.Limiter
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), opts.RatePerSecond)
	}

	return &Coordinator{
		deliverer: deliverer,
		opts:      opts,
		limiter:   limiter,
		logger:    logger.With().Str("component", "broadcast").Logger(),
	}
}

func (c *Coordinator) Fanout(ctx context.Context, recipients []models.Recipient, payload models.Payload) (models.Result, error) {
	var res models.Result
	if err := payload.Validate(); err != nil {
		return res, err
	}
	if len(recipients) == 0 {
		return res, nil
	}

	start := time.Now()
	var success, failed, blocked atomic.Int64

	var g errgroup.Group
	g.SetLimit(c.opts.Workers)

	for _, rcpt := range recipients {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			switch c.deliverOne(ctx, rcpt, payload) {
			case outcomeSuccess:
				success.Add(1)
			case outcomeFailed:
				failed.Add(1)
			case outcomeBlocked:
				blocked.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Success = int(success.Load())
	res.Failed = int(failed.Load())
	res.Blocked = int(blocked.Load())
	res.Total = res.Success + res.Failed + res.Blocked
	res.Skipped = len(recipients) - res.Total
	metrics.BroadcastDuration.Observe(time.Since(start).Seconds())

	c.logger.Info().
		Int("total", res.Total).
		Int("success", res.Success).
		Int("failed", res.Failed).
		Int("blocked", res.Blocked).
		Int("skipped", res.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("Fan-out finished")

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (c *Coordinator) deliverOne(ctx context.Context, to models.Recipient, payload models.Payload) outcome {
	for attempt := 0; ; attempt++ {
		if ctx.Err() != nil {
			return outcomeSkipped
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return outcomeSkipped
			}
		}

		err := c.deliverer.Deliver(ctx, to, payload)
		if err == nil {
			metrics.BroadcastDeliveries.WithLabelValues("success").Inc()
			return outcomeSuccess
		}

		var flood *models.RetryAfterError
		if errors.As(err, &flood) && attempt < c.opts.MaxFloodRetries {
			c.logger.Warn().
				Int64("recipient", to.ID).
				Dur("retry_after", flood.After).
				Int("attempt", attempt+1).
				Msg("Flood limit hit, retrying recipient")

			timer := time.NewTimer(flood.After)
			select {
			case <-ctx.Done():
				timer.Stop()
				metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
				return outcomeFailed
			case <-timer.C:
			}
			continue
		}

		if IsBlocked(err) {
			metrics.BroadcastDeliveries.WithLabelValues("blocked").Inc()
			c.logger.Debug().Int64("recipient", to.ID).Str("kind", string(to.Kind)).Msg("Recipient blocked the bot")
			return outcomeBlocked
		}

		metrics.BroadcastDeliveries.WithLabelValues("failed").Inc()
		c.logger.Warn().Err(err).Int64("recipient", to.ID).Str("kind", string(to.Kind)).Msg("Delivery failed")
		return outcomeFailed
	}
}
