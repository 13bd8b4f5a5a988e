package bot

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"giveaway-bot/internal/features/botlog"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	cservice "giveaway-bot/internal/features/channel/service"
	gservice "giveaway-bot/internal/features/giveaway/service"
	smodels "giveaway-bot/internal/features/session/models"
	sservice "giveaway-bot/internal/features/session/service"
	subservice "giveaway-bot/internal/features/subscription/service"
	uservice "giveaway-bot/internal/features/user/service"
)

// requestTimeout bounds the synchronous part of a handler.
const requestTimeout = 15 * time.Second

type Gatekeeper interface {
	Check(ctx context.Context, userID int64) (subservice.Result, error)
}

type Dialog interface {
	Begin(ctx context.Context, adminID int64) (*smodels.Session, error)
	Cancel(ctx context.Context, userID int64) (bool, error)
	Advance(ctx context.Context, userID int64, input string) (sservice.Outcome, error)
}

type Broadcasts interface {
	Broadcast(ctx context.Context, target bmodels.Target, payload bmodels.Payload, sentBy int64) (*bmodels.Record, error)
}

type Fanouter interface {
	Fanout(ctx context.Context, recipients []bmodels.Recipient, payload bmodels.Payload) (bmodels.Result, error)
}

// Deps are the services the command surface drives.
type Deps struct {
	Giveaways  gservice.GiveawayService
	Gate       Gatekeeper
	Settings   cservice.SettingsService
	Audience   uservice.AudienceService
	Dialog     Dialog
	Broadcasts Broadcasts
	Fanout     Fanouter
	Log        *botlog.Notifier
	Messages   *Messages

	// LogChannel is only displayed by /settings.
	LogChannel int64
}

// Sender is the part of *tele.Bot used outside of an update context.
type Sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// Handler owns the dispatch table and the background jobs it starts.
type Handler struct {
	Deps
	logger zerolog.Logger

	api      Sender
	username string

	jobs   context.Context
	stop   context.CancelFunc
	wg     sync.WaitGroup
	jobTTL time.Duration
}

func New(deps Deps, logger zerolog.Logger) *Handler {
	if deps.Messages == nil {
		deps.Messages = NewMessages()
	}
	jobs, stop := context.WithCancel(context.Background())
	return &Handler{
		Deps:   deps,
		logger: logger.With().Str("component", "bot").Logger(),
		jobs:   jobs,
		stop:   stop,
		jobTTL: gservice.AnnouncementTimeout,
	}
}

// Register binds every route of the table to the bot.
func (h *Handler) Register(b *tele.Bot) {
	h.api = b
	if b.Me != nil {
		h.username = b.Me.Username
	}

	b.Use(Recover(h.logger))
	for _, r := range h.Routes() {
		b.Handle(r.Endpoint, h.wrap(r))
	}
	h.logger.Info().Int("routes", len(h.Routes())).Msg("Bot routes registered")
}

// Run polls updates until ctx is done, then waits for background jobs.
func (h *Handler) Run(ctx context.Context, b *tele.Bot) error {
	h.Register(b)

	done := make(chan struct{})
	go func() {
		b.Start()
		close(done)
	}()
	h.logger.Info().Str("username", h.username).Msg("Bot started")

	select {
	case <-ctx.Done():
		b.Stop()
		<-done
	case <-done:
	}
	h.Shutdown()
	return nil
}

// Shutdown cancels running fan-outs and waits for them to report.
func (h *Handler) Shutdown() {
	h.stop()
	h.Wait()
}

// Wait blocks until every background job has finished.
func (h *Handler) Wait() {
	h.wg.Wait()
}

// background runs fn detached from the update so long fan-outs never block
// other handlers.
func (h *Handler) background(name string, fn func(ctx context.Context)) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error().Interface("panic", r).Str("job", name).Msg("Background job panicked")
			}
		}()

		ctx, cancel := context.WithTimeout(h.jobs, h.jobTTL)
		defer cancel()

		start := time.Now()
		fn(ctx)
		h.logger.Debug().Str("job", name).Dur("took", time.Since(start)).Msg("Background job finished")
	}()
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), requestTimeout)
}
