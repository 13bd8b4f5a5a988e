package bot

import (
	"context"
	"html"
	"runtime/debug"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	"giveaway-bot/internal/common/metrics"
)

const (
	callbackJoin           = "join_giveaway"
	callbackCheckSubscribe = "check_subscription"
)

// Route declares a single handler bound to a telebot endpoint.
type Route struct {
	Name     string
	Endpoint string
	Handler  tele.HandlerFunc

	// Admin routes are rejected for everyone but admins.
	Admin bool
	// Private routes are ignored outside private chats.
	Private bool
}

// Routes is the whole dispatch table. Every endpoint appears exactly once.
func (h *Handler) Routes() []Route {
	return []Route{
		{Name: "start", Endpoint: "/start", Handler: h.onStart, Private: true},
		{Name: "join", Endpoint: "/join", Handler: h.onJoin, Private: true},
		{Name: "winners", Endpoint: "/winners", Handler: h.onWinners},
		{Name: "stats", Endpoint: "/stats", Handler: h.onStats, Private: true},
		{Name: "refer", Endpoint: "/refer", Handler: h.onRefer, Private: true},
		{Name: "help", Endpoint: "/help", Handler: h.onHelp, Private: true},

		{Name: "creategiveaway", Endpoint: "/creategiveaway", Handler: h.onCreateGiveaway, Admin: true, Private: true},
		{Name: "cancel", Endpoint: "/cancel", Handler: h.onCancel, Admin: true, Private: true},
		{Name: "endgiveaway", Endpoint: "/endgiveaway", Handler: h.onEndGiveaway, Admin: true, Private: true},
		{Name: "announce", Endpoint: "/announce", Handler: h.onAnnounce, Admin: true, Private: true},
		{Name: "reroll", Endpoint: "/reroll", Handler: h.onReroll, Admin: true, Private: true},
		{Name: "participants", Endpoint: "/participants", Handler: h.onParticipants, Admin: true, Private: true},
		{Name: "broadcast", Endpoint: "/broadcast", Handler: h.onBroadcast, Admin: true, Private: true},
		{Name: "addchannel", Endpoint: "/addchannel", Handler: h.onAddChannel, Admin: true, Private: true},
		{Name: "removechannel", Endpoint: "/removechannel", Handler: h.onRemoveChannel, Admin: true, Private: true},
		{Name: "setforce", Endpoint: "/setforce", Handler: h.onSetForce, Admin: true, Private: true},
		{Name: "addadmin", Endpoint: "/addadmin", Handler: h.onAddAdmin, Admin: true, Private: true},
		{Name: "removeadmin", Endpoint: "/removeadmin", Handler: h.onRemoveAdmin, Admin: true, Private: true},
		{Name: "admins", Endpoint: "/admins", Handler: h.onAdmins, Admin: true, Private: true},
		{Name: "settings", Endpoint: "/settings", Handler: h.onSettings, Admin: true, Private: true},
		{Name: "botstats", Endpoint: "/botstats", Handler: h.onBotStats, Admin: true, Private: true},

		{Name: "callback." + callbackJoin, Endpoint: "\f" + callbackJoin, Handler: h.onJoinCallback},
		{Name: "callback." + callbackCheckSubscribe, Endpoint: "\f" + callbackCheckSubscribe, Handler: h.onCheckSubscription},

		{Name: "text", Endpoint: tele.OnText, Handler: h.onText, Private: true},
		{Name: "my_chat_member", Endpoint: tele.OnMyChatMember, Handler: h.onMyChatMember},
	}
}

func (h *Handler) wrap(r Route) tele.HandlerFunc {
	next := h.reportErrors(r.Name)(r.Handler)
	if r.Admin {
		next = AdminOnly(h.Settings, h.rejectNonAdmin)(next)
	}
	if r.Private {
		next = PrivateOnly(next)
	}
	return CountUpdates(r.Name)(next)
}

// AdminChecker is satisfied by the settings service.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID int64) (bool, error)
}

// AdminOnly lets only admins reach next; others get onReject.
func AdminOnly(admins AdminChecker, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if sender == nil {
				return nil
			}
			ctx, cancel := requestContext()
			defer cancel()

			ok, err := admins.IsAdmin(ctx, sender.ID)
			if err != nil {
				return err
			}
			if !ok {
				if onReject != nil {
					return onReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// PrivateOnly drops updates that do not come from a private chat.
func PrivateOnly(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if chat := c.Chat(); chat == nil || chat.Type != tele.ChatPrivate {
			return nil
		}
		return next(c)
	}
}

func CountUpdates(route string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			metrics.BotUpdates.WithLabelValues(route).Inc()
			return next(c)
		}
	}
}

// Recover catches panics in handlers and prevents the bot from crashing.
func Recover(logger zerolog.Logger) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().
						Interface("panic", r).
						Str("stack", string(debug.Stack())).
						Msg("Panic recovered in bot handler")
					err = nil
				}
			}()
			return next(c)
		}
	}
}

// reportErrors logs unexpected handler errors and answers with a short
// explanation instead of leaving the user without a reply.
func (h *Handler) reportErrors(route string) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			ev := h.logger.Error()
			if !isUnexpected(err) {
				ev = h.logger.Debug()
			}
			var userID int64
			if s := c.Sender(); s != nil {
				userID = s.ID
			}
			ev.Err(err).Str("route", route).Int64("user_id", userID).Msg("Handler failed")

			text := h.Messages.Error(err)
			if c.Callback() != nil {
				return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
			}
			return c.Send(html.EscapeString(text), htmlOptions())
		}
	}
}

func (h *Handler) rejectNonAdmin(c tele.Context) error {
	return c.Send(h.Messages.AdminOnly(), htmlOptions())
}

func htmlOptions() *tele.SendOptions {
	return &tele.SendOptions{ParseMode: tele.ModeHTML}
}
