package bot

import (
	"context"

	tele "gopkg.in/telebot.v4"

	apperrors "giveaway-bot/internal/common/errors"
	gmodels "giveaway-bot/internal/features/giveaway/models"
	gservice "giveaway-bot/internal/features/giveaway/service"
	umodels "giveaway-bot/internal/features/user/models"
	"giveaway-bot/internal/platform/telegram"
)

func (h *Handler) onStart(c tele.Context) error {
	sender := c.Sender()
	ctx, cancel := requestContext()
	defer cancel()

	var referrer int64
	if msg := c.Message(); msg != nil {
		referrer, _ = umodels.ParseReferral(msg.Payload)
	}

	u := userFrom(sender)
	created, err := h.Audience.RegisterUser(ctx, u, referrer)
	if err != nil {
		return err
	}
	if created {
		h.Log.UserStarted(ctx, &u)
	}

	return c.Send(h.Messages.Welcome(sender.FirstName, h.isAdmin(ctx, sender.ID)), htmlOptions())
}

func (h *Handler) onHelp(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()
	return c.Send(h.Messages.Help(h.isAdmin(ctx, c.Sender().ID)), htmlOptions())
}

func (h *Handler) onJoin(c tele.Context) error {
	userID := c.Sender().ID
	ctx, cancel := requestContext()
	defer cancel()

	if _, err := h.Audience.GetUser(ctx, userID); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return c.Send(h.Messages.StartFirst())
		}
		return err
	}

	g, err := h.activeForJoin(ctx, userID)
	if err != nil {
		return err
	}

	gate, err := h.Gate.Check(ctx, userID)
	if err != nil {
		return err
	}
	if !gate.Subscribed {
		return c.Send(h.Messages.ForceSubscribe(), &tele.SendOptions{
			ParseMode:   tele.ModeHTML,
			ReplyMarkup: telegram.Markup(ForceSubscribeKeyboard(gate.Unsatisfied)),
		})
	}

	res, err := h.Giveaways.Join(ctx, g.ID, userID)
	if err != nil {
		return err
	}
	if res.Joined {
		h.Log.UserJoined(ctx, userID, c.Sender().Username, g.ID)
	}
	return c.Send(h.Messages.Joined(g, res), htmlOptions())
}

// onJoinCallback handles the join button under announcements, possibly in a
// group or channel.
func (h *Handler) onJoinCallback(c tele.Context) error {
	return h.joinFromCallback(c, false)
}

// onCheckSubscription handles "Try Again" under the force-subscribe message.
func (h *Handler) onCheckSubscription(c tele.Context) error {
	return h.joinFromCallback(c, true)
}

func (h *Handler) joinFromCallback(c tele.Context, retry bool) error {
	sender := c.Sender()
	ctx, cancel := requestContext()
	defer cancel()

	g, err := h.activeForJoin(ctx, sender.ID)
	if err != nil {
		return err
	}

	gate, err := h.Gate.Check(ctx, sender.ID)
	if err != nil {
		return err
	}
	if !gate.Subscribed {
		if retry {
			return c.Respond(&tele.CallbackResponse{Text: h.Messages.ForceSubscribeAlert(), ShowAlert: true})
		}
		// the user may never have opened a private chat with the bot
		_, sendErr := h.api.Send(sender, h.Messages.ForceSubscribe(), &tele.SendOptions{
			ParseMode:   tele.ModeHTML,
			ReplyMarkup: telegram.Markup(ForceSubscribeKeyboard(gate.Unsatisfied)),
		})
		text := "Please join the required channels first!"
		if sendErr != nil {
			text = "⚠️ Please join the required channels and start the bot in private chat!"
		}
		return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
	}

	u := userFrom(sender)
	created, err := h.Audience.RegisterUser(ctx, u, 0)
	if err != nil {
		return err
	}
	if created {
		h.Log.UserStarted(ctx, &u)
	}

	res, err := h.Giveaways.Join(ctx, g.ID, sender.ID)
	if err != nil {
		return err
	}
	if res.Joined {
		h.Log.UserJoined(ctx, sender.ID, sender.Username, g.ID)
	}

	if retry {
		if err := c.Delete(); err != nil {
			h.logger.Debug().Err(err).Msg("Failed to delete force subscribe message")
		}
	}
	return c.Respond(&tele.CallbackResponse{Text: h.Messages.JoinedAlert(g, res), ShowAlert: true})
}

// activeForJoin maps "no active giveaway" onto the join rejection.
func (h *Handler) activeForJoin(ctx context.Context, userID int64) (*gmodels.Giveaway, error) {
	g, err := h.Giveaways.Active(ctx)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return nil, apperrors.NewStateError(apperrors.ErrCodeNotJoinable, "", "").WithUserID(userID)
		}
		return nil, err
	}
	return g, nil
}

func (h *Handler) onWinners(c tele.Context) error {
	ctx, cancel := requestContext()
	defer cancel()

	recent, err := h.Giveaways.RecentWinners(ctx, gservice.DefaultRecentWinnersLimit)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.RecentWinners(recent), htmlOptions())
}

func (h *Handler) onStats(c tele.Context) error {
	userID := c.Sender().ID
	ctx, cancel := requestContext()
	defer cancel()

	u, err := h.Audience.GetUser(ctx, userID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
			return c.Send(h.Messages.StartFirst())
		}
		return err
	}
	referrals, err := h.Audience.ReferralCount(ctx, userID)
	if err != nil {
		return err
	}
	return c.Send(h.Messages.UserStats(u, referrals), htmlOptions())
}

func (h *Handler) onRefer(c tele.Context) error {
	userID := c.Sender().ID
	ctx, cancel := requestContext()
	defer cancel()

	referrals, err := h.Audience.ReferralCount(ctx, userID)
	if err != nil {
		return err
	}
	link := umodels.ReferralLink(h.username, userID)
	return c.Send(h.Messages.Referral(link, referrals), htmlOptions())
}

// isAdmin only decorates texts, so a failed lookup reads as "not admin".
func (h *Handler) isAdmin(ctx context.Context, userID int64) bool {
	ok, err := h.Settings.IsAdmin(ctx, userID)
	if err != nil {
		h.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to check admin")
		return false
	}
	return ok
}

func userFrom(u *tele.User) umodels.User {
	return umodels.User{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}
