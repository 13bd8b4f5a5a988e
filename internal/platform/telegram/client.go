package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	apperrors "giveaway-bot/internal/common/errors"
	"giveaway-bot/internal/common/validation"
	bmodels "giveaway-bot/internal/features/broadcast/models"
	cmodels "giveaway-bot/internal/features/channel/models"
	subservice "giveaway-bot/internal/features/subscription/service"
)

// notParticipantPatterns match getChatMember errors for users that never
// joined the chat.
var notParticipantPatterns = []string{
	"user not found",
	"participant_id_invalid",
	"user_not_participant",
	"member not found",
}

// Client adapts telebot to the narrow interfaces the services consume:
// membership lookups, chat resolution and message delivery.
type Client struct {
	bot    *tele.Bot
	logger zerolog.Logger
}

func NewClient(bot *tele.Bot, logger zerolog.Logger) *Client {
	return &Client{
		bot:    bot,
		logger: logger.With().Str("component", "telegram").Logger(),
	}
}

// Username returns the bot's own @username without the @.
func (c *Client) Username() string {
	if c.bot.Me == nil {
		return ""
	}
	return c.bot.Me.Username
}

// MembershipStatus returns the user's status in the chat, or
// subscription.ErrNotParticipant when Telegram does not know the member.
func (c *Client) MembershipStatus(ctx context.Context, chatID, userID int64) (cmodels.MemberStatus, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	member, err := c.bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		if isNotParticipant(err) {
			return "", subservice.ErrNotParticipant
		}
		return "", fmt.Errorf("get chat member %d in %d: %w", userID, chatID, err)
	}
	return cmodels.MemberStatus(member.Role), nil
}

// ResolveChat accepts @name, name, t.me/name links and numeric ids.
func (c *Client) ResolveChat(ctx context.Context, ref string) (*cmodels.ChatInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id, username, err := ParseChatRef(ref)
	if err != nil {
		return nil, err
	}

	var chat *tele.Chat
	if username != "" {
		chat, err = c.bot.ChatByUsername("@" + username)
	} else {
		chat, err = c.bot.ChatByID(id)
	}
	if err != nil {
		return nil, fmt.Errorf("get chat %q: %w", ref, err)
	}

	return &cmodels.ChatInfo{
		ID:       chat.ID,
		Type:     string(chat.Type),
		Title:    chat.Title,
		Username: chat.Username,
	}, nil
}

func (c *Client) BotIsAdmin(ctx context.Context, chatID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	member, err := c.bot.ChatMemberOf(&tele.Chat{ID: chatID}, c.bot.Me)
	if err != nil {
		return false, fmt.Errorf("get bot member in %d: %w", chatID, err)
	}
	return member.Role == tele.Administrator || member.Role == tele.Creator, nil
}

// Deliver sends one payload to one recipient. Flood-control errors come back
// as *broadcast.RetryAfterError.
func (c *Client) Deliver(ctx context.Context, to bmodels.Recipient, payload bmodels.Payload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opts := &tele.SendOptions{
		ParseMode:   tele.ParseMode(payload.ParseMode),
		ReplyMarkup: Markup(payload.Keyboard),
	}

	var err error
	if payload.CopyFrom != nil {
		src := &tele.StoredMessage{
			MessageID: strconv.Itoa(payload.CopyFrom.MessageID),
			ChatID:    payload.CopyFrom.ChatID,
		}
		_, err = c.bot.Copy(tele.ChatID(to.ID), src, opts)
	} else {
		_, err = c.bot.Send(tele.ChatID(to.ID), payload.Text, opts)
	}
	return mapSendError(err)
}

func mapSendError(err error) error {
	if err == nil {
		return nil
	}
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return &bmodels.RetryAfterError{
			After: time.Duration(flood.RetryAfter) * time.Second,
			Err:   err,
		}
	}
	return err
}

func isNotParticipant(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range notParticipantPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// Markup converts keyboard rows into an inline markup; nil for no buttons.
// Data buttons are registered by unique so handlers bind with "\f<unique>".
func Markup(rows [][]bmodels.Button) *tele.ReplyMarkup {
	if len(rows) == 0 {
		return nil
	}

	markup := &tele.ReplyMarkup{}
	inline := make([][]tele.InlineButton, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				r = append(r, *markup.URL(b.Text, b.URL).Inline())
				continue
			}
			unique, data, _ := strings.Cut(b.Data, "|")
			r = append(r, *markup.Data(b.Text, unique, data).Inline())
		}
		inline = append(inline, r)
	}
	markup.InlineKeyboard = inline
	return markup
}

// ParseChatRef splits a chat reference into a numeric id or a username.
func ParseChatRef(ref string) (int64, string, error) {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"https://t.me/", "http://t.me/", "t.me/", "@"} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	ref = strings.TrimSuffix(ref, "/")
	if ref == "" {
		return 0, "", fmt.Errorf("empty chat reference")
	}

	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return id, "", nil
	}
	if strings.ContainsAny(ref, "/ ?") {
		return 0, "", fmt.Errorf("invalid chat reference %q", ref)
	}
	if !validation.IsValidUsername(ref) {
		return 0, "", apperrors.NewValidationError("channel", "not a valid Telegram username").WithDetail("ref", ref)
	}
	return 0, ref, nil
}
