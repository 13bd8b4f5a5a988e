package bot

import (
	"errors"
	"html"
	"strings"

	tele "gopkg.in/telebot.v4"

	apperrors "giveaway-bot/internal/common/errors"
	sservice "giveaway-bot/internal/features/session/service"
	umodels "giveaway-bot/internal/features/user/models"
)

// onText feeds private text into the creation dialog. Text from users
// without a dialog is ignored.
func (h *Handler) onText(c tele.Context) error {
	text := c.Text()
	if strings.HasPrefix(text, "/") {
		return nil
	}

	sender := c.Sender()
	ctx, cancel := requestContext()
	defer cancel()

	out, err := h.Dialog.Advance(ctx, sender.ID, text)
	switch {
	case errors.Is(err, sservice.ErrNoSession):
		return nil
	case apperrors.HasCode(err, apperrors.ErrCodeValidation) && out.Next != "":
		return c.Send(html.EscapeString(h.Messages.Error(err))+"\n\n"+h.Messages.Prompt(out.Next), htmlOptions())
	case err != nil:
		return err
	}

	if !out.Done() {
		return c.Send(h.Messages.Prompt(out.Next), htmlOptions())
	}

	g := out.Giveaway
	h.Log.GiveawayCreated(ctx, g)
	if err := c.Send(h.Messages.GiveawayCreated(g), htmlOptions()); err != nil {
		h.logger.Warn().Err(err).Str("giveaway_id", g.ID).Msg("Failed to confirm giveaway creation")
	}
	h.announceNew(sender, g)
	return nil
}

// onMyChatMember keeps the chat audience in sync with the bot's own
// membership in groups and channels.
func (h *Handler) onMyChatMember(c tele.Context) error {
	upd := c.ChatMember()
	if upd == nil || upd.Chat == nil || upd.NewChatMember == nil {
		return nil
	}

	chatType, ok := chatTypeOf(upd.Chat.Type)
	if !ok {
		return nil
	}

	ctx, cancel := requestContext()
	defer cancel()

	if !isPresent(upd.NewChatMember.Role) {
		if err := h.Audience.RemoveChat(ctx, upd.Chat.ID); err != nil {
			return err
		}
		h.logger.Info().Int64("chat_id", upd.Chat.ID).Msg("Bot removed from chat")
		return nil
	}
	if upd.OldChatMember != nil && isPresent(upd.OldChatMember.Role) {
		// promotion or restriction change
		return nil
	}

	var addedBy int64
	if upd.Sender != nil {
		addedBy = upd.Sender.ID
	}
	chat := umodels.Chat{
		ID:      upd.Chat.ID,
		Type:    chatType,
		Title:   upd.Chat.Title,
		AddedBy: addedBy,
	}
	if err := h.Audience.RegisterChat(ctx, chat); err != nil {
		return err
	}
	h.Log.BotAdded(ctx, &chat, addedBy)
	return nil
}

func chatTypeOf(t tele.ChatType) (umodels.ChatType, bool) {
	switch t {
	case tele.ChatGroup:
		return umodels.ChatGroup, true
	case tele.ChatSuperGroup:
		return umodels.ChatSupergroup, true
	case tele.ChatChannel, tele.ChatChannelPrivate:
		return umodels.ChatChannel, true
	}
	return "", false
}

func isPresent(role tele.MemberStatus) bool {
	switch role {
	case tele.Creator, tele.Administrator, tele.Member, tele.Restricted:
		return true
	}
	return false
}
