package telegram

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bmodels "giveaway-bot/internal/features/broadcast/models"
)

func TestParseChatRef(t *testing.T) {
	tests := []struct {
		ref      string
		id       int64
		username string
		wantErr  bool
	}{
		{ref: "@news", username: "news"},
		{ref: "news", username: "news"},
		{ref: "https://t.me/news/", username: "news"},
		{ref: "t.me/news", username: "news"},
		{ref: "-1001234", id: -1001234},
		{ref: "  ", wantErr: true},
		{ref: "https://t.me/joinchat/abc", wantErr: true},
		{ref: "@1channel", wantErr: true},
		{ref: "@abc", wantErr: true},
		{ref: "news-room", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			id, username, err := ParseChatRef(tt.ref)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.username, username)
		})
	}
}

func TestMarkup(t *testing.T) {
	assert.Nil(t, Markup(nil))

	m := Markup([][]bmodels.Button{
		{{Text: "Join", Data: "join_giveaway"}},
		{{Text: "News", URL: "https://t.me/news"}, {Text: "Check", Data: "check_subscription|42"}},
	})
	require.NotNil(t, m)
	require.Len(t, m.InlineKeyboard, 2)

	assert.Equal(t, "join_giveaway", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "https://t.me/news", m.InlineKeyboard[1][0].URL)
	assert.Equal(t, "check_subscription", m.InlineKeyboard[1][1].Unique)
	assert.Equal(t, "42", m.InlineKeyboard[1][1].Data)
}

func TestIsNotParticipant(t *testing.T) {
	assert.True(t, isNotParticipant(errors.New("telegram: Bad Request: user not found (400)")))
	assert.True(t, isNotParticipant(errors.New("telegram: Bad Request: PARTICIPANT_ID_INVALID (400)")))
	assert.False(t, isNotParticipant(errors.New("telegram: Bad Request: chat not found (400)")))
}

func TestMapSendErrorPassesThrough(t *testing.T) {
	assert.NoError(t, mapSendError(nil))

	err := errors.New("telegram: Forbidden: bot was blocked by the user (403)")
	assert.Same(t, err, mapSendError(err))
}
