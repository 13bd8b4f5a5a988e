package telegram

import (
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"
)

const defaultPollTimeout = 10 * time.Second

// NewBot builds a long-polling bot. Handlers are registered by the caller.
func NewBot(token string, pollTimeout time.Duration, onError func(error, tele.Context)) (*tele.Bot, error) {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}

	bot, err := tele.NewBot(tele.Settings{
		Token:   token,
		Poller:  &tele.LongPoller{Timeout: pollTimeout},
		OnError: onError,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram: bot initialization failed: %w", err)
	}
	return bot, nil
}
