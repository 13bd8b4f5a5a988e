package bot

import (
	bmodels "giveaway-bot/internal/features/broadcast/models"
	cmodels "giveaway-bot/internal/features/channel/models"
)

func JoinKeyboard() [][]bmodels.Button {
	return [][]bmodels.Button{
		{{Text: "🎁 Join Giveaway", Data: callbackJoin}},
	}
}

// ForceSubscribeKeyboard links every unsatisfied channel that has a public
// username and ends with a retry button.
func ForceSubscribeKeyboard(channels []cmodels.ForceChannel) [][]bmodels.Button {
	rows := make([][]bmodels.Button, 0, len(channels)+1)
	for _, ch := range channels {
		link := ch.InviteLink()
		if link == "" {
			continue
		}
		rows = append(rows, []bmodels.Button{{Text: "📢 Join " + ch.DisplayName(), URL: link}})
	}
	return append(rows, []bmodels.Button{{Text: "✅ Try Again", Data: callbackCheckSubscribe}})
}
