package providers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/emberhook/emberhook/internal/plugin"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends events as bot messages to a chat.
type Telegram struct {
	client *http.Client

	// BaseURL overrides the Telegram API host in tests.
	BaseURL string
}

func NewTelegram(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "telegram",
		Label: "Telegram",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "bot_token", Label: "Bot token", Kind: plugin.FieldString, Required: true, Secret: true},
			{Name: "chat_id", Label: "Chat ID", Kind: plugin.FieldString, Required: true},
		}},
		Handler: &Telegram{client: client, BaseURL: telegramAPIBase},
	}
}

func (t *Telegram) SendEvent(ctx context.Context, pc plugin.Context) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.BaseURL, pc.Config["bot_token"])
	body := map[string]any{
		"chat_id": pc.Config["chat_id"],
		"text":    summarize(pc.Input.Event, pc.Input.Data),
	}
	return postJSON(ctx, t.client, url, body)
}
