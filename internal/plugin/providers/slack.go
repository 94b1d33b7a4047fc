package providers

import (
	"context"
	"net/http"

	"github.com/emberhook/emberhook/internal/plugin"
)

// Slack posts events to a Slack incoming webhook using Block Kit.
type Slack struct {
	client *http.Client
}

func NewSlack(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "slack",
		Label: "Slack",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "webhook_url", Label: "Incoming webhook URL", Kind: plugin.FieldURL, Required: true, Secret: true},
		}},
		Handler: &Slack{client: client},
	}
}

func (s *Slack) SendEvent(ctx context.Context, pc plugin.Context) error {
	text := summarize(pc.Input.Event, pc.Input.Data)
	body := map[string]any{
		"text": text,
		"blocks": []any{
			map[string]any{
				"type": "header",
				"text": map[string]any{"type": "plain_text", "text": eventTitle(pc.Input.Event)},
			},
			map[string]any{
				"type": "section",
				"text": map[string]any{"type": "mrkdwn", "text": text},
			},
		},
	}
	return postJSON(ctx, s.client, pc.Config["webhook_url"], body)
}
