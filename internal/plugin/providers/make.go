package providers

import (
	"context"
	"net/http"

	"github.com/emberhook/emberhook/internal/plugin"
)

// Make forwards the raw event to a Make (Integromat) custom webhook.
type Make struct {
	client *http.Client
}

func NewMake(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "make",
		Label: "Make",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "webhook_url", Label: "Custom webhook URL", Kind: plugin.FieldURL, Required: true, Secret: true},
		}},
		Handler: &Make{client: client},
	}
}

func (m *Make) SendEvent(ctx context.Context, pc plugin.Context) error {
	return postJSON(ctx, m.client, pc.Config["webhook_url"], map[string]any{
		"event": pc.Input.Event,
		"data":  pc.Input.Data,
	})
}
