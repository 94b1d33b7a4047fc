package providers

import (
	"context"
	"net/http"

	"github.com/emberhook/emberhook/internal/plugin"
)

// Zapier forwards the raw event to a Zapier catch hook. Zaps do their own
// field mapping, so no payload shaping is applied here.
type Zapier struct {
	client *http.Client
}

func NewZapier(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "zapier",
		Label: "Zapier",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "hook_url", Label: "Catch hook URL", Kind: plugin.FieldURL, Required: true, Secret: true},
		}},
		Handler: &Zapier{client: client},
	}
}

func (z *Zapier) SendEvent(ctx context.Context, pc plugin.Context) error {
	return postJSON(ctx, z.client, pc.Config["hook_url"], map[string]any{
		"event": pc.Input.Event,
		"data":  pc.Input.Data,
	})
}
