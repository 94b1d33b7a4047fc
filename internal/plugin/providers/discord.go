package providers

import (
	"context"
	"fmt"
	"net/http"
	"sort"

	"github.com/emberhook/emberhook/internal/plugin"
)

// Discord posts events to a Discord channel webhook as a single embed.
type Discord struct {
	client *http.Client
}

func NewDiscord(client *http.Client) plugin.Definition {
	return plugin.Definition{
		Slug:  "discord",
		Label: "Discord",
		Schema: plugin.Schema{Fields: []plugin.Field{
			{Name: "webhook_url", Label: "Channel webhook URL", Kind: plugin.FieldURL, Required: true, Secret: true},
			{Name: "username", Label: "Bot display name", Kind: plugin.FieldString},
		}},
		Handler: &Discord{client: client},
	}
}

func (d *Discord) SendEvent(ctx context.Context, pc plugin.Context) error {
	embed := map[string]any{
		"title":  eventTitle(pc.Input.Event),
		"fields": discordFields(pc.Input.Data),
	}
	body := map[string]any{
		"embeds": []any{embed},
	}
	if username := pc.Config["username"]; username != "" {
		body["username"] = username
	}
	return postJSON(ctx, d.client, pc.Config["webhook_url"], body)
}

// discordFields flattens scalar payload values into embed fields, capped at
// Discord's limit of 25 fields per embed.
func discordFields(data map[string]any) []map[string]any {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var fields []map[string]any
	for _, k := range keys {
		switch data[k].(type) {
		case map[string]any, []any:
			continue
		}
		fields = append(fields, map[string]any{
			"name":   k,
			"value":  fmt.Sprintf("%v", data[k]),
			"inline": true,
		})
		if len(fields) == 25 {
			break
		}
	}
	return fields
}
