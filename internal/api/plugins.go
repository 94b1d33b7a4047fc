package api

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/emberhook/emberhook/internal/plugin"
)

// pluginEntry is one catalog row, with the caller's installation state when
// one exists.
type pluginEntry struct {
	Slug      string         `json:"slug"`
	Label     string         `json:"label"`
	Schema    plugin.Schema  `json:"schema"`
	Installed *installedInfo `json:"installed,omitempty"`
}

type installedInfo struct {
	Enabled   bool              `json:"enabled"`
	Config    map[string]string `json:"config"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// redactConfig masks values of fields the schema marks secret.
func redactConfig(schema plugin.Schema, config map[string]string) map[string]string {
	secret := map[string]bool{}
	for _, f := range schema.Fields {
		if f.Secret {
			secret[f.Name] = true
		}
	}
	out := make(map[string]string, len(config))
	for k, v := range config {
		if secret[k] && v != "" {
			out[k] = "********"
			continue
		}
		out[k] = v
	}
	return out
}

func (s *Server) listPlugins(w http.ResponseWriter, r *http.Request) {
	installs, err := s.Plugins.ListByOrg(r.Context(), orgID(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bySlug := make(map[string]plugin.Installation, len(installs))
	for _, inst := range installs {
		bySlug[inst.Slug] = inst
	}

	defs := s.Catalog.List()
	out := make([]pluginEntry, 0, len(defs))
	for _, def := range defs {
		entry := pluginEntry{Slug: def.Slug, Label: def.Label, Schema: def.Schema}
		if inst, ok := bySlug[def.Slug]; ok {
			entry.Installed = &installedInfo{
				Enabled:   inst.Enabled,
				Config:    redactConfig(def.Schema, inst.Config),
				CreatedAt: inst.CreatedAt,
				UpdatedAt: inst.UpdatedAt,
			}
		}
		out = append(out, entry)
	}
	writeJSON(w, http.StatusOK, map[string]any{"plugins": out})
}

func (s *Server) getPlugin(w http.ResponseWriter, r *http.Request) {
	slug := httprouter.ParamsFromContext(r.Context()).ByName("slug")
	def, ok := s.Catalog.Get(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown plugin "+slug)
		return
	}
	entry := pluginEntry{Slug: def.Slug, Label: def.Label, Schema: def.Schema}
	inst, err := s.Plugins.Get(r.Context(), orgID(r), slug)
	if err == nil {
		entry.Installed = &installedInfo{
			Enabled:   inst.Enabled,
			Config:    redactConfig(def.Schema, inst.Config),
			CreatedAt: inst.CreatedAt,
			UpdatedAt: inst.UpdatedAt,
		}
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) installPlugin(w http.ResponseWriter, r *http.Request) {
	slug := httprouter.ParamsFromContext(r.Context()).ByName("slug")
	var req struct {
		Enabled *bool             `json:"enabled"`
		Config  map[string]string `json:"config"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	inst, err := s.Plugins.Install(r.Context(), orgID(r), slug, req.Config, enabled)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	def, _ := s.Catalog.Get(slug)
	writeJSON(w, http.StatusOK, installedInfo{
		Enabled:   inst.Enabled,
		Config:    redactConfig(def.Schema, inst.Config),
		CreatedAt: inst.CreatedAt,
		UpdatedAt: inst.UpdatedAt,
	})
}

func (s *Server) uninstallPlugin(w http.ResponseWriter, r *http.Request) {
	slug := httprouter.ParamsFromContext(r.Context()).ByName("slug")
	if err := s.Plugins.Uninstall(r.Context(), orgID(r), slug); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
