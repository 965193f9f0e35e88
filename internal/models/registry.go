package models

import (
	"sort"
	"time"

	"debatebench/internal/openrouter"
)

// Registry holds a filtered view of the remote model catalog.
type Registry struct {
	entries []openrouter.Model
}

// NewRegistry creates a registry keeping only text-in/text-out models.
// Entries without architecture metadata are kept; entries that declare
// modalities must accept and produce text.
func NewRegistry(catalog []openrouter.Model) *Registry {
	var entries []openrouter.Model
	for _, m := range catalog {
		if m.Architecture != nil {
			if !contains(m.Architecture.InputModalities, "text") ||
				!contains(m.Architecture.OutputModalities, "text") {
				continue
			}
		}
		entries = append(entries, m)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return &Registry{entries: entries}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}

// All returns the registry contents sorted by id.
func (r *Registry) All() []openrouter.Model {
	return r.entries
}

// Recent returns models created within the last `months`, newest first.
func (r *Registry) Recent(months int, now time.Time) []openrouter.Model {
	cutoff := now.AddDate(0, 0, -months*30)
	var recent []openrouter.Model
	for _, m := range r.entries {
		if m.Created == 0 {
			continue
		}
		if time.Unix(m.Created, 0).Before(cutoff) {
			continue
		}
		recent = append(recent, m)
	}
	sort.Slice(recent, func(i, j int) bool { return recent[i].Created > recent[j].Created })
	return recent
}

// Free returns models priced at zero for both prompt and completion.
// Models with no pricing metadata are excluded.
func (r *Registry) Free() []openrouter.Model {
	var free []openrouter.Model
	for _, m := range r.entries {
		if m.Pricing == nil {
			continue
		}
		if m.Pricing.Prompt == "0" && m.Pricing.Completion == "0" {
			free = append(free, m)
		}
	}
	return free
}
