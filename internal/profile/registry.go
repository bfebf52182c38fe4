package profile

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/sakif/execbox/internal/apperror"
)

// Override adjusts or removes one built-in profile. Zero-valued fields keep
// the built-in value.
type Override struct {
	Disabled   bool
	Image      string
	BackendURL string
	MemoryMB   int
	CPU        float64
	CompileCmd string
	RunCmd     string
}

// Registry holds the resolved language catalog for one engine instance.
// It is immutable after construction and safe for concurrent use.
type Registry struct {
	profiles map[string]Profile
	ids      []string
}

// NewRegistry builds a registry from the built-in catalog with the given
// overrides applied. Overrides referencing unknown languages or carrying a
// malformed backend URL fail construction; a bad route surfaces here rather
// than on the first request that hits it.
func NewRegistry(overrides map[string]Override) (*Registry, error) {
	profiles := make(map[string]Profile)
	for _, p := range Defaults() {
		profiles[p.ID] = p
	}

	for id, ov := range overrides {
		id = normalize(id)
		p, ok := profiles[id]
		if !ok {
			return nil, fmt.Errorf("language %q: no built-in profile to override", id)
		}
		if ov.Disabled {
			delete(profiles, id)
			continue
		}
		if ov.Image != "" {
			p.Image = ov.Image
		}
		if ov.BackendURL != "" {
			u, err := url.Parse(ov.BackendURL)
			if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
				return nil, fmt.Errorf("language %q: invalid backend URL %q", id, ov.BackendURL)
			}
			p.BackendURL = strings.TrimRight(ov.BackendURL, "/")
		}
		if ov.MemoryMB > 0 {
			p.MemoryMB = ov.MemoryMB
		}
		if ov.CPU > 0 {
			p.CPU = ov.CPU
		}
		if ov.CompileCmd != "" {
			p.CompileCmd = ov.CompileCmd
		}
		if ov.RunCmd != "" {
			p.RunCmd = ov.RunCmd
		}
		profiles[id] = p
	}

	ids := make([]string, 0, len(profiles))
	for id := range profiles {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &Registry{profiles: profiles, ids: ids}, nil
}

// Resolve returns the profile for a request language ID. Lookup is
// case-insensitive and ignores surrounding whitespace. Unknown languages
// return apperror.ErrNotSupported.
func (r *Registry) Resolve(language string) (Profile, error) {
	p, ok := r.profiles[normalize(language)]
	if !ok {
		return Profile{}, apperror.NotSupported(language)
	}
	return p, nil
}

// IDs returns the enabled language IDs in sorted order.
func (r *Registry) IDs() []string {
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

// Profiles returns the enabled profiles ordered by ID.
func (r *Registry) Profiles() []Profile {
	out := make([]Profile, 0, len(r.ids))
	for _, id := range r.ids {
		out = append(out, r.profiles[id])
	}
	return out
}

func normalize(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}
