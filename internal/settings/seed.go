package settings

import (
	"context"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/tbourn/forumdesk/internal/repo"
)

// SeedFile loads default settings from a YAML document and stores every key
// that is not stored yet. Nested maps are flattened with dots, so
//
//	text:
//	  greeting: Hi
//
// seeds "text.greeting". It returns the number of keys written.
func (s *Store) SeedFile(ctx context.Context, path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed: %w", err)
	}
	return s.Seed(ctx, raw)
}

// Seed is SeedFile on an in-memory document.
func (s *Store) Seed(ctx context.Context, doc []byte) (int, error) {
	var tree map[string]any
	if err := yaml.Unmarshal(doc, &tree); err != nil {
		return 0, fmt.Errorf("parse seed: %w", err)
	}
	flat := map[string]string{}
	flatten("", tree, flat)

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	written := 0
	for _, k := range keys {
		v, err := Normalize(k, flat[k])
		if err != nil {
			return written, fmt.Errorf("seed: %w", err)
		}
		ok, err := repo.SeedSetting(ctx, s.DB, k, v)
		if err != nil {
			return written, fmt.Errorf("seed %s: %w", k, err)
		}
		if ok {
			written++
		}
	}
	if written > 0 {
		s.Log.Info().Int("keys", written).Msg("settings seeded")
	}
	return written, s.Reload(ctx)
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case nil:
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}
