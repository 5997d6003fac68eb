// Package sanitize strips host-managed and security-sensitive fields from
// character records before they reach the store.
package sanitize

import (
	"context"

	"sheetport/internal/character/models"
	"sheetport/pkg/platform/jsontree"
)

// FolderResolver reports whether a folder reference exists in the store.
type FolderResolver interface {
	FolderExists(ctx context.Context, id string) bool
}

// Sanitizer applies a Policy to character records.
type Sanitizer struct {
	policy  Policy
	folders FolderResolver
}

// Option configures a Sanitizer.
type Option func(*Sanitizer)

// WithPolicy replaces DefaultPolicy.
func WithPolicy(p Policy) Option {
	return func(s *Sanitizer) {
		s.policy = p
	}
}

// New builds a Sanitizer. A nil resolver treats every folder as unknown.
func New(folders FolderResolver, opts ...Option) *Sanitizer {
	s := &Sanitizer{policy: DefaultPolicy(), folders: folders}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize returns a cleaned copy of rec. It never fails and
// Sanitize(Sanitize(x)) equals Sanitize(x).
func (s *Sanitizer) Sanitize(ctx context.Context, rec models.Record) models.Record {
	data := jsontree.CloneMap(rec)
	if data == nil {
		return models.Record{}
	}

	for k := range data {
		if !s.policy.TopLevel.Has(k) || s.policy.AlwaysDrop.Has(k) {
			delete(data, k)
		}
	}

	if _, ok := data["folder"]; ok && !s.folderResolves(ctx, data["folder"]) {
		delete(data, "folder")
	}

	for _, key := range []string{"items", "effects"} {
		if list, ok := data[key].([]any); ok {
			data[key] = s.sanitizeEmbeddedList(list)
		}
	}

	if token, ok := data["prototypeToken"].(map[string]any); ok {
		s.sanitizeToken(token)
	}

	if system, ok := data["system"].(map[string]any); ok {
		jsontree.Strip(system, s.policy.SystemBlacklist)
	}

	return models.Record(data)
}

func (s *Sanitizer) folderResolves(ctx context.Context, v any) bool {
	id, ok := v.(string)
	if !ok || id == "" || s.folders == nil {
		return false
	}
	return s.folders.FolderExists(ctx, id)
}

// sanitizeEmbeddedList cleans items or effects; non-object entries are dropped.
func (s *Sanitizer) sanitizeEmbeddedList(list []any) []any {
	out := make([]any, 0, len(list))
	for _, e := range list {
		m, ok := e.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, s.sanitizeEmbedded(m))
	}
	return out
}

func (s *Sanitizer) sanitizeEmbedded(e map[string]any) map[string]any {
	for k := range e {
		if !s.policy.Embedded.Has(k) || s.policy.EmbeddedDrop.Has(k) {
			delete(e, k)
		}
	}
	if system, ok := e["system"].(map[string]any); ok {
		jsontree.Strip(system, s.policy.SystemBlacklist)
	}
	if nested, ok := e["effects"].([]any); ok {
		e["effects"] = s.sanitizeEmbeddedList(nested)
	}
	return e
}

func (s *Sanitizer) sanitizeToken(token map[string]any) {
	for k := range s.policy.Token {
		delete(token, k)
	}
	flags, ok := token["flags"].(map[string]any)
	if !ok {
		return
	}
	if core, ok := flags["core"].(map[string]any); ok {
		delete(core, "sourceId")
	}
}
