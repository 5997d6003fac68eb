// Package normalize reshapes foreign character-sheet JSON into the
// shadowrun6-eden actor shape: canonical type tag, a complete attribute block,
// the full skill set, and display defaults.
package normalize

import (
	"strings"

	"sheetport/internal/character/models"
	"sheetport/pkg/platform/jsontree"
)

// Options controls the coercions Normalize applies.
type Options struct {
	// CoerceType forces unrecognized type tags to Player. When false an
	// unrecognized tag passes through and the store decides.
	CoerceType bool
}

// DefaultOptions returns the importer defaults.
func DefaultOptions() Options {
	return Options{CoerceType: true}
}

// Normalize returns a well-formed character record built from input.
// input is never mutated.
func Normalize(input map[string]any, opts Options) models.Record {
	data := jsontree.CloneMap(input)
	if data == nil {
		data = map[string]any{}
	}

	data["type"] = normalizeType(data["type"], opts.CoerceType)

	system := ensureObject(data, "system")
	attrs := ensureObject(system, "attributes")
	backfillAttributes(attrs, legacySources(attrs, input))
	backfillSkills(ensureObject(system, "skills"))

	img, _ := data["img"].(string)
	if img == "" {
		img = DefaultImage
		data["img"] = img
	}
	if _, ok := data["prototypeToken"].(map[string]any); !ok {
		name, _ := data["name"].(string)
		data["prototypeToken"] = newToken(name, img)
	}

	return models.Record(data)
}

// normalizeType maps synonyms to Player. With coercion every other tag
// becomes Player too; without it the original value survives unless the tag
// is missing entirely.
func normalizeType(v any, coerce bool) any {
	s, _ := v.(string)
	if _, ok := typeSynonyms[strings.ToLower(strings.TrimSpace(s))]; ok {
		return models.TypePlayer
	}
	if coerce || isAbsent(v) {
		return models.TypePlayer
	}
	return v
}

func isAbsent(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	}
	return false
}

// ensureObject returns parent[key] as an object, replacing missing or
// non-object values with an empty one.
func ensureObject(parent map[string]any, key string) map[string]any {
	if m, ok := parent[key].(map[string]any); ok {
		return m
	}
	m := map[string]any{}
	parent[key] = m
	return m
}

// legacySources lists where flat attribute keys may live, highest priority first.
func legacySources(attrs, input map[string]any) []map[string]any {
	sources := []map[string]any{attrs}
	if sys, ok := input["system"].(map[string]any); ok {
		if a, ok := sys["attributes"].(map[string]any); ok {
			sources = append(sources, a)
		}
	}
	if a, ok := input["attributes"].(map[string]any); ok {
		sources = append(sources, a)
	}
	return sources
}

func legacyValue(sources []map[string]any, flatKey string) (float64, bool) {
	for _, src := range sources {
		if n, ok := toNumber(src[flatKey]); ok {
			return n, true
		}
	}
	return 0, false
}

func backfillAttributes(attrs map[string]any, legacy []map[string]any) {
	for _, a := range CoreAttributes {
		fallback := float64(defaultCoreAttribute)
		if n, ok := legacyValue(legacy, a.FlatKey); ok {
			fallback = n
		}
		switch v := attrs[a.Key].(type) {
		case map[string]any:
			if !wellFormedAttribute(v) {
				repairAttribute(v, fallback)
			}
		default:
			if n, ok := toNumber(v); ok {
				attrs[a.Key] = newAttribute(n)
			} else {
				attrs[a.Key] = newAttribute(fallback)
			}
		}
	}

	attrs[AttrMagic] = specialAttribute(attrs[AttrMagic], 0, true)
	attrs[AttrResonance] = specialAttribute(attrs[AttrResonance], 0, false)
	attrs[AttrEdge] = edgeAttribute(attrs[AttrEdge])
	attrs[AttrEssence] = specialAttribute(attrs[AttrEssence], defaultEssence, false)
}

func specialAttribute(v any, def float64, withMin bool) any {
	if m, ok := v.(map[string]any); ok {
		if !wellFormedAttribute(m) {
			repairAttribute(m, def)
		}
		return m
	}
	if n, ok := asFloat(v); ok {
		return newSpecialAttribute(n, withMin)
	}
	return newSpecialAttribute(def, withMin)
}

func edgeAttribute(v any) any {
	if m, ok := v.(map[string]any); ok {
		if n, ok := toNumber(m["max"]); ok {
			if _, numeric := asFloat(m["max"]); !numeric {
				m["max"] = n
			}
			if _, ok := asFloat(m["current"]); !ok {
				m["current"] = 0.0
			}
			return m
		}
	}
	if n, ok := asFloat(v); ok {
		return map[string]any{"current": 0.0, "max": n}
	}
	return map[string]any{"current": 0.0, "max": float64(defaultEdgeMax)}
}

func wellFormedAttribute(m map[string]any) bool {
	_, baseOK := asFloat(m["base"])
	_, poolOK := asFloat(m["pool"])
	return baseOK && poolOK
}

// repairAttribute fills base, pool, and mod in place, keeping every other key.
func repairAttribute(m map[string]any, def float64) {
	base, ok := toNumber(m["base"])
	if !ok {
		if base, ok = toNumber(m["pool"]); !ok {
			base = def
		}
	}
	pool, ok := toNumber(m["pool"])
	if !ok {
		pool = base
	}
	m["base"] = base
	m["pool"] = pool
	if _, ok := asFloat(m["mod"]); !ok {
		m["mod"] = 0.0
	}
}

func backfillSkills(skills map[string]any) {
	for _, key := range SkillKeys {
		switch v := skills[key].(type) {
		case map[string]any:
			repairSkill(v)
		default:
			if n, ok := asFloat(v); ok {
				skills[key] = newSkill(n)
			} else {
				skills[key] = newSkill(0)
			}
		}
	}
}

// repairSkill fills missing or mistyped fields; well-formed fields are untouched.
func repairSkill(m map[string]any) {
	for _, field := range []string{"points", "modifier", "augment"} {
		if _, ok := asFloat(m[field]); ok {
			continue
		}
		n, _ := toNumber(m[field])
		m[field] = n
	}
	for _, field := range []string{"specialization", "expertise"} {
		if _, ok := m[field].(string); !ok {
			m[field] = ""
		}
	}
}
