package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetport/internal/character/models"
	"sheetport/pkg/platform/jsontree"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func attributes(rec models.Record) map[string]any {
	return rec["system"].(map[string]any)["attributes"].(map[string]any)
}

func skills(rec models.Record) map[string]any {
	return rec["system"].(map[string]any)["skills"].(map[string]any)
}

func TestNormalizeType(t *testing.T) {
	tests := []struct {
		name   string
		input  any
		coerce bool
		want   any
	}{
		{name: "PC synonym", input: "PC", coerce: true, want: "Player"},
		{name: "runner synonym without coercion", input: "Runner", coerce: false, want: "Player"},
		{name: "character synonym", input: "character", coerce: true, want: "Player"},
		{name: "unrecognized coerced", input: "Spirit", coerce: true, want: "Player"},
		{name: "unrecognized passes through", input: "Spirit", coerce: false, want: "Spirit"},
		{name: "missing type defaults", input: nil, coerce: false, want: "Player"},
		{name: "empty type defaults", input: "", coerce: false, want: "Player"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := map[string]any{"name": "Kestrel"}
			if tt.input != nil {
				in["type"] = tt.input
			}
			out := Normalize(in, Options{CoerceType: tt.coerce})
			assert.Equal(t, tt.want, out["type"])
		})
	}
}

func TestNormalizeFillsEveryCanonicalKey(t *testing.T) {
	out := Normalize(map[string]any{"name": "Empty"}, DefaultOptions())

	attrs := attributes(out)
	for _, key := range AttributeKeys() {
		entry, ok := attrs[key].(map[string]any)
		require.Truef(t, ok, "attribute %s missing", key)
		if key == AttrEdge {
			assert.Equal(t, 1.0, entry["max"])
			assert.Equal(t, 0.0, entry["current"])
			continue
		}
		_, baseOK := asFloat(entry["base"])
		_, poolOK := asFloat(entry["pool"])
		assert.Truef(t, baseOK && poolOK, "attribute %s not well-formed: %v", key, entry)
	}
	assert.Equal(t, 1.0, attrs["bod"].(map[string]any)["base"])
	assert.Equal(t, 0.0, attrs["mag"].(map[string]any)["base"])
	assert.Equal(t, 0.0, attrs["mag"].(map[string]any)["min"])
	assert.Equal(t, 0.0, attrs["res"].(map[string]any)["pool"])
	assert.Equal(t, 6.0, attrs["essence"].(map[string]any)["base"])

	sk := skills(out)
	require.Len(t, sk, len(SkillKeys))
	for _, key := range SkillKeys {
		assert.Equal(t, newSkill(0), sk[key], key)
	}
}

func TestNormalizeLegacyAttributes(t *testing.T) {
	in := decode(t, `{
		"name": "Legacy",
		"system": {"attributes": {"body": 5, "agility": "bad", "reaction": "4"}},
		"attributes": {"agility": 6, "strength": 2, "body": 9}
	}`)

	attrs := attributes(Normalize(in, DefaultOptions()))

	assert.Equal(t, 5.0, attrs["bod"].(map[string]any)["base"], "system attributes win over bare attributes")
	assert.Equal(t, 6.0, attrs["agi"].(map[string]any)["base"], "non-numeric value falls through to next source")
	assert.Equal(t, 4.0, attrs["rea"].(map[string]any)["pool"], "numeric strings coerce")
	assert.Equal(t, 2.0, attrs["str"].(map[string]any)["base"])
	assert.Equal(t, 1.0, attrs["wil"].(map[string]any)["base"], "unresolved defaults to 1")
}

func TestNormalizeSpecialAttributes(t *testing.T) {
	in := decode(t, `{"system": {"attributes": {"mag": 3, "res": {"base": 2, "mod": 1, "pool": 3}, "edg": 4, "essence": 5.2, "bod": 3}}}`)

	attrs := attributes(Normalize(in, DefaultOptions()))

	assert.Equal(t, map[string]any{"base": 3.0, "mod": 0.0, "pool": 3.0, "min": 0.0}, attrs["mag"])
	assert.Equal(t, map[string]any{"base": 2.0, "mod": 1.0, "pool": 3.0}, attrs["res"])
	assert.Equal(t, map[string]any{"current": 0.0, "max": 4.0}, attrs["edg"])
	assert.Equal(t, map[string]any{"base": 5.2, "mod": 0.0, "pool": 5.2}, attrs["essence"])
	assert.Equal(t, newAttribute(3), attrs["bod"], "bare number becomes an attribute entry")
}

func TestNormalizeRepairsMalformedAttribute(t *testing.T) {
	in := decode(t, `{"system": {"attributes": {"wil": {"pool": 4, "note": "kept"}, "edg": {"max": "3"}}}}`)

	attrs := attributes(Normalize(in, DefaultOptions()))

	assert.Equal(t, map[string]any{"base": 4.0, "pool": 4.0, "mod": 0.0, "note": "kept"}, attrs["wil"])
	assert.Equal(t, map[string]any{"current": 0.0, "max": 3.0}, attrs["edg"])
}

func TestNormalizeSkills(t *testing.T) {
	in := decode(t, `{"system": {"skills": {
		"firearms": 4,
		"stealth": "lots",
		"con": {"points": 2, "specialization": "Fast Talk"},
		"astral": {"points": 1, "specialization": "", "expertise": "", "modifier": 0, "augment": 0},
		"homebrew": {"points": 9}
	}}}`)

	sk := skills(Normalize(in, DefaultOptions()))

	assert.Equal(t, newSkill(4), sk["firearms"])
	assert.Equal(t, newSkill(0), sk["stealth"])
	assert.Equal(t, map[string]any{
		"points": 2.0, "specialization": "Fast Talk", "expertise": "", "modifier": 0.0, "augment": 0.0,
	}, sk["con"])
	assert.Equal(t, map[string]any{"points": 9.0}, sk["homebrew"], "unknown skills are left alone")
}

func TestNormalizeDefaults(t *testing.T) {
	out := Normalize(map[string]any{"name": "Kestrel"}, DefaultOptions())

	assert.Equal(t, DefaultImage, out["img"])
	token := out["prototypeToken"].(map[string]any)
	assert.Equal(t, "Kestrel", token["name"])
	assert.Equal(t, DefaultImage, token["texture"].(map[string]any)["src"])
	assert.Equal(t, "physical", token["bar1"].(map[string]any)["attribute"])
	assert.Equal(t, "stun", token["bar2"].(map[string]any)["attribute"])

	unnamed := Normalize(map[string]any{"img": "portraits/x.webp"}, DefaultOptions())
	unnamedToken := unnamed["prototypeToken"].(map[string]any)
	assert.Equal(t, DefaultTokenName, unnamedToken["name"])
	assert.Equal(t, "portraits/x.webp", unnamedToken["texture"].(map[string]any)["src"])
}

func TestNormalizeReplacesNonObjectSystem(t *testing.T) {
	out := Normalize(map[string]any{"system": "corrupt"}, DefaultOptions())
	_, ok := out["system"].(map[string]any)
	assert.True(t, ok)
}

func TestNormalizeDoesNotMutateInput(t *testing.T) {
	in := decode(t, `{"type": "pc", "system": {"attributes": {"body": 3}, "skills": {"con": 2}}}`)
	before := jsontree.CloneMap(in)

	_ = Normalize(in, DefaultOptions())

	assert.Equal(t, before, in)
}

func TestNormalizeKeepsWellFormedValues(t *testing.T) {
	full := Normalize(map[string]any{"name": "Seed"}, DefaultOptions())
	attrs := attributes(full)
	attrs["bod"] = map[string]any{"base": 5.0, "mod": 1.0, "modString": "+1 cyberarm", "augment": 1.0, "pool": 6.0}
	skills(full)["firearms"] = map[string]any{"points": 6.0, "specialization": "Pistols", "expertise": "", "modifier": 0.0, "augment": 0.0}

	again := Normalize(full, DefaultOptions())

	assert.Equal(t, attributes(full), attributes(again))
	assert.Equal(t, skills(full), skills(again))
}
