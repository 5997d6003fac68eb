package normalize

// DefaultImage is the placeholder portrait for sheets that carry none.
const DefaultImage = "systems/shadowrun6-eden/icons/compendium/default/Default_Clothing.svg"

// DefaultTokenName names the synthesized token when the sheet has no name.
const DefaultTokenName = "Runner"

// typeSynonyms are lower-cased type tags that mean a player character.
var typeSynonyms = map[string]struct{}{
	"player":    {},
	"character": {},
	"pc":        {},
	"runner":    {},
}

// coreAttribute pairs a canonical attribute code with the long-form key
// older exports use for the same value.
type coreAttribute struct {
	Key     string
	FlatKey string
}

// CoreAttributes are the physical and mental attributes, in sheet order.
var CoreAttributes = []coreAttribute{
	{Key: "bod", FlatKey: "body"},
	{Key: "agi", FlatKey: "agility"},
	{Key: "rea", FlatKey: "reaction"},
	{Key: "str", FlatKey: "strength"},
	{Key: "wil", FlatKey: "willpower"},
	{Key: "log", FlatKey: "logic"},
	{Key: "int", FlatKey: "intuition"},
	{Key: "cha", FlatKey: "charisma"},
}

// Special attributes have their own default rules.
const (
	AttrMagic     = "mag"
	AttrResonance = "res"
	AttrEdge      = "edg"
	AttrEssence   = "essence"
)

const (
	defaultCoreAttribute = 1
	defaultEdgeMax       = 1
	defaultEssence       = 6
)

// SkillKeys is the closed set of skills every sheet carries.
var SkillKeys = []string{
	"astral",
	"athletics",
	"biotech",
	"close_combat",
	"con",
	"conjuring",
	"cracking",
	"electronics",
	"enchanting",
	"engineering",
	"exotic_weapons",
	"firearms",
	"influence",
	"outdoors",
	"perception",
	"piloting",
	"sorcery",
	"stealth",
	"tasking",
}

// AttributeKeys returns every canonical attribute key.
func AttributeKeys() []string {
	keys := make([]string, 0, len(CoreAttributes)+4)
	for _, a := range CoreAttributes {
		keys = append(keys, a.Key)
	}
	return append(keys, AttrMagic, AttrResonance, AttrEdge, AttrEssence)
}

func newAttribute(n float64) map[string]any {
	return map[string]any{"base": n, "mod": 0.0, "modString": "", "augment": 0.0, "pool": n}
}

func newSpecialAttribute(n float64, withMin bool) map[string]any {
	a := map[string]any{"base": n, "mod": 0.0, "pool": n}
	if withMin {
		a["min"] = 0.0
	}
	return a
}

func newSkill(points float64) map[string]any {
	return map[string]any{
		"points":         points,
		"specialization": "",
		"expertise":      "",
		"modifier":       0.0,
		"augment":        0.0,
	}
}

func newToken(name, img string) map[string]any {
	if name == "" {
		name = DefaultTokenName
	}
	return map[string]any{
		"name":        name,
		"displayName": 20.0,
		"actorLink":   true,
		"width":       1.0,
		"height":      1.0,
		"texture": map[string]any{
			"src":     img,
			"anchorX": 0.5,
			"anchorY": 0.5,
			"fit":     "contain",
			"scaleX":  1.0,
			"scaleY":  1.0,
		},
		"bar1": map[string]any{"attribute": "physical"},
		"bar2": map[string]any{"attribute": "stun"},
	}
}
