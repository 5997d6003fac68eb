package sanitize

import "sheetport/pkg/platform/jsontree"

// Policy names the keys a Sanitizer keeps and drops.
type Policy struct {
	// TopLevel is the allow-list for the character document itself.
	TopLevel jsontree.KeySet
	// AlwaysDrop is removed from the document even if TopLevel allows it.
	AlwaysDrop jsontree.KeySet
	// Embedded is the allow-list for items and effects.
	Embedded jsontree.KeySet
	// EmbeddedDrop is removed from items and effects.
	EmbeddedDrop jsontree.KeySet
	// SystemBlacklist is stripped at any depth under system.
	SystemBlacklist jsontree.KeySet
	// Token is removed from prototypeToken.
	Token jsontree.KeySet
}

// DefaultPolicy returns the policy for shadowrun6-eden actors. Identity,
// audit stats, permission and ownership grants, and sort order are assigned
// by the store and never accepted from an import.
func DefaultPolicy() Policy {
	return Policy{
		TopLevel:        jsontree.NewKeySet("name", "type", "img", "system", "items", "effects", "folder", "flags", "prototypeToken"),
		AlwaysDrop:      jsontree.NewKeySet("_id", "_stats", "permission", "ownership", "sort"),
		Embedded:        jsontree.NewKeySet("name", "type", "img", "system", "flags", "effects"),
		EmbeddedDrop:    jsontree.NewKeySet("_id", "_stats", "permission", "ownership"),
		SystemBlacklist: jsontree.NewKeySet("_id", "_stats", "_sourceId", "_key", "permission", "ownership"),
		Token:           jsontree.NewKeySet("_id", "actorId"),
	}
}
