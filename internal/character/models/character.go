package models

import (
	"strings"
	"time"

	dErrors "sheetport/pkg/domain-errors"
)

// Record is a character document as JSON-shaped data. Imported sheets use
// foreign schemas, so the importer works on the dynamic form and only the
// store gives it a fixed envelope.
type Record map[string]any

// Name returns the record's name, or "" when absent or not a string.
func (r Record) Name() string {
	s, _ := r["name"].(string)
	return s
}

// Type returns the record's type tag, or "" when absent or not a string.
func (r Record) Type() string {
	s, _ := r["type"].(string)
	return s
}

// Folder returns the record's folder reference, or "".
func (r Record) Folder() string {
	s, _ := r["folder"].(string)
	return s
}

// Character types the store accepts.
const (
	TypePlayer  = "Player"
	TypeNPC     = "NPC"
	TypeCritter = "Critter"
	TypeSpirit  = "Spirit"
	TypeVehicle = "Vehicle"
)

var recognizedTypes = map[string]struct{}{
	TypePlayer:  {},
	TypeNPC:     {},
	TypeCritter: {},
	TypeSpirit:  {},
	TypeVehicle: {},
}

// IsRecognizedType reports whether t is a character type the store accepts.
func IsRecognizedType(t string) bool {
	_, ok := recognizedTypes[t]
	return ok
}

// Character is a created, persisted character.
type Character struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	FolderID  string    `json:"folder,omitempty"`
	Data      Record    `json:"data"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewCharacter validates a sanitized record and builds the persisted envelope.
//
// Invariants:
//   - name is non-empty after trimming
//   - type is one of the recognized character types
func NewCharacter(id string, rec Record, now time.Time) (*Character, error) {
	name := strings.TrimSpace(rec.Name())
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "character name cannot be empty")
	}
	if !IsRecognizedType(rec.Type()) {
		return nil, dErrors.New(dErrors.CodeValidation, "unrecognized character type \""+rec.Type()+"\"")
	}
	return &Character{
		ID:        id,
		Name:      name,
		Type:      rec.Type(),
		FolderID:  rec.Folder(),
		Data:      rec,
		CreatedAt: now,
	}, nil
}

// CreateOptions are passed through to the store with each creation.
type CreateOptions struct {
	Render bool `json:"render"`
}

// Folder groups characters in the store.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
