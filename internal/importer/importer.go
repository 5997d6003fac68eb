// Package importer turns externally authored SR6 "Eden" character sheets into
// stored characters: parse, normalize, sanitize, then create directly or
// through a privileged peer.
package importer

import (
	"unicode/utf8"

	"sheetport/internal/character/models"
	dErrors "sheetport/pkg/domain-errors"
)

// SystemID is the game system imported sheets are shaped for.
const SystemID = "shadowrun6-eden"

// debugPayloadLimit caps how much raw input a debug log line carries.
const debugPayloadLimit = 1600

// Options control one import call.
type Options struct {
	// Folder, when set, files every imported character into this folder.
	Folder string
	// Render is echoed on the Result for callers that open a sheet view.
	Render bool
	// ForceSystem warns when the world runs a different game system.
	ForceSystem bool
	// CoerceType maps unrecognized character types to Player.
	CoerceType bool
	// GMFallback delegates creation to the GM when the actor may not create.
	GMFallback bool
	// Debug logs the raw payload and each sanitized record.
	Debug bool
}

// DefaultOptions returns the options an interactive import starts with.
func DefaultOptions() Options {
	return Options{
		Render:      true,
		ForceSystem: true,
		CoerceType:  true,
		GMFallback:  true,
	}
}

// Notice levels.
const (
	NoticeInfo  = "info"
	NoticeWarn  = "warn"
	NoticeError = "error"
)

// Notice is a user-facing message produced during an import.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// UnitError records why one element of an import failed.
type UnitError struct {
	Index   int          `json:"index"`
	Code    dErrors.Code `json:"code"`
	Message string       `json:"message"`
	Err     error        `json:"-"`
}

// Result is the outcome of ImportFromText. Characters holds only the
// successfully created characters, in input order.
type Result struct {
	Characters []models.Character `json:"characters"`
	Succeeded  int                `json:"succeeded"`
	Failed     int                `json:"failed"`
	Errors     []UnitError        `json:"errors,omitempty"`
	Notices    []Notice           `json:"notices"`
	Render     bool               `json:"render"`
	// Batch is true when the input was a JSON array.
	Batch bool `json:"batch"`
}

func (r *Result) notice(level, msg string) {
	r.Notices = append(r.Notices, Notice{Level: level, Message: msg})
}

// FirstError returns the first unit failure, or nil.
func (r *Result) FirstError() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return r.Errors[0].Err
}

// truncate shortens s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "…(truncated)"
}
