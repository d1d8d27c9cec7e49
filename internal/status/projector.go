// Package status translates tracked unit-of-work state into render-ready
// rows for the display layer.
package status

import (
	"unicode/utf8"

	"github.com/ShayCichocki/foreman/pkg/models"
)

// Status glyphs for unit states.
const (
	GlyphRunning = "[●]"
	GlyphDone    = "[✓]"
	GlyphError   = "[✗]"
	GlyphIdle    = "[○]"
)

// Connector prefixes pipeline rows after the first, marking the chain.
const Connector = "└─▶ "

// previewLen bounds the activity preview column.
const previewLen = 48

// Row is one render-ready status line.
type Row struct {
	// Label is the unit's display name, with the pipeline connector
	// prefix already applied when requested.
	Label string
	// Glyph is the status icon for the unit's state.
	Glyph string
	// ElapsedSeconds is the unit's recorded elapsed time.
	ElapsedSeconds int64
	// Preview is the truncated last-activity line.
	Preview string
}

// Project converts a unit snapshot into display rows, in snapshot order.
// When connected is true, rows after the first carry the pipeline
// connector prefix. Project is pure: it performs no I/O, never mutates
// its input, and returns equal output for equal input.
func Project(units []models.Unit, connected bool) []Row {
	rows := make([]Row, 0, len(units))
	for i, u := range units {
		label := u.Label
		if label == "" {
			label = u.ID
		}
		if connected && i > 0 {
			label = Connector + label
		}

		rows = append(rows, Row{
			Label:          label,
			Glyph:          glyph(u.Status),
			ElapsedSeconds: u.ElapsedMs / 1000,
			Preview:        truncate(u.LastActivity, previewLen),
		})
	}
	return rows
}

func glyph(s models.UnitStatus) string {
	switch s {
	case models.UnitRunning:
		return GlyphRunning
	case models.UnitDone:
		return GlyphDone
	case models.UnitError:
		return GlyphError
	default:
		return GlyphIdle
	}
}

// truncate shortens s to at most n bytes plus an ellipsis, cutting on a
// rune boundary so the preview never carries a split multibyte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
