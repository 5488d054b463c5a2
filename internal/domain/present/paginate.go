package present

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to values cut at the field budget.
const TruncationMarker = "...(truncated)"

const (
	// partSuffixReserve leaves room for the " (n/m)" title suffix.
	partSuffixReserve = 12
	maxTitleRunes     = 256
)

// Budget bounds message sizes in characters (runes).
type Budget struct {
	// Field caps a single field value.
	Field int
	// Message caps title plus every field name and value of one message.
	Message int
	// MaxFields caps the number of fields per message.
	MaxFields int
}

// DefaultBudget matches Discord embed limits.
func DefaultBudget() Budget {
	return Budget{Field: 1024, Message: 6000, MaxFields: 25}
}

// Message is one postable chunk of a View.
type Message struct {
	Title   string
	Color   int
	Fields  []Field
	Actions []Button
	Part    int
	Parts   int
}

// Size is the number of runes the budget accounts for.
func (m Message) Size() int {
	n := utf8.RuneCountInString(m.Title)
	for _, f := range m.Fields {
		n += fieldSize(f)
	}
	return n
}

// Truncate shortens value to at most limit runes, ending in TruncationMarker
// when anything was cut. A value of exactly limit runes is returned as is.
func Truncate(value string, limit int) string {
	if limit <= 0 {
		return ""
	}
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	marker := []rune(TruncationMarker)
	runes := []rune(value)
	if limit <= len(marker) {
		return string(runes[:limit])
	}
	return string(runes[:limit-len(marker)]) + TruncationMarker
}

// Paginate splits v into messages that each respect b. Every field of v
// appears exactly once across the result, in order; only the first message
// carries the actions.
func Paginate(v View, b Budget) []Message {
	if b.Field <= 0 {
		b.Field = DefaultBudget().Field
	}
	if b.Message < b.Field {
		b.Message = b.Field
	}
	if b.MaxFields <= 0 {
		b.MaxFields = DefaultBudget().MaxFields
	}

	title := Truncate(v.Title, min(maxTitleRunes, b.Message/4))
	overhead := utf8.RuneCountInString(title) + partSuffixReserve

	var pages [][]Field
	var current []Field
	used := overhead
	for _, f := range v.Fields {
		f.Value = Truncate(f.Value, min(b.Field, b.Message-overhead-utf8.RuneCountInString(f.Name)))
		size := fieldSize(f)
		if len(current) > 0 && (used+size > b.Message || len(current) >= b.MaxFields) {
			pages = append(pages, current)
			current = nil
			used = overhead
		}
		current = append(current, f)
		used += size
	}
	if len(current) > 0 || len(pages) == 0 {
		pages = append(pages, current)
	}

	out := make([]Message, len(pages))
	for i, fields := range pages {
		m := Message{Title: title, Color: v.Color, Fields: fields, Part: i + 1, Parts: len(pages)}
		if len(pages) > 1 {
			m.Title = fmt.Sprintf("%s (%d/%d)", title, i+1, len(pages))
		}
		if i == 0 {
			m.Actions = v.Actions
		}
		out[i] = m
	}
	return out
}

func fieldSize(f Field) int {
	return utf8.RuneCountInString(f.Name) + utf8.RuneCountInString(f.Value)
}

// Truncated reports whether any field of msgs was cut at the budget.
func Truncated(msgs []Message) bool {
	for _, m := range msgs {
		for _, f := range m.Fields {
			if strings.HasSuffix(f.Value, TruncationMarker) {
				return true
			}
		}
	}
	return false
}
