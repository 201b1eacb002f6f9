package domain

import (
	"strings"
	"time"
)

// Intent is one natural-language request from the operator, captured
// verbatim plus in the normalized form the matcher and providers consume.
type Intent struct {
	Raw        string    `json:"raw"`
	Normalized string    `json:"normalized"`
	ReceivedAt time.Time `json:"received_at"`
}

// NewIntent normalizes the raw text: surrounding whitespace is trimmed,
// interior runs of whitespace collapse to single spaces, and ASCII letters
// are lowercased. CJK text passes through unchanged apart from spacing.
func NewIntent(raw string) Intent {
	return Intent{
		Raw:        raw,
		Normalized: NormalizeIntent(raw),
		ReceivedAt: time.Now().UTC(),
	}
}

// NormalizeIntent applies the same folding NewIntent does, usable on its own
// when only the normalized form is needed.
func NormalizeIntent(raw string) string {
	fields := strings.Fields(raw)
	return strings.ToLower(strings.Join(fields, " "))
}

// Empty reports whether the intent carried no usable text.
func (i Intent) Empty() bool {
	return i.Normalized == ""
}
