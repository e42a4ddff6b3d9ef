package redact

import "strings"

// Mask replaces every credential.
const Mask = "***"

// Scrubber removes credentials from text. Secrets are re-read on every call
// so rotated tokens are covered.
type Scrubber struct {
	secrets func() []string
}

// New creates a Scrubber. secrets may be nil.
func New(secrets func() []string) *Scrubber {
	return &Scrubber{secrets: secrets}
}

// String returns text with every match replaced by Mask. A nil Scrubber
// still applies the built-in patterns.
func (s *Scrubber) String(text string) string {
	if text == "" {
		return text
	}
	var known []string
	if s != nil && s.secrets != nil {
		known = s.secrets()
	}
	matches := Scan(text, known...)
	if len(matches) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(text[last:m.Start])
		b.WriteString(Mask)
		last = m.End
	}
	b.WriteString(text[last:])
	return b.String()
}

// Strings scrubs each element in place and returns the slice.
func (s *Scrubber) Strings(texts []string) []string {
	for i, t := range texts {
		texts[i] = s.String(t)
	}
	return texts
}
