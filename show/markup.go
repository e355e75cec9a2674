package show

// Cue and show notes carry a tiny inline markup grammar: *bold*, _italic_,
// ~strike~. The grammar is stored verbatim; ParseMarkup tokenizes it into styled
// spans for whichever front end renders it.

// Span is one run of text with a uniform style.
type Span struct {
	Text   string
	Bold   bool
	Italic bool
	Strike bool
}

// ParseMarkup splits a notes string into styled spans. Markers toggle their
// style; an unclosed marker at end of input is treated as literal text.
func ParseMarkup(s string) []Span {
	var spans []Span
	var bold, italic, strike bool
	start := 0

	flush := func(end int) {
		if end > start {
			spans = append(spans, Span{
				Text:   s[start:end],
				Bold:   bold,
				Italic: italic,
				Strike: strike,
			})
		}
	}

	for i := 0; i < len(s); i++ {
		var toggle *bool
		switch s[i] {
		case '*':
			toggle = &bold
		case '_':
			toggle = &italic
		case '~':
			toggle = &strike
		default:
			continue
		}
		if !*toggle && !hasClosingMarker(s[i+1:], s[i]) {
			continue
		}
		flush(i)
		*toggle = !*toggle
		start = i + 1
	}
	flush(len(s))
	return spans
}

func hasClosingMarker(rest string, marker byte) bool {
	for i := 0; i < len(rest); i++ {
		if rest[i] == marker {
			return true
		}
	}
	return false
}
