package messages

import (
	"strconv"
	"strings"
)

// ParsedCueText is the result of decoding the console's one-line active/pending
// cue description. Reset means the console reported "no cue" for the slot.
type ParsedCueText struct {
	Reset   bool
	List    int
	Number  string
	Label   string
	Fade    *float64
	Percent *int
}

// ParseCueText decodes the active/pending text formats:
//
//	"<L>/<C> <label> <fade> <pct>%"
//	"<L>/<C> <label> <fade>"
//	"<C> ..."                       (contextList supplies the list)
//
// An empty string, or anything starting with "0.0 " or "0/0", is a reset for the
// contextual list. The boolean result is false only when the text names no list
// and no contextual list is known; the parse itself is total and never fails on
// non-empty input.
func ParseCueText(text string, contextList int, hasContext bool) (ParsedCueText, bool) {
	if text == "" || strings.HasPrefix(text, "0.0 ") || strings.HasPrefix(text, "0/0") {
		return ParsedCueText{Reset: true, List: contextList}, hasContext
	}

	first, rest := splitFirstField(text)

	var out ParsedCueText
	if slash := strings.IndexByte(first, '/'); slash > 0 {
		list, err := strconv.Atoi(first[:slash])
		if err != nil {
			// Not a list/cue pair after all; the first field is taken as the
			// cue number on the contextual list.
			if !hasContext {
				return ParsedCueText{}, false
			}
			out.List = contextList
			out.Number = first
		} else {
			out.List = list
			out.Number = first[slash+1:]
		}
	} else {
		if !hasContext {
			return ParsedCueText{}, false
		}
		out.List = contextList
		out.Number = first
	}

	out.Label, out.Fade, out.Percent = parseRemainder(rest)
	return out, true
}

// parseRemainder tries the description tails in order: label+fade+pct%, fade+pct%,
// label+fade, fade, bare label.
func parseRemainder(rest string) (label string, fade *float64, pct *int) {
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, nil
	}

	last := fields[len(fields)-1]
	if p, ok := parsePercent(last); ok && len(fields) >= 2 {
		if f, ok := parseFade(fields[len(fields)-2]); ok {
			return strings.Join(fields[:len(fields)-2], " "), &f, &p
		}
	}

	if f, ok := parseFade(last); ok {
		return strings.Join(fields[:len(fields)-1], " "), &f, nil
	}

	return strings.Join(fields, " "), nil, nil
}

func parseFade(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parsePercent(s string) (int, bool) {
	if !strings.HasSuffix(s, "%") {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(s, "%"))
	if err != nil {
		return 0, false
	}
	return n, true
}

func splitFirstField(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}
