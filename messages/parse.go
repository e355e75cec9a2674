package messages

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hypebeast/go-osc/osc"
)

// Sub-message facets the console emits beneath cue addresses. They reuse the cue
// address family for unrelated payloads and must never be mistaken for cue data.
var suppressedFacets = []string{"/fx/", "/actions/", "/links/", "/curves/"}

// Parse decodes one inbound OSC message into a typed Event.
//
// A nil event with a nil error means the message is not one the mirror consumes
// (suppressed facet, reserved system list, or an address outside the dialect).
// An error means the address matched but the payload was malformed; callers log
// and drop it.
func Parse(msg *osc.Message) (Event, error) {
	addr := msg.Address

	for _, facet := range suppressedFacets {
		if strings.Contains(addr, facet) {
			return nil, nil
		}
	}

	switch {
	case addr == outShowName:
		return ShowName{Name: argString(msg.Arguments, 0)}, nil

	case addr == outGetVersion:
		return Version{Version: argString(msg.Arguments, 0)}, nil

	case addr == outCueListCount:
		n, ok := argInt(msg.Arguments, 0)
		if !ok {
			return nil, fmt.Errorf("cuelist count without integer argument: %s", addr)
		}
		return CueListCount{Count: n}, nil

	case strings.HasPrefix(addr, outCueListRoot):
		return parseCueListOut(addr, msg.Arguments)

	case strings.HasPrefix(addr, outCueRoot):
		return parseCueOut(addr, msg.Arguments)

	case strings.HasPrefix(addr, outNotifyCue):
		return parseNotify(addr, msg.Arguments)

	case strings.HasPrefix(addr, outActiveCue):
		return parseRuntime(addr, strings.TrimPrefix(addr, outActiveCue), msg.Arguments, true)

	case strings.HasPrefix(addr, outPendingCue):
		return parseRuntime(addr, strings.TrimPrefix(addr, outPendingCue), msg.Arguments, false)

	case strings.HasPrefix(addr, outFaderRoot) && strings.Contains(addr, "/config"):
		return parseFaderConfig(msg.Arguments)
	}

	return nil, nil
}

// parseCueListOut handles both shapes under /eos/out/get/cuelist/:
//
//	<n>/list/<i>/<c>                discovery
//	<L>/cue/<C>/<P>/list/<i>/<c>    cue data (wildcard fallback replies)
func parseCueListOut(addr string, args []any) (Event, error) {
	segs := splitSegments(strings.TrimPrefix(addr, outCueListRoot))

	switch {
	case len(segs) == 4 && segs[1] == "list":
		list, err := strconv.Atoi(segs[0])
		if err != nil {
			return nil, fmt.Errorf("bad cue list number in %q", addr)
		}
		if list < 0 {
			// Reserved system list.
			return nil, nil
		}
		return CueListDiscovered{List: list}, nil

	case len(segs) == 7 && segs[1] == "cue" && segs[4] == "list":
		return buildCueData(addr, segs[0], segs[2], segs[3], segs[5], segs[6], args)
	}
	return nil, nil
}

// parseCueOut handles /eos/out/get/cue/<L>/count and the primary cue data shape
// /eos/out/get/cue/<L>/<C>/<P>/list/<i>/<c>.
func parseCueOut(addr string, args []any) (Event, error) {
	segs := splitSegments(strings.TrimPrefix(addr, outCueRoot))

	switch {
	case len(segs) == 2 && segs[1] == "count":
		list, err := strconv.Atoi(segs[0])
		if err != nil {
			return nil, fmt.Errorf("bad list number in %q", addr)
		}
		if list < 0 {
			return nil, nil
		}
		count, ok := argInt(args, 0)
		if !ok {
			return nil, fmt.Errorf("cue count without integer argument: %s", addr)
		}
		return CueCount{List: list, Count: count}, nil

	case len(segs) == 6 && segs[3] == "list":
		return buildCueData(addr, segs[0], segs[1], segs[2], segs[4], segs[5], args)
	}
	return nil, nil
}

func buildCueData(addr, listSeg, numSeg, partSeg, idxSeg, totalSeg string, args []any) (Event, error) {
	list, err := strconv.Atoi(listSeg)
	if err != nil {
		return nil, fmt.Errorf("bad list number in %q", addr)
	}
	if list < 0 {
		return nil, nil
	}
	part, err := strconv.Atoi(partSeg)
	if err != nil {
		return nil, fmt.Errorf("bad part number in %q", addr)
	}
	index, err := strconv.Atoi(idxSeg)
	if err != nil {
		return nil, fmt.Errorf("bad index in %q", addr)
	}
	total, err := strconv.Atoi(totalSeg)
	if err != nil {
		return nil, fmt.Errorf("bad count in %q", addr)
	}
	if numSeg == "" {
		return nil, fmt.Errorf("empty cue number in %q", addr)
	}
	return CueData{
		List:   list,
		Number: numSeg,
		Part:   part,
		Index:  index,
		Total:  total,
		Fields: DecodeCueFields(args),
	}, nil
}

func parseNotify(addr string, args []any) (Event, error) {
	segs := splitSegments(strings.TrimPrefix(addr, outNotifyCue))
	if len(segs) != 4 || segs[1] != "list" {
		return nil, nil
	}
	list, err := strconv.Atoi(segs[0])
	if err != nil {
		return nil, fmt.Errorf("bad list number in %q", addr)
	}
	if list < 0 {
		return nil, nil
	}
	count, err := strconv.Atoi(segs[3])
	if err != nil {
		return nil, fmt.Errorf("bad count in %q", addr)
	}
	number := ""
	if len(args) > 0 {
		number = argString(args, len(args)-1)
		if number == "" {
			if n, ok := argInt(args, len(args)-1); ok {
				number = strconv.Itoa(n)
			}
		}
	}
	return CueNotify{List: list, Number: number, Count: count}, nil
}

// parseRuntime handles the active/pending family. tail is the address remainder
// after "/eos/out/active/cue" (or pending): "/text", "/<L>/text", or "/<L>/<C>...".
func parseRuntime(addr, tail string, args []any, active bool) (Event, error) {
	segs := splitSegments(tail)
	if len(segs) == 0 {
		return nil, nil
	}

	if segs[len(segs)-1] == "text" {
		text := argString(args, 0)
		hasList := false
		list := 0
		if len(segs) == 2 {
			l, err := strconv.Atoi(segs[0])
			if err != nil {
				return nil, fmt.Errorf("bad list number in %q", addr)
			}
			if l < 0 {
				return nil, nil
			}
			list, hasList = l, true
		} else if len(segs) != 1 {
			return nil, nil
		}
		if active {
			return ActiveCueText{Text: text, List: list, HasList: hasList}, nil
		}
		return PendingCueText{Text: text, List: list, HasList: hasList}, nil
	}

	if len(segs) < 2 {
		return nil, nil
	}
	list, err := strconv.Atoi(segs[0])
	if err != nil {
		return nil, fmt.Errorf("bad list number in %q", addr)
	}
	if list < 0 {
		return nil, nil
	}
	number := segs[1]
	if active {
		return ActiveCue{List: list, Number: number}, nil
	}
	return PendingCue{List: list, Number: number}, nil
}

func parseFaderConfig(args []any) (Event, error) {
	index, ok := argInt(args, 0)
	if !ok {
		return nil, fmt.Errorf("fader config without index argument")
	}
	ftype, _ := argInt(args, 1)
	target, _ := argInt(args, 2)
	return FaderConfig{
		Index:    index,
		Type:     ftype,
		TargetID: target,
		Label:    argString(args, 3),
	}, nil
}

func splitSegments(s string) []string {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil
	}
	return strings.Split(s, "/")
}

// Argument coercion. The OSC layer hands back int32/int64/float32/float64/string/bool
// depending on the type tag; the console is not consistent about which it uses.

func argString(args []any, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return ""
}

func argInt(args []any, i int) (int, bool) {
	if i < 0 || i >= len(args) {
		return 0, false
	}
	switch v := args[i].(type) {
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case int:
		return v, true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

func argBool(args []any, i int) bool {
	if i < 0 || i >= len(args) {
		return false
	}
	switch v := args[i].(type) {
	case bool:
		return v
	case int32:
		return v != 0
	case int64:
		return v != 0
	case float32:
		return v != 0
	case float64:
		return v != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	}
	return false
}
