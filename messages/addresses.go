package messages

import "fmt"

// OSC address constants and builders for the console dialect.
//
// Everything the mirror sends lives under /eos/get (plus /eos/subscribe); everything
// the console sends back lives under /eos/out. The console does not correlate
// requests with responses, so the builders here only shape addresses; matching
// responses to requests is the engine's problem.

// Application-level requests.
const (
	AddrGetVersion      = "/eos/get/version"
	AddrGetCueListCount = "/eos/get/cuelist/count"
	AddrSubscribe       = "/eos/subscribe"
	AddrGetFaderConfig  = "/eos/get/fader/0/config"
)

// Inbound address roots.
const (
	outShowName     = "/eos/out/show/name"
	outGetVersion   = "/eos/out/get/version"
	outCueListRoot  = "/eos/out/get/cuelist/"
	outCueRoot      = "/eos/out/get/cue/"
	outNotifyCue    = "/eos/out/notify/cue/"
	outActiveCue    = "/eos/out/active/cue"
	outPendingCue   = "/eos/out/pending/cue"
	outFaderRoot    = "/eos/out/get/fader/"
	outCueListCount = "/eos/out/get/cuelist/count"
)

// GetCueListIndex requests the cue list at discovery index i.
func GetCueListIndex(i int) string {
	return fmt.Sprintf("/eos/get/cuelist/index/%d", i)
}

// GetCueCount requests the number of cues in a list.
func GetCueCount(list int) string {
	return fmt.Sprintf("/eos/get/cue/%d/count", list)
}

// GetCueIndex requests the cue at index i within a list.
func GetCueIndex(list, i int) string {
	return fmt.Sprintf("/eos/get/cue/%d/index/%d", list, i)
}

// GetCue requests a single cue by number.
func GetCue(list int, number string) string {
	return fmt.Sprintf("/eos/get/cue/%d/%s", list, number)
}

// GetCueActive and GetCuePending poll the runtime state of a list.
func GetCueActive(list int) string {
	return fmt.Sprintf("/eos/get/cue/%d/active", list)
}

func GetCuePending(list int) string {
	return fmt.Sprintf("/eos/get/cue/%d/pending", list)
}

// Fallback requests for consoles that never answer the count query.
func GetCueRange(list int) string {
	return fmt.Sprintf("/eos/get/cue/%d/0/1000", list)
}

func GetCueFirst(list int) string {
	return fmt.Sprintf("/eos/get/cue/%d/1", list)
}

func GetCueListWildcard(list int) string {
	return fmt.Sprintf("/eos/get/cuelist/%d/cue/*/list", list)
}
