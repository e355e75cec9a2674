package messages

import "math"

// Positional layout of the cue data argument vector. The console packs every cue
// attribute into one flat list; positions 22-25 and 27 carry payloads whose meaning
// is not documented and are left unconsumed.
const (
	argUID           = 1
	argLabel         = 2
	argUpDuration    = 3
	argUpDelay       = 4
	argDownDuration  = 5
	argDownDelay     = 6
	argFocusDuration = 7
	argFocusDelay    = 8
	argColorDuration = 9
	argColorDelay    = 10
	argBeamDuration  = 11
	argBeamDelay     = 12
	argMark          = 16
	argBlock         = 17
	argAssert        = 18
	argFollowTime    = 20
	argHangTime      = 21
	argPartCount     = 26
	argScene         = 28
	argSceneEnd      = 29
)

// DecodeCueFields turns the raw cue argument vector into named cue fields.
// Keys match the cue record's JSON field names. Time values arrive as integers
// in the console's milliseconds; negative means "not set" and decodes to nil.
func DecodeCueFields(args []any) map[string]any {
	fields := map[string]any{
		"uid":            argString(args, argUID),
		"label":          argString(args, argLabel),
		"up_duration":    timeSeconds(args, argUpDuration),
		"up_delay":       timeSeconds(args, argUpDelay),
		"down_duration":  timeSeconds(args, argDownDuration),
		"down_delay":     timeSeconds(args, argDownDelay),
		"focus_duration": timeSeconds(args, argFocusDuration),
		"focus_delay":    timeSeconds(args, argFocusDelay),
		"color_duration": timeSeconds(args, argColorDuration),
		"color_delay":    timeSeconds(args, argColorDelay),
		"beam_duration":  timeSeconds(args, argBeamDuration),
		"beam_delay":     timeSeconds(args, argBeamDelay),
		"mark":           argString(args, argMark),
		"block":          argString(args, argBlock),
		"assert":         argString(args, argAssert),
		"follow_time":    timeSeconds(args, argFollowTime),
		"hang_time":      timeSeconds(args, argHangTime),
		"scene":          argString(args, argScene),
		"scene_end":      argBool(args, argSceneEnd),
	}

	if n, ok := argInt(args, argPartCount); ok {
		fields["part_count"] = n
	} else {
		fields["part_count"] = 0
	}

	fields["duration"] = maxDuration(
		fields["up_duration"],
		fields["down_duration"],
		fields["focus_duration"],
		fields["color_duration"],
		fields["beam_duration"],
	)

	return fields
}

// timeSeconds converts a raw time argument to seconds with two decimals, or
// nil when the value is negative or absent.
func timeSeconds(args []any, i int) *float64 {
	var raw float64
	switch v := safeArg(args, i).(type) {
	case int32:
		raw = float64(v)
	case int64:
		raw = float64(v)
	case int:
		raw = float64(v)
	case float32:
		raw = float64(v)
	case float64:
		raw = v
	default:
		return nil
	}
	if raw < 0 {
		return nil
	}
	secs := math.Round(raw/10) / 100
	return &secs
}

func maxDuration(vals ...any) float64 {
	max := 0.0
	for _, v := range vals {
		if f, ok := v.(*float64); ok && f != nil && *f > max {
			max = *f
		}
	}
	return max
}

func safeArg(args []any, i int) any {
	if i < 0 || i >= len(args) {
		return nil
	}
	return args[i]
}
