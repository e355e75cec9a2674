package eos

import "bufio"

// SLIP framing (RFC 1055) for OSC over TCP. Each OSC packet is escaped and
// terminated with an END byte; multiple frames may share one TCP segment.
const (
	slipEnd    = 0xC0
	slipEsc    = 0xDB
	slipEscEnd = 0xDC
	slipEscEsc = 0xDD
)

// slipEncode escapes a payload and appends the frame terminator.
func slipEncode(payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	for _, b := range payload {
		switch b {
		case slipEnd:
			out = append(out, slipEsc, slipEscEnd)
		case slipEsc:
			out = append(out, slipEsc, slipEscEsc)
		default:
			out = append(out, b)
		}
	}
	return append(out, slipEnd)
}

// readSLIPFrame reads and unescapes the next frame from the stream, skipping
// empty frames (consecutive END bytes are legal on the wire).
func readSLIPFrame(r *bufio.Reader) ([]byte, error) {
	var frame []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch b {
		case slipEnd:
			if len(frame) == 0 {
				continue
			}
			return frame, nil
		case slipEsc:
			next, err := r.ReadByte()
			if err != nil {
				return nil, err
			}
			switch next {
			case slipEscEnd:
				frame = append(frame, slipEnd)
			case slipEscEsc:
				frame = append(frame, slipEsc)
			default:
				// Protocol violation; keep the bytes rather than dropping data.
				frame = append(frame, slipEsc, next)
			}
		default:
			frame = append(frame, b)
		}
	}
}
