package eos

import (
	"bufio"
	"bytes"
	"testing"
)

func TestSlipEncodeEscapes(t *testing.T) {
	in := []byte{0xAA, 0xC0, 0xBB, 0xDB, 0xCC}
	want := []byte{0xAA, 0xDB, 0xDC, 0xBB, 0xDB, 0xDD, 0xCC, 0xC0}

	got := slipEncode(in)
	if !bytes.Equal(got, want) {
		t.Errorf("slipEncode(% X) = % X, want % X", in, got, want)
	}
}

func TestSlipRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x00},
		{0xC0},
		{0xDB},
		{0xC0, 0xC0, 0xC0},
		{0xDB, 0xDC, 0xDB, 0xDD},
		[]byte("plain ascii payload"),
	}
	// Every byte value once.
	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	cases = append(cases, all)

	for _, payload := range cases {
		if len(payload) == 0 {
			// Empty frames are skipped by the reader; nothing to round-trip.
			continue
		}
		r := bufio.NewReader(bytes.NewReader(slipEncode(payload)))
		got, err := readSLIPFrame(r)
		if err != nil {
			t.Fatalf("readSLIPFrame(% X) error: %v", payload, err)
		}
		if !bytes.Equal(got, payload) {
			t.Errorf("round trip of % X produced % X", payload, got)
		}
	}
}

func TestSlipMultipleFramesPerSegment(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(slipEncode([]byte("first")))
	stream.WriteByte(slipEnd) // stray empty frame between messages
	stream.Write(slipEncode([]byte("second")))

	r := bufio.NewReader(&stream)
	for _, want := range []string{"first", "second"} {
		frame, err := readSLIPFrame(r)
		if err != nil {
			t.Fatalf("readSLIPFrame error: %v", err)
		}
		if string(frame) != want {
			t.Errorf("frame = %q, want %q", frame, want)
		}
	}
}
