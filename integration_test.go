// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin_test

import (
	"bytes"
	stdflate "compress/flate"
	"io/ioutil"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/google/puffin"
	"github.com/google/puffin/flate"
)

// compress DEFLATE-encodes data at the given level using the standard
// library encoder, used here only to produce realistic fixture streams.
func compress(t *testing.T, data []byte, level int) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw, err := stdflate.NewWriter(&buf, level)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if _, err := zw.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return buf.Bytes()
}

// decodeOracle decodes a DEFLATE stream using the package's own
// independently maintained decoder, kept in the tree as ground truth: it
// was never touched while building Puff/Huff, so agreement between it and
// the round trip below is evidence the transcoder preserves meaning, not
// just an artifact of the two sharing a bug.
func decodeOracle(t *testing.T, deflate []byte) []byte {
	t.Helper()
	fr := flate.NewReader(bytes.NewReader(deflate))
	defer fr.Close()
	out, err := ioutil.ReadAll(fr)
	if err != nil {
		t.Fatalf("oracle decode: %v", err)
	}
	return out
}

// TestRoundTripAgainstOracle compresses a range of inputs, transcodes the
// result to puff and back, and checks that the oracle decoder recovers
// the original bytes from the round-tripped stream.
func TestRoundTripAgainstOracle(t *testing.T) {
	inputs := map[string][]byte{
		"empty":        nil,
		"short":        []byte("Hello, World!\n"),
		"single-byte":  []byte("A"),
		"repetitive":   bytes.Repeat([]byte("abcabcabc123"), 500),
		"all-same":     bytes.Repeat([]byte{0x42}, 10000),
		"incompressible": func() []byte {
			b := make([]byte, 4096)
			for i := range b {
				b[i] = byte(i*2654435761 >> 24)
			}
			return b
		}(),
	}

	for name, want := range inputs {
		for _, level := range []int{stdflate.NoCompression, stdflate.BestSpeed, stdflate.BestCompression} {
			name, want, level := name, want, level
			t.Run(name, func(t *testing.T) {
				deflate := compress(t, want, level)

				p, err := puffin.PuffBytes(deflate)
				if err != nil {
					t.Fatalf("PuffBytes: %v", err)
				}
				roundTripped, err := puffin.HuffBytes(p)
				if err != nil {
					t.Fatalf("HuffBytes: %v", err)
				}

				if !bytes.Equal(roundTripped, deflate) {
					t.Errorf("round trip is not byte-identical to the original DEFLATE stream")
				}

				got := decodeOracle(t, roundTripped)
				if !bytes.Equal(got, want) {
					t.Errorf("oracle decode mismatch (-want +got):\n%s", cmp.Diff(want, got))
				}
			})
		}
	}
}

// TestRoundTripConcatenatedStreams checks that two independently
// compressed DEFLATE members, concatenated back to back (as gzip members
// or successive flate.Writer.Reset calls would produce), survive the
// Puff/Huff round trip as two separate block-marker sequences.
func TestRoundTripConcatenatedStreams(t *testing.T) {
	first := compress(t, []byte("the first stream's payload"), stdflate.BestCompression)
	second := compress(t, []byte("a second, independently compressed stream"), stdflate.BestCompression)
	deflate := append(append([]byte(nil), first...), second...)

	p, err := puffin.PuffBytes(deflate)
	if err != nil {
		t.Fatalf("PuffBytes: %v", err)
	}
	roundTripped, err := puffin.HuffBytes(p)
	if err != nil {
		t.Fatalf("HuffBytes: %v", err)
	}
	if !bytes.Equal(roundTripped, deflate) {
		t.Fatalf("round trip is not byte-identical to the concatenated original streams")
	}

	fr := flate.NewReader(bytes.NewReader(roundTripped))
	firstOut, err := ioutil.ReadAll(fr)
	if err != nil {
		t.Fatalf("oracle decode of first member: %v", err)
	}
	if err := fr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if string(firstOut) != "the first stream's payload" {
		t.Errorf("first member mismatch: got %q", firstOut)
	}

	// fr.InputOffset reports exactly how many bytes of roundTripped the
	// first member consumed, which is where the second member begins.
	fr2 := flate.NewReader(bytes.NewReader(roundTripped[fr.InputOffset:]))
	defer fr2.Close()
	secondOut, err := ioutil.ReadAll(fr2)
	if err != nil {
		t.Fatalf("oracle decode of second member: %v", err)
	}
	if string(secondOut) != "a second, independently compressed stream" {
		t.Errorf("second member mismatch: got %q", secondOut)
	}
}
