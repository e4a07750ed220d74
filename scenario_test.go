// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin_test

import (
	"bytes"
	stdflate "compress/flate"
	"testing"

	"github.com/google/puffin"
	"github.com/google/puffin/internal/testutil"
)

// TestFixedBlockExactBitPattern builds a minimal single-block DEFLATE
// stream by hand -- BFINAL=1, BTYPE=01 (fixed Huffman), one literal 'A',
// end-of-block -- using the BitGen mini-language, rather than going
// through an encoder. This exercises Puff/Huff against a known, exact bit
// pattern instead of whatever an encoder happens to produce.
func TestFixedBlockExactBitPattern(t *testing.T) {
	deflate, err := testutil.DecodeBitGen(`
		<<<
		< 1 01      # BFINAL=1, BTYPE=01 (fixed Huffman)
		> 01110001  # literal 'A' (0x41): fixed code 0x30+0x41, 8 bits MSB-first
		> 0000000   # end-of-block (symbol 256), 7 bits MSB-first
	`)
	if err != nil {
		t.Fatalf("DecodeBitGen: %v", err)
	}

	p, err := puffin.PuffBytes(deflate)
	if err != nil {
		t.Fatalf("PuffBytes: %v", err)
	}
	roundTripped, err := puffin.HuffBytes(p)
	if err != nil {
		t.Fatalf("HuffBytes: %v", err)
	}
	if !bytes.Equal(roundTripped, deflate) {
		t.Fatalf("round trip is not byte-identical to the hand-built stream")
	}

	got := decodeOracle(t, roundTripped)
	if string(got) != "A" {
		t.Errorf("oracle decode mismatch: got %q, want %q", got, "A")
	}
}

// TestRandomRoundTrip compresses deterministically-seeded pseudo-random
// payloads of varying size at varying levels and checks that the Puff/Huff
// round trip is byte-identical and that the result still decodes to the
// original payload. Using testutil.Rand rather than math/rand keeps the
// cases reproducible across Go versions and toolchains.
func TestRandomRoundTrip(t *testing.T) {
	sizes := []int{0, 1, 17, 512, 8192, 65536 + 1000}
	levels := []int{stdflate.BestSpeed, stdflate.DefaultCompression, stdflate.BestCompression}

	for seed := 0; seed < 3; seed++ {
		rnd := testutil.NewRand(seed)
		for _, size := range sizes {
			for _, level := range levels {
				seed, size, level := seed, size, level
				want := rnd.Bytes(size)
				t.Run("", func(t *testing.T) {
					deflate := compress(t, want, level)

					p, err := puffin.PuffBytes(deflate)
					if err != nil {
						t.Fatalf("seed=%d size=%d level=%d: PuffBytes: %v", seed, size, level, err)
					}
					roundTripped, err := puffin.HuffBytes(p)
					if err != nil {
						t.Fatalf("seed=%d size=%d level=%d: HuffBytes: %v", seed, size, level, err)
					}
					if !bytes.Equal(roundTripped, deflate) {
						t.Fatalf("seed=%d size=%d level=%d: round trip not byte-identical", seed, size, level)
					}

					got := decodeOracle(t, roundTripped)
					if !bytes.Equal(got, want) {
						t.Errorf("seed=%d size=%d level=%d: oracle decode mismatch", seed, size, level)
					}
				})
			}
		}
	}
}

// TestSingleSymbolDynamicBlock exercises a dynamic block whose distance
// alphabet degenerates to a single used symbol, the boundary case RFC 1951
// section 3.2.7 permits for Huffman code construction: a lone one-bit
// code is allowed even though it leaves half of the code space unclaimed.
func TestSingleSymbolDynamicBlock(t *testing.T) {
	// A single repeated byte compresses, at any level above
	// NoCompression, to one literal followed by copies at distance 1, so
	// the literal/length alphabet holds the literal, the copy lengths and
	// end-of-block, while the distance alphabet holds distance 1 alone.
	want := bytes.Repeat([]byte{0x37}, 4000)
	deflate := compress(t, want, stdflate.BestCompression)

	p, err := puffin.PuffBytes(deflate)
	if err != nil {
		t.Fatalf("PuffBytes: %v", err)
	}
	roundTripped, err := puffin.HuffBytes(p)
	if err != nil {
		t.Fatalf("HuffBytes: %v", err)
	}
	if !bytes.Equal(roundTripped, deflate) {
		t.Fatalf("round trip is not byte-identical")
	}

	got := decodeOracle(t, roundTripped)
	if !bytes.Equal(got, want) {
		t.Errorf("oracle decode mismatch: got %d bytes, want %d bytes", len(got), len(want))
	}
}
