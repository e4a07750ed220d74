// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildDynamicBlockBits writes a complete dynamic-block header (RFC 1951
// section 3.2.7) for the given literal/length and distance code lengths,
// using a minimal brute-force meta-alphabet encoding (no run-length
// compaction), so the test exercises BuildDynamicHuffmanTable against a
// known-good bit stream.
func buildDynamicBlockBits(t *testing.T, litLens, distLens []uint8) []byte {
	t.Helper()
	hlit := len(litLens) - 257
	hdist := len(distLens) - 1
	require.True(t, hlit >= 0 && hlit <= 29)
	require.True(t, hdist >= 0 && hdist <= 29)

	all := append(append([]uint8(nil), litLens...), distLens...)
	present := map[uint8]bool{}
	for _, l := range all {
		present[l] = true
	}
	var distinctLens []uint8
	for l := uint8(0); l <= maxCodeBits; l++ {
		if present[l] {
			distinctLens = append(distinctLens, l)
		}
	}
	require.LessOrEqual(t, len(distinctLens), 2, "test helper only supports up to 2 distinct code lengths")

	// A meta-alphabet with 1 or 2 distinct symbols used is complete with
	// length-1 codes (or, for exactly one symbol, the degenerate
	// single-code case InitHuffmanCodes also accepts).
	var metaLens [maxNumCLenSyms]uint8
	for _, l := range distinctLens {
		metaLens[l] = 1
	}
	metaCodes, metaBits, err := InitHuffmanCodes(metaLens[:])
	require.NoError(t, err)
	metaReverse := BuildHuffmanReverseCodes(metaLens[:], metaCodes)

	var buf bytes.Buffer
	bw := NewBitWriter(&buf)
	require.NoError(t, bw.WriteBits(5, uint32(hlit)))
	require.NoError(t, bw.WriteBits(5, uint32(hdist)))

	// HCLEN must cover every permutation index up to the last nonzero
	// meta length, in kPermutations order.
	hclen := maxNumCLenSyms - 4
	for i := maxNumCLenSyms - 1; i >= 4; i-- {
		if metaLens[kPermutations[i]] != 0 {
			hclen = i + 1 - 4
			break
		}
	}
	require.NoError(t, bw.WriteBits(4, uint32(hclen)))
	for i := 0; i < hclen+4; i++ {
		require.NoError(t, bw.WriteBits(3, uint32(metaLens[kPermutations[i]])))
	}
	for _, l := range all {
		require.NoError(t, EncodeSymbol(bw, metaReverse, uint(l)))
	}
	require.NoError(t, bw.Flush())
	_ = metaBits
	return buf.Bytes()
}

func TestDynamicHeaderRoundTrip(t *testing.T) {
	litLens := make([]uint8, 257+3)
	for i := range litLens {
		litLens[i] = 0
	}
	litLens[0] = 2
	litLens[1] = 2
	litLens['A'] = 2
	litLens[256] = 2 // end-of-block must be assignable
	// Fix up to a valid (complete) code: give exactly 4 symbols length 2.
	nz := 0
	for _, l := range litLens {
		if l > 0 {
			nz++
		}
	}
	require.Equal(t, 4, nz)

	// Four length-2 distance codes: complete, and using the same length as
	// the literal table, so only two distinct code lengths (0 and 2) occur.
	distLens := []uint8{2, 2, 2, 2}

	raw := buildDynamicBlockBits(t, litLens, distLens)
	br := NewBitReader(bytes.NewReader(raw))
	hl, hd, header, err := BuildDynamicHuffmanTable(br)
	require.NoError(t, err)
	require.NotNil(t, hl)
	require.NotNil(t, hd)

	var out bytes.Buffer
	bw := NewBitWriter(&out)
	ehl, ehd, err := EmitDynamicHuffmanTable(bw, header)
	require.NoError(t, err)
	require.NotNil(t, ehl)
	require.NotNil(t, ehd)
	require.NoError(t, bw.Flush())

	require.Equal(t, raw, out.Bytes())
}

func TestBuildDynamicHuffmanTableRejectsOversubscribedLitTable(t *testing.T) {
	// Three length-1 literal codes (symbols 0, 1, and end-of-block 256)
	// claim 1.5x the available code space for a 1-bit code -- the same
	// oversubscription TestInitHuffmanCodesRejectsOversubscribed checks
	// directly, but reached here through the full dynamic-header decode
	// path (meta-table construction, code-length decoding, and finally
	// the literal/length InitHuffmanCodes call inside
	// BuildDynamicHuffmanTable).
	litLens := make([]uint8, 257)
	litLens[0] = 1
	litLens[1] = 1
	litLens[256] = 1
	distLens := []uint8{1} // incomplete, but the lit table fails first

	raw := buildDynamicBlockBits(t, litLens, distLens)
	br := NewBitReader(bytes.NewReader(raw))
	_, _, _, err := BuildDynamicHuffmanTable(br)
	require.Error(t, err)
}

func TestDecodeCodeLengthsRejectsLeadingRepeat(t *testing.T) {
	// A code-length sequence may not open with "repeat previous" (code
	// 16) since there is no previous entry yet.
	var metaLens [maxNumCLenSyms]uint8
	metaLens[16] = 1
	metaLens[0] = 1
	metaCodes, metaBits, err := InitHuffmanCodes(metaLens[:])
	require.NoError(t, err)
	meta := BuildHuffmanCodes(metaLens[:], metaCodes, metaBits)

	var buf bytes.Buffer
	bw := NewBitWriter(&buf)
	rt := BuildHuffmanReverseCodes(metaLens[:], metaCodes)
	require.NoError(t, EncodeSymbol(bw, rt, 16))
	require.NoError(t, bw.WriteBits(2, 0))
	require.NoError(t, bw.Flush())

	br := NewBitReader(&buf)
	_, _, err = decodeCodeLengths(br, meta, 5)
	require.Error(t, err)
}
