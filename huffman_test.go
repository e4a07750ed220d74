// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitHuffmanCodesRejectsOversubscribed(t *testing.T) {
	// Three symbols of length 1 claim 2^-1*3 = 1.5 of the code space.
	_, _, err := InitHuffmanCodes([]uint8{1, 1, 1})
	require.Error(t, err)
	var pe *Error
	require.ErrorAs(t, err, &pe)
	require.Equal(t, KindInvalidInput, pe.Kind)
}

func TestInitHuffmanCodesRejectsIncomplete(t *testing.T) {
	// A single length-2 code leaves 3/4 of the code space unclaimed.
	_, _, err := InitHuffmanCodes([]uint8{0, 2})
	require.Error(t, err)
}

func TestInitHuffmanCodesSingleSymbol(t *testing.T) {
	codes, maxBits, err := InitHuffmanCodes([]uint8{1})
	require.NoError(t, err)
	require.EqualValues(t, 1, maxBits)
	require.Equal(t, []uint16{0}, codes)
}

func TestHuffmanRoundTripAllSymbols(t *testing.T) {
	lens := []uint8{3, 3, 3, 3, 3, 3, 4, 4}
	codes, maxBits, err := InitHuffmanCodes(lens)
	require.NoError(t, err)

	ft := BuildHuffmanCodes(lens, codes, maxBits)
	rt := BuildHuffmanReverseCodes(lens, codes)

	for sym, l := range lens {
		if l == 0 {
			continue
		}
		var buf bytes.Buffer
		bw := NewBitWriter(&buf)
		require.NoError(t, EncodeSymbol(bw, rt, uint(sym)))
		require.NoError(t, bw.Flush())

		br := NewBitReader(&buf)
		got, err := DecodeSymbol(br, ft)
		require.NoError(t, err)
		require.Equal(t, uint(sym), got)
	}
}

func TestDecodeSymbolFromEmptyTable(t *testing.T) {
	ft := BuildHuffmanCodes(nil, nil, 0)
	br := NewBitReader(bytes.NewReader(nil))
	_, err := DecodeSymbol(br, ft)
	require.Error(t, err)
}

func TestFixedTablesCoverAllValidSymbols(t *testing.T) {
	for sym := 0; sym < 288; sym++ {
		l := fixedLitLens[sym]
		if l == 0 {
			continue
		}
		require.Equal(t, l, fixedLitReverse.lens[sym])
	}
	// RFC 1951 section 3.2.6 gives all 32 fixed distance symbols a 5-bit
	// code, including the two reserved ones (30, 31); it is the Puffer's
	// job to reject those if it ever decodes one, not the table's.
	for sym := 0; sym < 32; sym++ {
		require.EqualValues(t, 5, fixedDistLens[sym])
	}
}

func TestLenDistLUTExcludesReservedSymbols(t *testing.T) {
	require.Len(t, lenLUT, maxLenSym-257+1)
	require.Len(t, distLUT, maxDistSym+1)
	require.Equal(t, rangeCode{base: 258, bits: 0}, lenLUT[len(lenLUT)-1])
}
