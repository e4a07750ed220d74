// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import "github.com/google/puffin/internal"

// Alphabet sizes from RFC 1951 section 3.2.
const (
	maxCodeBits    = 15  // Maximum bit-length of any literal/length or distance code.
	maxNumCLenSyms = 19  // Code-length (meta) alphabet size.
	maxNumLitSyms  = 288 // Literal/length alphabet, including the 2 reserved symbols.
	maxNumDistSyms = 32  // Distance alphabet, including the 2 reserved symbols.
)

// kPermutations gives the order in which code-length-alphabet bit-lengths
// appear in a dynamic block header (RFC 1951 section 3.2.7).
var kPermutations = [maxNumCLenSyms]uint8{
	16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15,
}

// rangeCode describes the extra-bits encoding of a length or distance
// symbol: the value is rangeCode.base plus the next rangeCode.bits bits
// of input, read LSB-first (RFC 1951 section 3.2.5).
type rangeCode struct {
	base uint32
	bits uint32
}

func (rc rangeCode) end() uint32 {
	return rc.base + 1<<rc.bits
}

// maxLenSym and maxDistSym are the highest valid (non-reserved) symbols
// in the length and distance alphabets; 286/287 and 30/31 respectively
// are reserved and must never be accepted as a decoded symbol.
const (
	maxLenSym  = 285
	maxDistSym = 29
)

var (
	lenLUT  [maxLenSym - 257 + 1]rangeCode
	distLUT [maxDistSym + 1]rangeCode
)

func init() {
	for i, base := 0, 3; i < len(lenLUT)-1; i++ {
		nb := uint32(i/4 - 1)
		if i < 4 {
			nb = 0
		}
		lenLUT[i] = rangeCode{base: uint32(base), bits: nb}
		base += 1 << nb
	}
	lenLUT[len(lenLUT)-1] = rangeCode{base: 258, bits: 0} // Symbol 285: fixed length 258.

	for i, base := 0, 1; i < len(distLUT); i++ {
		nb := uint32(i/2 - 1)
		if i < 2 {
			nb = 0
		}
		distLUT[i] = rangeCode{base: uint32(base), bits: nb}
		base += 1 << nb
	}
}

// ForwardTable decodes a Huffman code to its symbol in one indexed load:
// every index whose low len bits match a canonical code maps to that
// code's symbol, so a decoder need only peek max_bits of input, look up
// hcodes[peeked], and then drop exactly the code's own length (read from
// lens, not re-derived).
type ForwardTable struct {
	hcodes  []uint16 // size 1 << maxBits; bit 15 valid, bits 0..14 symbol
	lens    []uint8  // per-symbol code length, 0 if unused
	maxBits uint
	numSyms int
}

const forwardValidBit = 1 << 15

// ReverseTable holds, per symbol, the canonical (bit-reversed) code used
// to encode that symbol, plus its bit length.
type ReverseTable struct {
	rcodes  []uint16
	lens    []uint8
	numSyms int
}

// InitHuffmanCodes performs the canonical Huffman code construction
// described in RFC 1951 section 3.2.2: given the bit-length assigned to
// each symbol, it derives the unique canonical code for every symbol
// with a nonzero length, returning those codes already bit-reversed
// (DEFLATE's bit stream is LSB-first; canonical codes are defined
// MSB-first). It rejects oversubscribed length sets -- those whose Kraft
// sum exceeds 1 -- with a KindInvalidInput error.
func InitHuffmanCodes(lens []uint8) (codes []uint16, maxBits uint, err error) {
	var lenCount [maxCodeBits + 1]int
	numSyms := 0
	for _, l := range lens {
		if l > maxCodeBits {
			return nil, 0, newError(KindInvalidInput, -1, "code length exceeds 15 bits")
		}
		if l > 0 {
			lenCount[l]++
			numSyms++
		}
	}
	for l := uint(maxCodeBits); l >= 1; l-- {
		if lenCount[l] > 0 {
			maxBits = l
			break
		}
	}
	codes = make([]uint16, len(lens))
	if maxBits == 0 {
		// No symbol has a nonzero length. RFC 1951 does not explicitly
		// bless this, but the reference decoder tolerates it (see the
		// design doc's open question); treat it as a valid, empty code.
		Logger.Printf("huffman table with zero non-zero code lengths")
		return codes, 0, nil
	}

	// Kraft-inequality / oversubscription check, tracking how much of the
	// code space remains unclaimed at each length.
	left := 1
	for l := uint(1); l <= maxCodeBits; l++ {
		left <<= 1
		left -= lenCount[l]
		if left < 0 {
			return nil, 0, newError(KindInvalidInput, -1, "oversubscribed huffman code")
		}
	}
	if left > 0 && numSyms > 1 {
		return nil, 0, newError(KindInvalidInput, -1, "incomplete huffman code")
	}

	var nextCode [maxCodeBits + 1]int
	for l := uint(1); l <= maxCodeBits; l++ {
		nextCode[l] = (nextCode[l-1] + lenCount[l-1]) << 1
	}
	for sym, l := range lens {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		codes[sym] = uint16(internal.ReverseUint32N(uint32(c), uint(l)))
	}
	return codes, maxBits, nil
}

// BuildHuffmanCodes expands the per-symbol canonical codes produced by
// InitHuffmanCodes into a ForwardTable: a flat array sized 1<<maxBits,
// with every index whose low bits match a code populated with that
// code's symbol. Symbols are processed in descending length order so
// that shorter (and thus more numerous) fan-out writes happen last and
// win, matching RFC 1951's prefix-free guarantee.
func BuildHuffmanCodes(lens []uint8, codes []uint16, maxBits uint) *ForwardTable {
	ft := &ForwardTable{
		hcodes:  make([]uint16, 1<<maxBits),
		lens:    append([]uint8(nil), lens...),
		maxBits: maxBits,
	}
	if maxBits == 0 {
		return ft
	}

	type symLen struct {
		sym uint16
		len uint8
	}
	order := make([]symLen, 0, len(lens))
	for sym, l := range lens {
		if l > 0 {
			order = append(order, symLen{uint16(sym), l})
			ft.numSyms++
		}
	}
	// Sort descending by length via a simple counting pass (lengths are
	// bounded by maxCodeBits, so this avoids pulling in sort for a tiny
	// fixed-range key).
	buckets := make([][]symLen, maxCodeBits+1)
	for _, sl := range order {
		buckets[sl.len] = append(buckets[sl.len], sl)
	}
	for l := int(maxCodeBits); l >= 1; l-- {
		for _, sl := range buckets[l] {
			code := uint32(codes[sl.sym])
			entry := sl.sym | forwardValidBit
			span := uint(1) << (maxBits - uint(sl.len))
			for i := uint(0); i < span; i++ {
				idx := (i << sl.len) | code
				if ft.hcodes[idx]&forwardValidBit == 0 {
					ft.hcodes[idx] = entry
				}
			}
		}
	}
	return ft
}

// BuildHuffmanReverseCodes packages the per-symbol canonical codes
// produced by InitHuffmanCodes into a ReverseTable for encoding.
func BuildHuffmanReverseCodes(lens []uint8, codes []uint16) *ReverseTable {
	rt := &ReverseTable{
		rcodes: make([]uint16, len(lens)),
		lens:   append([]uint8(nil), lens...),
	}
	for sym, l := range lens {
		if l > 0 {
			rt.rcodes[sym] = codes[sym]
			rt.numSyms++
		}
	}
	return rt
}

// DecodeSymbol reads the next Huffman-coded symbol from br using ft. It
// returns a KindInvalidInput error if the bit pattern does not match any
// assigned code (which happens when ft is empty, or when an unused
// suffix of a degenerate single-symbol table is read).
func DecodeSymbol(br *BitReader, ft *ForwardTable) (uint, error) {
	if ft.maxBits == 0 {
		return 0, newError(KindInvalidInput, br.Offset(), "decode from empty huffman table")
	}
	if err := br.CacheBits(ft.maxBits); err != nil {
		return 0, err
	}
	entry := ft.hcodes[br.ReadBits(ft.maxBits)]
	if entry&forwardValidBit == 0 {
		return 0, newError(KindInvalidInput, br.Offset(), "invalid huffman code")
	}
	sym := uint(entry &^ forwardValidBit)
	br.DropBits(uint(ft.lens[sym]))
	return sym, nil
}

// TryDecodeSymbol is like DecodeSymbol but never blocks on the
// underlying reader: it only succeeds if maxBits worth of input is
// already cached. Puffer attempts this first and falls back to
// DecodeSymbol, mirroring flate.bitReader's TryReadSymbol/ReadSymbol
// split.
func TryDecodeSymbol(br *BitReader, ft *ForwardTable) (uint, bool) {
	if ft.maxBits == 0 || !br.TryCacheBits(ft.maxBits) {
		return 0, false
	}
	entry := ft.hcodes[br.ReadBits(ft.maxBits)]
	if entry&forwardValidBit == 0 {
		return 0, false
	}
	sym := uint(entry &^ forwardValidBit)
	nb := uint(ft.lens[sym])
	if !br.TryCacheBits(nb) {
		return 0, false
	}
	br.DropBits(nb)
	return sym, true
}

// EncodeSymbol writes sym's canonical code to bw using rt.
func EncodeSymbol(bw *BitWriter, rt *ReverseTable, sym uint) error {
	l := rt.lens[sym]
	if l == 0 {
		return newError(KindInvalidInput, bw.Offset(), "encode of symbol outside code table")
	}
	return bw.WriteBits(uint(l), uint32(rt.rcodes[sym]))
}

// fixedLitLens and fixedDistLens are the hard-coded code lengths of the
// "fixed" Huffman tables (RFC 1951 section 3.2.6).
var (
	fixedLitLens  [288]uint8
	fixedDistLens [32]uint8

	fixedLitForward  *ForwardTable
	fixedDistForward *ForwardTable
	fixedLitReverse  *ReverseTable
	fixedDistReverse *ReverseTable
)

func init() {
	for i := 0; i < 144; i++ {
		fixedLitLens[i] = 8
	}
	for i := 144; i < 256; i++ {
		fixedLitLens[i] = 9
	}
	for i := 256; i < 280; i++ {
		fixedLitLens[i] = 7
	}
	for i := 280; i < 288; i++ {
		fixedLitLens[i] = 8
	}
	for i := range fixedDistLens {
		fixedDistLens[i] = 5
	}
	// Symbols 30 and 31 are reserved: RFC 1951 section 3.2.6 still gives
	// them a 5-bit fixed code so the table is complete, and leaves it to
	// the decoder to reject them if it ever sees one decoded.

	litCodes, litBits, err := InitHuffmanCodes(fixedLitLens[:])
	if err != nil {
		panic(err)
	}
	fixedLitForward = BuildHuffmanCodes(fixedLitLens[:], litCodes, litBits)
	fixedLitReverse = BuildHuffmanReverseCodes(fixedLitLens[:], litCodes)

	distCodes, distBits, err := InitHuffmanCodes(fixedDistLens[:])
	if err != nil {
		panic(err)
	}
	fixedDistForward = BuildHuffmanCodes(fixedDistLens[:], distCodes, distBits)
	fixedDistReverse = BuildHuffmanReverseCodes(fixedDistLens[:], distCodes)
}
