// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

// This file implements the dynamic-block Huffman header codec: the
// translation between RFC 1951's bit-packed HLIT/HDIST/HCLEN header and
// the byte-aligned, re-encodable form that gets carried inside a puff
// block marker token (see the design doc section 2.2). The two
// directions -- BuildDynamicHuffmanTable (bits to header bytes) and
// EmitDynamicHuffmanTable (header bytes to bits) -- are exact inverses
// of each other by construction, which is what lets the Huffer
// reconstruct a bit-identical dynamic header.
//
// The header byte layout is:
//
//	byte 0:        HLIT  (0..29, actual literal/length symbol count is +257)
//	byte 1:        HDIST (0..29, actual distance symbol count is +1)
//	byte 2:        HCLEN (0..15, actual code-length symbol count is +4)
//	HCLEN+4 nibbles, two packed per byte, high nibble first
//	HLIT+257+HDIST+1 code-length-sequence bytes (0..15, or the expanded
//	  ranges 16..19, 20..27, 28..155 standing in for repeat markers
//	  16/17/18 together with their extra bits), decoded as one combined
//	  run -- the literal/length entries followed immediately by the
//	  distance entries, since a repeat marker may span the boundary
//	  between them

// BuildDynamicHuffmanTable reads a dynamic-block header from br
// (RFC 1951 section 3.2.7), returning the literal/length and distance
// forward decode tables and the byte-aligned header puff should carry in
// its block marker token so a later Huffer invocation can reproduce the
// exact same bits.
func BuildDynamicHuffmanTable(br *BitReader) (hl, hd *ForwardTable, header []byte, err error) {
	readField := func(n uint) (uint32, error) {
		if err := br.CacheBits(n); err != nil {
			return 0, err
		}
		v := br.ReadBits(n)
		br.DropBits(n)
		return v, nil
	}

	hlit5, err := readField(5)
	if err != nil {
		return nil, nil, nil, err
	}
	hdist5, err := readField(5)
	if err != nil {
		return nil, nil, nil, err
	}
	hclen4, err := readField(4)
	if err != nil {
		return nil, nil, nil, err
	}
	if hlit5 > maxNumLitSyms-2-257 || hdist5 > maxNumDistSyms-2-1 {
		return nil, nil, nil, newError(KindInvalidInput, br.Offset(), "HLIT/HDIST out of range")
	}
	hlit := int(hlit5) + 257
	hdist := int(hdist5) + 1
	hclen := int(hclen4) + 4

	header = make([]byte, 0, 3+(hclen+1)/2+hlit+hdist)
	header = append(header, byte(hlit5), byte(hdist5), byte(hclen4))

	var codeLens [maxNumCLenSyms]uint8
	for i := 0; i < hclen; i++ {
		v, err := readField(3)
		if err != nil {
			return nil, nil, nil, err
		}
		codeLens[kPermutations[i]] = uint8(v)
	}
	for i := 0; i < hclen; i += 2 {
		hi := codeLens[kPermutations[i]]
		var lo uint8
		if i+1 < hclen {
			lo = codeLens[kPermutations[i+1]]
		}
		header = append(header, hi<<4|lo)
	}

	metaCodes, metaBits, err := InitHuffmanCodes(codeLens[:])
	if err != nil {
		return nil, nil, nil, err
	}
	metaForward := BuildHuffmanCodes(codeLens[:], metaCodes, metaBits)

	// The literal/length and distance code-length sequences are decoded
	// as a single combined run of hlit+hdist entries, not two separate
	// ones: a repeat marker (16/17/18) is free to span the boundary
	// between them, repeating the literal table's last code length into
	// the start of the distance table.
	allLens, allHdr, err := decodeCodeLengths(br, metaForward, hlit+hdist)
	if err != nil {
		return nil, nil, nil, err
	}
	header = append(header, allHdr...)
	litLens, distLens := allLens[:hlit], allLens[hlit:]

	litCodes, litBits, err := InitHuffmanCodes(litLens)
	if err != nil {
		return nil, nil, nil, err
	}
	distCodes, distBits, err := InitHuffmanCodes(distLens)
	if err != nil {
		return nil, nil, nil, err
	}
	hl = BuildHuffmanCodes(litLens, litCodes, litBits)
	hd = BuildHuffmanCodes(distLens, distCodes, distBits)
	return hl, hd, header, nil
}

// decodeCodeLengths decodes count code-length symbols using the
// meta-alphabet table meta, expanding repeat markers 16/17/18 and
// re-encoding each decoded entry (including the repeat marker's extra
// bits) into the biased puff byte ranges described in the design doc:
// 16 -> 16..19, 17 -> 20..27, 18 -> 28..155. Callers decoding a dynamic
// header pass count = hlit+hdist so a repeat marker can carry across the
// lit/dist boundary, then split the result themselves.
func decodeCodeLengths(br *BitReader, meta *ForwardTable, count int) (lens []uint8, header []byte, err error) {
	lens = make([]uint8, count)
	header = make([]byte, 0, count)
	var last uint8
	for sym := 0; sym < count; {
		code, err := DecodeSymbol(br, meta)
		if err != nil {
			return nil, nil, err
		}
		switch {
		case code < 16:
			lens[sym] = uint8(code)
			header = append(header, byte(code))
			last = uint8(code)
			sym++
		case code == 16:
			if sym == 0 {
				return nil, nil, newError(KindInvalidInput, br.Offset(), "repeat-previous code length at start of sequence")
			}
			extra, err := readBits(br, 2)
			if err != nil {
				return nil, nil, err
			}
			rep := 3 + int(extra)
			if sym+rep > count {
				return nil, nil, newError(KindInvalidInput, br.Offset(), "code length repeat overruns alphabet")
			}
			for j := 0; j < rep; j++ {
				lens[sym] = last
				sym++
			}
			header = append(header, byte(16+extra))
		case code == 17:
			extra, err := readBits(br, 3)
			if err != nil {
				return nil, nil, err
			}
			rep := 3 + int(extra)
			if sym+rep > count {
				return nil, nil, newError(KindInvalidInput, br.Offset(), "code length repeat overruns alphabet")
			}
			for j := 0; j < rep; j++ {
				lens[sym] = 0
				sym++
			}
			header = append(header, byte(20+extra))
		case code == 18:
			extra, err := readBits(br, 7)
			if err != nil {
				return nil, nil, err
			}
			rep := 11 + int(extra)
			if sym+rep > count {
				return nil, nil, newError(KindInvalidInput, br.Offset(), "code length repeat overruns alphabet")
			}
			for j := 0; j < rep; j++ {
				lens[sym] = 0
				sym++
			}
			header = append(header, byte(28+extra))
		default:
			return nil, nil, newError(KindInvalidInput, br.Offset(), "invalid code-length symbol")
		}
	}
	return lens, header, nil
}

func readBits(br *BitReader, n uint) (uint32, error) {
	if err := br.CacheBits(n); err != nil {
		return 0, err
	}
	v := br.ReadBits(n)
	br.DropBits(n)
	return v, nil
}

// EmitDynamicHuffmanTable is the inverse of BuildDynamicHuffmanTable: it
// writes the bits of a dynamic-block header described by a previously
// recorded header byte slice, and returns the literal/length and
// distance reverse encode tables so the caller can emit the block's
// literal and copy symbols.
func EmitDynamicHuffmanTable(bw *BitWriter, header []byte) (hl, hd *ReverseTable, err error) {
	if len(header) < 3 {
		return nil, nil, newError(KindInvalidInput, bw.Offset(), "truncated dynamic header")
	}
	hlit5, hdist5, hclen4 := uint32(header[0]), uint32(header[1]), uint32(header[2])
	hlit := int(hlit5) + 257
	hdist := int(hdist5) + 1
	hclen := int(hclen4) + 4
	pos := 3

	if err := bw.WriteBits(5, hlit5); err != nil {
		return nil, nil, err
	}
	if err := bw.WriteBits(5, hdist5); err != nil {
		return nil, nil, err
	}
	if err := bw.WriteBits(4, hclen4); err != nil {
		return nil, nil, err
	}

	nNibbleBytes := (hclen + 1) / 2
	if pos+nNibbleBytes > len(header) {
		return nil, nil, newError(KindInvalidInput, bw.Offset(), "truncated dynamic header code-length nibbles")
	}
	var codeLens [maxNumCLenSyms]uint8
	for i := 0; i < hclen; i++ {
		b := header[pos+i/2]
		var v uint8
		if i%2 == 0 {
			v = b >> 4
		} else {
			v = b & 0xf
		}
		codeLens[kPermutations[i]] = v
		if err := bw.WriteBits(3, uint32(v)); err != nil {
			return nil, nil, err
		}
	}
	pos += nNibbleBytes

	metaCodes, _, err := InitHuffmanCodes(codeLens[:])
	if err != nil {
		return nil, nil, err
	}
	metaReverse := BuildHuffmanReverseCodes(codeLens[:], metaCodes)

	// Mirror the combined decode: the lit and dist code-length sequences
	// are re-encoded as a single run of hlit+hdist entries so a repeat
	// marker spanning the boundary emits correctly.
	allLens, _, err := emitCodeLengths(bw, metaReverse, header[pos:], hlit+hdist)
	if err != nil {
		return nil, nil, err
	}
	litLens, distLens := allLens[:hlit], allLens[hlit:]

	litCodes, _, err := InitHuffmanCodes(litLens)
	if err != nil {
		return nil, nil, err
	}
	distCodes, _, err := InitHuffmanCodes(distLens)
	if err != nil {
		return nil, nil, err
	}
	return BuildHuffmanReverseCodes(litLens, litCodes), BuildHuffmanReverseCodes(distLens, distCodes), nil
}

// emitCodeLengths is the inverse of decodeCodeLengths: it walks the
// biased puff byte encoding of a code-length sequence, writes the
// corresponding meta-alphabet symbol (plus any extra bits) to bw, and
// reconstructs the code-length array the sequence describes. Callers
// emitting a dynamic header pass count = hlit+hdist and split the result
// themselves, matching decodeCodeLengths.
func emitCodeLengths(bw *BitWriter, meta *ReverseTable, rest []byte, count int) (lens []uint8, consumed int, err error) {
	lens = make([]uint8, count)
	for sym := 0; sym < count; {
		if consumed >= len(rest) {
			return nil, 0, newError(KindInvalidInput, bw.Offset(), "truncated code-length sequence")
		}
		v := rest[consumed]
		consumed++
		switch {
		case v < 16:
			if err := EncodeSymbol(bw, meta, uint(v)); err != nil {
				return nil, 0, err
			}
			lens[sym] = v
			sym++
		case v <= 19:
			if sym == 0 {
				return nil, 0, newError(KindInvalidInput, bw.Offset(), "repeat-previous code length at start of sequence")
			}
			extra := uint32(v - 16)
			if err := EncodeSymbol(bw, meta, 16); err != nil {
				return nil, 0, err
			}
			if err := bw.WriteBits(2, extra); err != nil {
				return nil, 0, err
			}
			rep := 3 + int(extra)
			last := lens[sym-1]
			for j := 0; j < rep && sym < count; j++ {
				lens[sym] = last
				sym++
			}
		case v <= 27:
			extra := uint32(v - 20)
			if err := EncodeSymbol(bw, meta, 17); err != nil {
				return nil, 0, err
			}
			if err := bw.WriteBits(3, extra); err != nil {
				return nil, 0, err
			}
			rep := 3 + int(extra)
			for j := 0; j < rep && sym < count; j++ {
				lens[sym] = 0
				sym++
			}
		case v <= 155:
			extra := uint32(v - 28)
			if err := EncodeSymbol(bw, meta, 18); err != nil {
				return nil, 0, err
			}
			if err := bw.WriteBits(7, extra); err != nil {
				return nil, 0, err
			}
			rep := 11 + int(extra)
			for j := 0; j < rep && sym < count; j++ {
				lens[sym] = 0
				sym++
			}
		default:
			return nil, 0, newError(KindInvalidInput, bw.Offset(), "invalid code-length byte")
		}
	}
	return lens, consumed, nil
}
