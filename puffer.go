// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"encoding/binary"
	"io"

	"github.com/google/puffin/puff"
)

// Puff transcodes a DEFLATE bit stream from r into the puff token stream
// written to w. It consumes r until EOF, treating any trailing bytes
// after a final block as the start of another concatenated DEFLATE
// stream (see puffAllStreams), so that e.g. two gzip members pasted
// back-to-back puff to two block-marker sequences.
func Puff(r io.Reader, w io.Writer) (err error) {
	defer errRecover(&err)
	br := NewBitReader(r)
	pw := puff.NewWriter(w)
	puffAllStreams(br, pw)
	return nil
}

// puffAllStreams drives puffOneStream across however many concatenated
// DEFLATE bit streams are present in br.
func puffAllStreams(br *BitReader, pw *puff.Writer) {
	for {
		puffOneStream(br, pw)
		if err := br.SkipBoundaryBits(); err != nil {
			return
		}
		if err := br.CacheBits(1); err != nil {
			return // Cleanly exhausted; nothing more to transcode.
		}
	}
}

// puffOneStream reads blocks until (and including) one marked final,
// writing a marker token and its body tokens for each.
func puffOneStream(br *BitReader, pw *puff.Writer) {
	for {
		if err := br.CacheBits(3); err != nil {
			panic(err)
		}
		final := br.ReadBits(1) == 1
		br.DropBits(1)
		typ := br.ReadBits(2)
		br.DropBits(2)

		switch typ {
		case 0:
			puffUncompressedBlock(br, pw, final)
		case 1:
			if err := pw.PutMarker(final, puff.Fixed, nil); err != nil {
				panic(newError(KindInsufficientOutput, -1, err.Error()))
			}
			puffBlockBody(br, pw, fixedLitForward, fixedDistForward)
		case 2:
			hl, hd, header, err := BuildDynamicHuffmanTable(br)
			if err != nil {
				panic(err)
			}
			if err := pw.PutMarker(final, puff.Dynamic, header); err != nil {
				panic(newError(KindInsufficientOutput, -1, err.Error()))
			}
			puffBlockBody(br, pw, hl, hd)
		default:
			panic(newError(KindInvalidInput, br.Offset(), "reserved block type"))
		}

		if final {
			return
		}
	}
}

func puffUncompressedBlock(br *BitReader, pw *puff.Writer, final bool) {
	if err := br.SkipBoundaryBits(); err != nil {
		panic(err)
	}
	var hdr [4]byte
	if err := br.ReadAlignedBytes(hdr[:]); err != nil {
		panic(err)
	}
	n := binary.LittleEndian.Uint16(hdr[:2])
	nn := binary.LittleEndian.Uint16(hdr[2:])
	if n^nn != 0xffff {
		panic(newError(KindInvalidInput, br.Offset(), "LEN/NLEN mismatch in uncompressed block"))
	}
	data := make([]byte, n)
	if err := br.ReadAlignedBytes(data); err != nil {
		panic(err)
	}
	if err := pw.PutUncompressed(final, data); err != nil {
		panic(newError(KindInsufficientOutput, -1, err.Error()))
	}
}

// puffBlockBody decodes literal and length-distance symbols from a fixed
// or dynamic block until the end-of-block symbol, buffering consecutive
// literal bytes into runs before flushing them as Literal tokens.
func puffBlockBody(br *BitReader, pw *puff.Writer, lit, dist *ForwardTable) {
	litBuf := make([]byte, 0, puff.MaxLiteralRun)
	flush := func() {
		if len(litBuf) == 0 {
			return
		}
		if err := pw.PutLiteral(litBuf); err != nil {
			panic(newError(KindInsufficientOutput, -1, err.Error()))
		}
		litBuf = litBuf[:0]
	}

	for {
		sym, ok := TryDecodeSymbol(br, lit)
		if !ok {
			var err error
			sym, err = DecodeSymbol(br, lit)
			if err != nil {
				panic(err)
			}
		}

		switch {
		case sym < endBlockSym:
			litBuf = append(litBuf, byte(sym))
			if len(litBuf) == puff.MaxLiteralRun {
				flush()
			}
		case sym == endBlockSym:
			flush()
			return
		case sym <= maxLenSym:
			flush()
			rec := lenLUT[sym-257]
			extra, err := readBits(br, uint(rec.bits))
			if err != nil {
				panic(err)
			}
			length := int(rec.base) + int(extra)

			distSym, err := DecodeSymbol(br, dist)
			if err != nil {
				panic(err)
			}
			if distSym > maxDistSym {
				panic(newError(KindInvalidInput, br.Offset(), "invalid distance symbol"))
			}
			drec := distLUT[distSym]
			dextra, err := readBits(br, uint(drec.bits))
			if err != nil {
				panic(err)
			}
			distance := int(drec.base) + int(dextra)

			if err := pw.PutCopy(length, distance); err != nil {
				panic(newError(KindInsufficientOutput, -1, err.Error()))
			}
		default:
			panic(newError(KindInvalidInput, br.Offset(), "reserved literal/length symbol"))
		}
	}
}
