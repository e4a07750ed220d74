// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"encoding/binary"
	"io"
	"sort"

	"github.com/google/puffin/puff"
)

// Huff transcodes a puff token stream from r back into a byte-identical
// DEFLATE bit stream written to w. It is the strict inverse of Puff:
// every marker token starts a new block, and the literal/copy tokens
// that follow it (up to the next marker or end of stream) are re-encoded
// and closed out with the end-of-block symbol.
func Huff(r io.Reader, w io.Writer) (err error) {
	defer errRecover(&err)
	tp := &tokenPeeker{pr: puff.NewReader(r)}
	bw := NewBitWriter(w)
	for {
		tok, err := tp.next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			panic(err)
		}
		if tok.Kind != puff.KindMarker {
			panic(newError(KindInvalidInput, bw.Offset(), "expected a block marker token"))
		}
		huffBlock(tp, bw, tok)
		if tok.Final {
			if err := bw.Flush(); err != nil {
				panic(err)
			}
		}
	}
}

// tokenPeeker adds a single token of lookahead to a puff.Reader, which
// huffBlockBody needs to tell whether the next token belongs to the
// current block or starts the next one.
type tokenPeeker struct {
	pr      *puff.Reader
	peeked  puff.Token
	peekErr error
	have    bool
}

func (tp *tokenPeeker) next() (puff.Token, error) {
	if tp.have {
		tp.have = false
		return tp.peeked, tp.peekErr
	}
	return tp.pr.ReadToken()
}

func (tp *tokenPeeker) peek() (puff.Token, error) {
	if !tp.have {
		tp.peeked, tp.peekErr = tp.pr.ReadToken()
		tp.have = true
	}
	return tp.peeked, tp.peekErr
}

func boolBit(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func huffBlock(tp *tokenPeeker, bw *BitWriter, marker puff.Token) {
	if err := bw.WriteBits(1, boolBit(marker.Final)); err != nil {
		panic(err)
	}
	if err := bw.WriteBits(2, uint32(marker.Type)); err != nil {
		panic(err)
	}

	switch marker.Type {
	case puff.Uncompressed:
		huffUncompressedBlock(bw, marker.Raw)
	case puff.Fixed:
		huffBlockBody(tp, bw, fixedLitReverse, fixedDistReverse)
	case puff.Dynamic:
		hl, hd, err := EmitDynamicHuffmanTable(bw, marker.Header)
		if err != nil {
			panic(err)
		}
		huffBlockBody(tp, bw, hl, hd)
	default:
		panic(newError(KindInvalidInput, bw.Offset(), "invalid block type in marker token"))
	}
}

func huffUncompressedBlock(bw *BitWriter, data []byte) {
	if err := bw.WriteBoundaryBits(); err != nil {
		panic(err)
	}
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[:2], uint16(len(data)))
	binary.LittleEndian.PutUint16(hdr[2:], ^uint16(len(data)))
	if err := bw.WriteAlignedBytes(hdr[:]); err != nil {
		panic(err)
	}
	if err := bw.WriteAlignedBytes(data); err != nil {
		panic(err)
	}
}

// huffBlockBody consumes literal and copy tokens until it finds the next
// marker token (or the stream ends), re-encoding each and then closing
// the block with the end-of-block symbol.
func huffBlockBody(tp *tokenPeeker, bw *BitWriter, lit, dist *ReverseTable) {
	for {
		tok, err := tp.peek()
		if err == io.EOF || (err == nil && tok.Kind == puff.KindMarker) {
			if err := EncodeSymbol(bw, lit, endBlockSym); err != nil {
				panic(err)
			}
			return
		}
		if err != nil {
			panic(err)
		}
		tp.next() // Consume what was just peeked.

		switch tok.Kind {
		case puff.KindLiteral:
			for _, b := range tok.Literal {
				if err := EncodeSymbol(bw, lit, uint(b)); err != nil {
					panic(err)
				}
			}
		case puff.KindCopy:
			lsym, lrec := lookupLengthCode(tok.Length)
			if err := EncodeSymbol(bw, lit, lsym); err != nil {
				panic(err)
			}
			if err := bw.WriteBits(uint(lrec.bits), uint32(tok.Length)-lrec.base); err != nil {
				panic(err)
			}
			dsym, drec := lookupDistanceCode(tok.Distance)
			if err := EncodeSymbol(bw, dist, dsym); err != nil {
				panic(err)
			}
			if err := bw.WriteBits(uint(drec.bits), uint32(tok.Distance)-drec.base); err != nil {
				panic(err)
			}
		default:
			panic(newError(KindInvalidInput, bw.Offset(), "unexpected token inside block body"))
		}
	}
}

// lookupLengthCode finds the length symbol whose range contains length,
// by binary-searching for the largest table base not exceeding it (RFC
// 1951 section 3.2.5).
func lookupLengthCode(length int) (uint, rangeCode) {
	i := sort.Search(len(lenLUT), func(i int) bool { return lenLUT[i].base > uint32(length) }) - 1
	return uint(257 + i), lenLUT[i]
}

// lookupDistanceCode is lookupLengthCode's distance-alphabet counterpart.
func lookupDistanceCode(distance int) (uint, rangeCode) {
	i := sort.Search(len(distLUT), func(i int) bool { return distLUT[i].base > uint32(distance) }) - 1
	return uint(i), distLUT[i]
}
