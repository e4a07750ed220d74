// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puff

import (
	"encoding/binary"
	"io"

	"github.com/dsnet/golib/bits"
)

// tagLiteral and tagCopy are sentinel header bytes that can never be
// confused with a marker byte: a marker's final-flag/block-type encoding
// (bit 0 and bits 1-2) only ever produces values 0..5.
const (
	tagLiteral = 6
	tagCopy    = 7
)

// Writer serializes puff tokens to an underlying byte stream.
type Writer struct {
	w       io.Writer
	scratch [16]byte
}

// NewWriter returns a Writer that writes tokens to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// PutMarker writes a block-marker token for a fixed or dynamic block.
// header must be nil for Fixed and the dynamic header blob (as produced
// by BuildDynamicHuffmanTable) for Dynamic.
func (pw *Writer) PutMarker(final bool, typ BlockType, header []byte) error {
	if err := pw.putHeaderByte(final, typ); err != nil {
		return err
	}
	if typ != Dynamic {
		return nil
	}
	n := binary.PutUvarint(pw.scratch[:], uint64(len(header)))
	if _, err := pw.w.Write(pw.scratch[:n]); err != nil {
		return err
	}
	_, err := pw.w.Write(header)
	return err
}

// PutUncompressed writes a block-marker token for an uncompressed block,
// carrying its raw payload inline.
func (pw *Writer) PutUncompressed(final bool, data []byte) error {
	if err := pw.putHeaderByte(final, Uncompressed); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(pw.scratch[:2], uint16(len(data)))
	if _, err := pw.w.Write(pw.scratch[:2]); err != nil {
		return err
	}
	_, err := pw.w.Write(data)
	return err
}

// putHeaderByte packs the final-flag and block-type bits the same way a
// DEFLATE block header does (RFC 1951 section 3.2.3), so the marker byte
// doubles as a direct mirror of the bits it stands in for.
func (pw *Writer) putHeaderByte(final bool, typ BlockType) error {
	var b [1]byte
	bits.Set(b[:], final, 0)
	bits.SetN(b[:], uint(typ), 2, 1)
	_, err := pw.w.Write(b[:])
	return err
}

// PutLiteral writes buf as one or more Literal tokens, splitting it into
// runs no longer than MaxLiteralRun.
func (pw *Writer) PutLiteral(buf []byte) error {
	for len(buf) > 0 {
		n := len(buf)
		if n > MaxLiteralRun {
			n = MaxLiteralRun
		}
		pw.scratch[0] = tagLiteral
		pw.scratch[1] = byte(n - 1) // 0..127 stands for a run of 1..128 bytes.
		if _, err := pw.w.Write(pw.scratch[:2]); err != nil {
			return err
		}
		if _, err := pw.w.Write(buf[:n]); err != nil {
			return err
		}
		buf = buf[n:]
	}
	return nil
}

// PutCopy writes a Copy token for a length/distance back-reference.
func (pw *Writer) PutCopy(length, distance int) error {
	pw.scratch[0] = tagCopy
	n := 1
	n += binary.PutUvarint(pw.scratch[n:], uint64(length))
	n += binary.PutUvarint(pw.scratch[n:], uint64(distance))
	_, err := pw.w.Write(pw.scratch[:n])
	return err
}
