// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puff

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Reader deserializes puff tokens from an underlying byte stream. It is
// lazy and non-restartable: ReadToken advances the stream exactly one
// token at a time. A source that is not an io.ByteReader is wrapped in a
// bufio.Reader, which may read ahead of the current token.
type Reader struct {
	r   io.ByteReader
	eof bool
}

// NewReader returns a Reader that reads tokens from r.
func NewReader(r io.Reader) *Reader {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	return &Reader{r: br}
}

// ReadToken returns the next token in the stream, or io.EOF once the
// stream is exhausted at a token boundary.
func (pr *Reader) ReadToken() (Token, error) {
	tag, err := pr.r.ReadByte()
	if err != nil {
		return Token{}, err
	}
	switch tag {
	case tagLiteral:
		return pr.readLiteral()
	case tagCopy:
		return pr.readCopy()
	default:
		if tag > 5 {
			return Token{}, ErrCorruptStream
		}
		return pr.readMarker(tag)
	}
}

func (pr *Reader) readMarker(tag byte) (Token, error) {
	tok := Token{
		Kind:  KindMarker,
		Final: tag&1 == 1,
		Type:  BlockType((tag >> 1) & 3),
	}
	switch tok.Type {
	case Uncompressed:
		var lenBuf [2]byte
		for i := range lenBuf {
			b, err := pr.r.ReadByte()
			if err != nil {
				return Token{}, unexpectedEOF(err)
			}
			lenBuf[i] = b
		}
		n := binary.LittleEndian.Uint16(lenBuf[:])
		data := make([]byte, n)
		for i := range data {
			b, err := pr.r.ReadByte()
			if err != nil {
				return Token{}, unexpectedEOF(err)
			}
			data[i] = b
		}
		tok.Raw = data
	case Dynamic:
		n, err := binary.ReadUvarint(pr.r)
		if err != nil {
			return Token{}, unexpectedEOF(err)
		}
		hdr := make([]byte, n)
		for i := range hdr {
			b, err := pr.r.ReadByte()
			if err != nil {
				return Token{}, unexpectedEOF(err)
			}
			hdr[i] = b
		}
		tok.Header = hdr
	case Fixed:
		// No payload beyond the marker byte itself.
	default:
		return Token{}, ErrCorruptStream
	}
	return tok, nil
}

func (pr *Reader) readLiteral() (Token, error) {
	n, err := pr.r.ReadByte()
	if err != nil {
		return Token{}, unexpectedEOF(err)
	}
	buf := make([]byte, int(n)+1)
	for i := range buf {
		b, err := pr.r.ReadByte()
		if err != nil {
			return Token{}, unexpectedEOF(err)
		}
		buf[i] = b
	}
	return Token{Kind: KindLiteral, Literal: buf}, nil
}

func (pr *Reader) readCopy() (Token, error) {
	length, err := binary.ReadUvarint(pr.r)
	if err != nil {
		return Token{}, unexpectedEOF(err)
	}
	distance, err := binary.ReadUvarint(pr.r)
	if err != nil {
		return Token{}, unexpectedEOF(err)
	}
	return Token{Kind: KindCopy, Length: int(length), Distance: int(distance)}, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

// ErrCorruptStream is returned when a tag byte does not correspond to
// any known token shape.
var ErrCorruptStream = puffErr("malformed puff token stream")

type puffErr string

func (e puffErr) Error() string { return "puff: " + string(e) }
