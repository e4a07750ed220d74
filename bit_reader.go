// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"bufio"
	"io"
	"strconv"
)

// ByteReader is the minimal interface BitReader needs from its source: a
// reader that can also hand back bytes one at a time for cheap refills.
// Any io.Reader is accepted by NewBitReader; those that do not already
// satisfy ByteReader are wrapped in a bufio.Reader, mirroring the
// teacher's flate.bitReader.
type ByteReader interface {
	io.Reader
	io.ByteReader
}

// BitReader presents bit-granular, LSB-first read access over an
// in-memory byte stream. It deliberately separates "make sure n bits are
// available" (CacheBits) from "look at the next n bits" (ReadBits) from
// "consume n bits" (DropBits): Huffman decoding needs to peek at
// max_bits of input, decide how many bits the matched code actually
// uses, and only then drop that many -- never the full lookup width.
type BitReader struct {
	rd      ByteReader
	bufBits uint64 // LSB-aligned bit accumulator
	numBits uint   // number of valid bits in bufBits
	offset  int64  // bytes pulled out of rd so far
}

// NewBitReader constructs a BitReader reading from r.
func NewBitReader(r io.Reader) *BitReader {
	br := new(BitReader)
	br.Reset(r)
	return br
}

// Reset discards any buffered bits and begins reading from r.
func (br *BitReader) Reset(r io.Reader) {
	*br = BitReader{}
	if rr, ok := r.(ByteReader); ok {
		br.rd = rr
	} else {
		br.rd = bufio.NewReader(r)
	}
}

// CacheBits ensures that at least n bits (n <= 32) are available to
// ReadBits. It returns a KindInsufficientInput error if the underlying
// reader is exhausted before that many bits could be produced.
func (br *BitReader) CacheBits(n uint) error {
	for br.numBits < n {
		c, err := br.rd.ReadByte()
		if err != nil {
			return newError(KindInsufficientInput, br.offset, "unable to cache "+strconv.Itoa(int(n))+" bits: "+err.Error())
		}
		br.bufBits |= uint64(c) << br.numBits
		br.numBits += 8
		br.offset++
	}
	return nil
}

// ReadBits returns the next n cached bits as an unsigned integer without
// advancing the read position. The caller must have already succeeded at
// CacheBits(n) (or more).
func (br *BitReader) ReadBits(n uint) uint32 {
	if n == 0 {
		return 0
	}
	return uint32(br.bufBits & (1<<n - 1))
}

// DropBits advances the read position past n bits, which must already be
// cached.
func (br *BitReader) DropBits(n uint) {
	br.bufBits >>= n
	br.numBits -= n
}

// TryCacheBits is like CacheBits but never blocks waiting on the
// underlying reader for more than what is already buffered; it reports
// whether n bits are available right now. Puffer uses this to attempt
// the common case inline before falling back to the panic-based slow
// path used elsewhere in this package.
func (br *BitReader) TryCacheBits(n uint) bool {
	return br.numBits >= n
}

// ReadBoundaryBits reads and consumes the 0-7 padding bits needed to
// reach the next byte boundary, returning their value.
func (br *BitReader) ReadBoundaryBits() (uint32, error) {
	n := br.numBits % 8
	if err := br.CacheBits(n); err != nil {
		return 0, err
	}
	v := br.ReadBits(n)
	br.DropBits(n)
	return v, nil
}

// SkipBoundaryBits discards the 0-7 padding bits needed to reach the next
// byte boundary without reporting their value.
func (br *BitReader) SkipBoundaryBits() error {
	_, err := br.ReadBoundaryBits()
	return err
}

// Offset returns the byte offset of the next unread byte in the
// underlying stream. It is only meaningful once the reader is
// byte-aligned (after ReadBoundaryBits/SkipBoundaryBits, or when no bits
// have been cached beyond a whole number of bytes).
func (br *BitReader) Offset() int64 {
	return br.offset - int64(br.numBits/8)
}

// ReadAlignedBytes copies len(buf) raw bytes from the stream. The reader
// must be byte-aligned (numBits%8 == 0).
func (br *BitReader) ReadAlignedBytes(buf []byte) error {
	if br.numBits%8 != 0 {
		return newError(KindInvalidInput, br.Offset(), "read of raw bytes on a non-aligned bit reader")
	}
	i := 0
	for ; i < len(buf) && br.numBits > 0; i++ {
		buf[i] = byte(br.bufBits)
		br.bufBits >>= 8
		br.numBits -= 8
	}
	for ; i < len(buf); i++ {
		c, err := br.rd.ReadByte()
		if err != nil {
			return newError(KindInsufficientInput, br.offset, "unable to read raw byte: "+err.Error())
		}
		buf[i] = c
		br.offset++
	}
	return nil
}
