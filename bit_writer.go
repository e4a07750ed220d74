// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import "io"

// BitWriter is the symmetric counterpart to BitReader: it packs bits
// LSB-first into bytes and flushes them to an io.Writer. The teacher
// library never implements a DEFLATE compressor, so this has no direct
// analogue there; it is written in the same accumulator-and-offset idiom
// as flate.bitReader, running in reverse.
type BitWriter struct {
	wr      io.Writer
	bufBits uint64 // LSB-aligned bit accumulator awaiting flush
	numBits uint   // number of valid bits in bufBits
	offset  int64  // bytes flushed to wr so far
	scratch [8]byte
}

// NewBitWriter constructs a BitWriter writing to w.
func NewBitWriter(w io.Writer) *BitWriter {
	bw := new(BitWriter)
	bw.Reset(w)
	return bw
}

// Reset discards any buffered bits and begins writing to w.
func (bw *BitWriter) Reset(w io.Writer) {
	*bw = BitWriter{wr: w}
}

// WriteBits packs the low n bits of v (n <= 32) into the stream LSB-first.
func (bw *BitWriter) WriteBits(n uint, v uint32) error {
	if n == 0 {
		return nil
	}
	bw.bufBits |= uint64(v&(1<<n-1)) << bw.numBits
	bw.numBits += n
	return bw.flushFullBytes()
}

// WriteBoundaryBits pads the current byte with zero bits (and flushes it)
// to reach the next byte boundary. The value written is always zero:
// puffin never needs to reproduce non-zero historical padding bits since
// RFC 1951 encoders are required to zero-fill alignment padding.
func (bw *BitWriter) WriteBoundaryBits() error {
	n := (8 - bw.numBits%8) % 8
	return bw.WriteBits(n, 0)
}

// WriteAlignedBytes emits buf verbatim. The writer must be byte-aligned.
func (bw *BitWriter) WriteAlignedBytes(buf []byte) error {
	if bw.numBits%8 != 0 {
		return newError(KindInvalidInput, bw.Offset(), "write of raw bytes on a non-aligned bit writer")
	}
	if err := bw.flushFullBytes(); err != nil {
		return err
	}
	if _, err := bw.wr.Write(buf); err != nil {
		return newError(KindInsufficientOutput, bw.offset, "unable to write raw bytes: "+err.Error())
	}
	bw.offset += int64(len(buf))
	return nil
}

// Offset returns the byte offset of the next byte the writer will
// produce, counting bytes already flushed. Like BitReader.Offset, it is
// only meaningful once the writer is byte-aligned.
func (bw *BitWriter) Offset() int64 {
	return bw.offset + int64(bw.numBits/8)
}

// Flush pads to a byte boundary with zero bits and writes out any
// remaining buffered bytes. It must be called exactly once, after the
// last WriteBits/WriteBoundaryBits call for the stream.
func (bw *BitWriter) Flush() error {
	return bw.WriteBoundaryBits()
}

// flushFullBytes writes out every complete byte currently buffered,
// keeping only the trailing partial byte (if any) in the accumulator.
func (bw *BitWriter) flushFullBytes() error {
	n := 0
	for bw.numBits >= 8 {
		bw.scratch[n] = byte(bw.bufBits)
		bw.bufBits >>= 8
		bw.numBits -= 8
		n++
		if n == len(bw.scratch) {
			if _, err := bw.wr.Write(bw.scratch[:n]); err != nil {
				return newError(KindInsufficientOutput, bw.offset, "unable to flush bits: "+err.Error())
			}
			bw.offset += int64(n)
			n = 0
		}
	}
	if n > 0 {
		if _, err := bw.wr.Write(bw.scratch[:n]); err != nil {
			return newError(KindInsufficientOutput, bw.offset, "unable to flush bits: "+err.Error())
		}
		bw.offset += int64(n)
	}
	return nil
}
