// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package extents locates the DEFLATE regions embedded in gzip and ZIP
// containers, returning them as puffinstream.Extent lists ready to hand
// to a PuffinStream or directly to Puff/Huff.
package extents

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/dsnet/golib/hashutil"

	"github.com/google/puffin"
	"github.com/google/puffin/flate"
	"github.com/google/puffin/puffinstream"
)

// gzip header constants (RFC 1952 section 2.3).
const (
	gzipID1   = 0x1f
	gzipID2   = 0x8b
	gzipCM    = 8 // deflate
	flgFHCRC  = 1 << 1
	flgFEXTRA = 1 << 2
	flgFNAME  = 1 << 3
	flgFCOMMENT = 1 << 4
)

// ScanGzip walks ra, which holds size bytes of one or more concatenated
// gzip members (RFC 1952), and returns the puff-space Extent for each
// member's DEFLATE payload, plus the CRC-32 of the entire decompressed
// stream. Each member's own trailer (CRC-32 and ISIZE) is checked against
// its decompressed payload as the member is scanned; a mismatch fails the
// scan rather than silently handing back an extent for truncated or
// corrupt data. The per-member CRCs are folded into the combined result
// with hashutil.CombineCRC32 (the same CRC-combining helper the teacher's
// bzip2 decoder uses for its block CRCs, see bzip2/common.go combineCRC)
// rather than rehashing the whole concatenated output.
func ScanGzip(ra io.ReaderAt, size int64) (exts []puffinstream.Extent, combinedCRC uint32, err error) {
	var puffOffset int64

	for offset := int64(0); offset < size; {
		hdrLen, err := readGzipHeader(ra, offset, size)
		if err != nil {
			return nil, 0, fmt.Errorf("extents: gzip header at %d: %w", offset, err)
		}
		deflateStart := offset + hdrLen

		fr := flate.NewReader(io.NewSectionReader(ra, deflateStart, size-deflateStart))
		h := crc32.NewIEEE()
		isize, err := io.Copy(h, fr)
		if err != nil {
			return nil, 0, fmt.Errorf("extents: scanning deflate region at %d: %w", deflateStart, err)
		}
		deflateLen := fr.InputOffset
		if err := fr.Close(); err != nil {
			return nil, 0, fmt.Errorf("extents: closing scan reader at %d: %w", deflateStart, err)
		}
		memberCRC := h.Sum32()

		var trailer [8]byte
		if _, err := io.ReadFull(io.NewSectionReader(ra, deflateStart+deflateLen, 8), trailer[:]); err != nil {
			return nil, 0, fmt.Errorf("extents: gzip trailer at %d: %w", deflateStart+deflateLen, err)
		}
		wantCRC := binary.LittleEndian.Uint32(trailer[0:4])
		wantISize := binary.LittleEndian.Uint32(trailer[4:8])
		if memberCRC != wantCRC {
			return nil, 0, fmt.Errorf("extents: gzip member at %d: CRC-32 mismatch: got %x, want %x", deflateStart, memberCRC, wantCRC)
		}
		if uint32(isize) != wantISize {
			return nil, 0, fmt.Errorf("extents: gzip member at %d: ISIZE mismatch: got %d, want %d", deflateStart, uint32(isize), wantISize)
		}

		deflateBuf := make([]byte, deflateLen)
		if _, err := io.ReadFull(io.NewSectionReader(ra, deflateStart, deflateLen), deflateBuf); err != nil {
			return nil, 0, fmt.Errorf("extents: rereading deflate region at %d: %w", deflateStart, err)
		}
		puffed, err := puffin.PuffBytes(deflateBuf)
		if err != nil {
			return nil, 0, fmt.Errorf("extents: puffing deflate region at %d: %w", deflateStart, err)
		}

		exts = append(exts, puffinstream.Extent{
			DeflateOffset: deflateStart,
			DeflateLength: deflateLen,
			PuffOffset:    puffOffset,
			PuffLength:    int64(len(puffed)),
		})
		puffOffset += int64(len(puffed))

		if len(exts) == 1 {
			combinedCRC = memberCRC
		} else {
			combinedCRC = hashutil.CombineCRC32(crc32.IEEE, combinedCRC, memberCRC, isize)
		}

		offset = deflateStart + deflateLen + 8 // CRC32 + ISIZE trailer
	}
	return exts, combinedCRC, nil
}

// readGzipHeader validates and skips past one gzip member header starting
// at offset, returning the header's length in bytes.
func readGzipHeader(ra io.ReaderAt, offset, size int64) (int64, error) {
	var fixed [10]byte
	if _, err := io.ReadFull(io.NewSectionReader(ra, offset, size-offset), fixed[:]); err != nil {
		return 0, err
	}
	if fixed[0] != gzipID1 || fixed[1] != gzipID2 {
		return 0, fmt.Errorf("bad magic %x%x", fixed[0], fixed[1])
	}
	if fixed[2] != gzipCM {
		return 0, fmt.Errorf("unsupported compression method %d", fixed[2])
	}
	flg := fixed[3]
	n := int64(10)

	if flg&flgFEXTRA != 0 {
		var xlenBuf [2]byte
		if _, err := io.ReadFull(io.NewSectionReader(ra, offset+n, size-offset-n), xlenBuf[:]); err != nil {
			return 0, err
		}
		n += 2 + int64(binary.LittleEndian.Uint16(xlenBuf[:]))
	}
	if flg&flgFNAME != 0 {
		l, err := skipCString(ra, offset+n, size)
		if err != nil {
			return 0, err
		}
		n += l
	}
	if flg&flgFCOMMENT != 0 {
		l, err := skipCString(ra, offset+n, size)
		if err != nil {
			return 0, err
		}
		n += l
	}
	if flg&flgFHCRC != 0 {
		n += 2
	}
	return n, nil
}

// skipCString returns the length, including the NUL terminator, of the
// NUL-terminated string starting at offset.
func skipCString(ra io.ReaderAt, offset, size int64) (int64, error) {
	buf := make([]byte, 1)
	var n int64
	for {
		if _, err := io.ReadFull(io.NewSectionReader(ra, offset+n, size-offset-n), buf); err != nil {
			return 0, err
		}
		n++
		if buf[0] == 0 {
			return n, nil
		}
	}
}
