// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package puffinstream presents the puff-space view of one or more DEFLATE
// regions inside a larger file as a seekable, random-access byte stream.
package puffinstream

import "sort"

// Extent locates one DEFLATE region inside a container (a gzip member, a
// ZIP entry's compressed data, ...) and the span of puff-space bytes it
// expands to once puffed. A PuffinStream is built from a list of these,
// typically produced by the extents package's container scanners.
type Extent struct {
	DeflateOffset int64 // Byte offset of the DEFLATE region in the container.
	DeflateLength int64 // Length in bytes of the DEFLATE region.
	PuffOffset    int64 // Offset of the region's puff form in puff-space.
	PuffLength    int64 // Length in bytes of the region's puff form.
}

// end returns the first puff-space offset past this extent.
func (e Extent) end() int64 { return e.PuffOffset + e.PuffLength }

// findExtent returns the index of the extent containing puff-space offset
// off, or -1 if off does not fall within any extent in exts. Extents must
// be sorted by PuffOffset and non-overlapping, as produced by a container
// scan in file order.
func findExtent(exts []Extent, off int64) int {
	i := sort.Search(len(exts), func(i int) bool { return exts[i].end() > off })
	if i == len(exts) || off < exts[i].PuffOffset {
		return -1
	}
	return i
}

// totalPuffLength returns the size of the full puff-space view, i.e. the
// end of the last extent (extents need not be contiguous in DeflateOffset,
// but PuffinStream requires them contiguous in puff-space).
func totalPuffLength(exts []Extent) int64 {
	if len(exts) == 0 {
		return 0
	}
	return exts[len(exts)-1].end()
}
