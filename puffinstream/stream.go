// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffinstream

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/google/puffin"
)

// defaultCacheSize bounds how many puffed extents PuffinStream keeps
// resident at once. The teacher has nothing of its own to size this
// after; this follows the simplest policy consistent with an "optional
// cache of recently puffed blocks" -- a small FIFO, evicting the oldest
// entry once full.
const defaultCacheSize = 8

// PuffinStream presents the puff-space view of the DEFLATE regions
// described by a list of Extents as a single random-access byte stream
// (io.ReaderAt), puffing only the regions that a read touches. Writes go
// through the separate WriterAtCloser returned by NewWriter.
//
// The cache is guarded by a mutex, so concurrent ReadAt calls are allowed;
// two calls that miss on the same extent may both puff it.
type PuffinStream struct {
	ra      io.ReaderAt
	exts    []Extent
	total   int64
	cacheSz int

	mu    sync.Mutex
	cache []cachedBlock // FIFO, oldest first
}

type cachedBlock struct {
	extentIdx int
	puff      []byte
}

// New returns a PuffinStream over the DEFLATE regions in ra described by
// exts. exts must be sorted by PuffOffset with no gaps or overlaps in
// puff-space; callers typically obtain them from the extents package.
func New(ra io.ReaderAt, exts []Extent) *PuffinStream {
	return &PuffinStream{
		ra:      ra,
		exts:    exts,
		total:   totalPuffLength(exts),
		cacheSz: defaultCacheSize,
	}
}

// Len reports the size, in bytes, of the full puff-space view.
func (ps *PuffinStream) Len() int64 { return ps.total }

// ReadAt implements io.ReaderAt over the puff-space view, puffing
// whichever extent(s) the requested range touches. A read spanning
// multiple extents is satisfied by puffing each in turn.
func (ps *PuffinStream) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= ps.total {
		if len(p) == 0 {
			return 0, nil
		}
		return 0, io.EOF
	}

	var n int
	for n < len(p) {
		cur := off + int64(n)
		if cur >= ps.total {
			break
		}
		idx := findExtent(ps.exts, cur)
		if idx < 0 {
			return n, fmt.Errorf("puffinstream: no extent covers puff offset %d", cur)
		}
		ext := ps.exts[idx]

		puffed, err := ps.puffedExtent(idx, ext)
		if err != nil {
			return n, err
		}

		local := int(cur - ext.PuffOffset)
		cnt := copy(p[n:], puffed[local:])
		n += cnt
	}
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// puffedExtent returns the puffed bytes for the extent at idx, reusing a
// cached copy if present.
func (ps *PuffinStream) puffedExtent(idx int, ext Extent) ([]byte, error) {
	ps.mu.Lock()
	for _, cb := range ps.cache {
		if cb.extentIdx == idx {
			ps.mu.Unlock()
			return cb.puff, nil
		}
	}
	ps.mu.Unlock()

	deflate := make([]byte, ext.DeflateLength)
	if _, err := io.ReadFull(io.NewSectionReader(ps.ra, ext.DeflateOffset, ext.DeflateLength), deflate); err != nil {
		return nil, fmt.Errorf("puffinstream: reading extent %d: %w", idx, err)
	}
	puffed, err := puffin.PuffBytes(deflate)
	if err != nil {
		return nil, fmt.Errorf("puffinstream: puffing extent %d: %w", idx, err)
	}

	ps.mu.Lock()
	ps.cache = append(ps.cache, cachedBlock{extentIdx: idx, puff: puffed})
	if len(ps.cache) > ps.cacheSz {
		ps.cache = ps.cache[1:]
	}
	ps.mu.Unlock()
	return puffed, nil
}

// WriterAtCloser is an io.WriterAt that also exposes an io.Closer. The
// writer returned by NewWriter writes each huffed extent through during
// WriteAt; its Close does nothing.
type WriterAtCloser interface {
	io.WriterAt
	io.Closer
}

// puffinWriter implements WriteAt by huffing a puff-space write back into
// DEFLATE bytes and writing those to the underlying io.WriterAt at the
// corresponding deflate offset. Partial-extent writes are not supported:
// huffing requires a complete puff token stream for the extent being
// written, so WriteAt requires p to cover exactly one whole extent.
type puffinWriter struct {
	wa   io.WriterAt
	exts []Extent
}

// NewWriter returns a WriterAtCloser that huffs whole-extent puff-space
// writes back into the DEFLATE container at wa.
func NewWriter(wa io.WriterAt, exts []Extent) WriterAtCloser {
	return &puffinWriter{wa: wa, exts: exts}
}

func (pw *puffinWriter) WriteAt(p []byte, off int64) (int, error) {
	idx := findExtent(pw.exts, off)
	if idx < 0 {
		return 0, fmt.Errorf("puffinstream: no extent covers puff offset %d", off)
	}
	ext := pw.exts[idx]
	if off != ext.PuffOffset || int64(len(p)) != ext.PuffLength {
		return 0, fmt.Errorf("puffinstream: WriteAt must cover exactly one whole extent (got [%d,%d), extent is [%d,%d))",
			off, off+int64(len(p)), ext.PuffOffset, ext.end())
	}

	var buf bytes.Buffer
	if err := puffin.Huff(bytes.NewReader(p), &buf); err != nil {
		return 0, fmt.Errorf("puffinstream: huffing extent %d: %w", idx, err)
	}
	if int64(buf.Len()) != ext.DeflateLength {
		return 0, fmt.Errorf("puffinstream: huffed extent %d changed size (%d -> %d bytes)", idx, ext.DeflateLength, buf.Len())
	}
	n, err := pw.wa.WriteAt(buf.Bytes(), ext.DeflateOffset)
	if err != nil {
		return 0, err
	}
	_ = n
	return len(p), nil
}

func (pw *puffinWriter) Close() error { return nil }
