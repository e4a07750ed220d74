// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// +build !no_puffin_lib

package bench

import (
	"bytes"
	"io"
	"io/ioutil"

	"github.com/google/puffin"
	"github.com/google/puffin/flate"
)

func init() {
	// The "puffin" decoder exercises the full DEFLATE->puff->DEFLATE round
	// trip on every block before handing the reconstructed stream to the
	// reference decoder, so TestCodecs and the decode-rate suite both
	// drive Puff and Huff on real compressed corpora rather than just
	// synthetic unit-test inputs.
	RegisterDecoder(FormatFlate, "puffin",
		func(r io.Reader) io.ReadCloser {
			deflate, err := ioutil.ReadAll(r)
			if err != nil {
				return errCloser{err}
			}
			p, err := puffin.PuffBytes(deflate)
			if err != nil {
				return errCloser{err}
			}
			roundTripped, err := puffin.HuffBytes(p)
			if err != nil {
				return errCloser{err}
			}
			return flate.NewReader(bytes.NewReader(roundTripped))
		})
}

// errCloser is an io.ReadCloser that always fails, used to surface a
// setup error from a Decoder's constructor through the normal Read/Close
// path instead of panicking mid-registration.
type errCloser struct{ err error }

func (e errCloser) Read([]byte) (int, error) { return 0, e.err }
func (e errCloser) Close() error             { return e.err }
