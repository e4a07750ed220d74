// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import "bytes"

// PuffBytes transcodes the DEFLATE stream deflate into its puff form,
// returning the resulting bytes. It is a convenience wrapper around Puff
// for callers that already hold the whole stream in memory.
func PuffBytes(deflate []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Puff(bytes.NewReader(deflate), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// HuffBytes transcodes the puff stream p back into DEFLATE bytes,
// returning the result. It is a convenience wrapper around Huff for
// callers that already hold the whole stream in memory.
func HuffBytes(p []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := Huff(bytes.NewReader(p), &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
