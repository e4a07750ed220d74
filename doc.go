// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package puffin implements a bidirectional transcoder between the DEFLATE
// compressed bit stream (RFC 1951) and puff, a byte-aligned restatement of
// the same stream designed to be cheap to binary-diff.
//
// DEFLATE is order- and Huffman-sensitive: a tiny change to the
// uncompressed input causes large, non-local changes to the compressed
// bytes. Puffin expands both sides of a patch pair into puff before
// diffing and converts the patched puff buffer back into DEFLATE
// afterwards, preserving a bit-exact round trip while exposing the
// semantic structure (literal runs, copies, block headers) to whatever
// differ operates on the expanded form.
//
// Puffin does not choose Huffman tables, search for LZ77 matches, or
// recompress; it only transcodes a stream an encoder already produced.
package puffin
