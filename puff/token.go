// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

// Package puff implements byte-granular reading and writing of the puff
// token stream: the diff-friendly, byte-aligned restatement of a DEFLATE
// bit stream that the root puffin package transcodes to and from.
package puff

// BlockType identifies the three kinds of DEFLATE block (RFC 1951
// section 3.2.3).
type BlockType uint8

const (
	Uncompressed BlockType = 0
	Fixed        BlockType = 1
	Dynamic      BlockType = 2
)

func (t BlockType) String() string {
	switch t {
	case Uncompressed:
		return "uncompressed"
	case Fixed:
		return "fixed"
	case Dynamic:
		return "dynamic"
	default:
		return "invalid"
	}
}

// Kind distinguishes the three token payloads a puff stream carries.
type Kind uint8

const (
	KindMarker Kind = iota
	KindLiteral
	KindCopy
)

// MaxLiteralRun is the largest number of literal bytes a single Literal
// token may carry; longer runs are split across consecutive tokens.
const MaxLiteralRun = 128

// Token is one element of the puff stream. Only the fields relevant to
// Kind are populated.
type Token struct {
	Kind Kind

	// KindMarker fields.
	Final  bool
	Type   BlockType
	Header []byte // Dynamic header blob; nil unless Type == Dynamic.
	Raw    []byte // Full uncompressed-block payload; nil unless Type == Uncompressed.

	// KindLiteral fields.
	Literal []byte // 1..MaxLiteralRun bytes.

	// KindCopy fields.
	Length   int // 3..258
	Distance int // 1..32768
}
