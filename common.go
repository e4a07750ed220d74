// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puffin

import (
	"fmt"
	"log"
	"runtime"
)

const (
	maxHistSize = 1 << 15 // Maximum DEFLATE back-reference distance.
	endBlockSym = 256     // Literal/length alphabet end-of-block symbol.
)

// Kind classifies an Error by the taxonomy in the design doc: whether it
// came from a starved reader, an exhausted writer, or a malformed stream.
type Kind int

const (
	// KindInsufficientInput means a BitReader or PuffReader could not
	// cache the requested number of bits or bytes.
	KindInsufficientInput Kind = iota + 1
	// KindInsufficientOutput means a BitWriter or PuffWriter ran out of
	// room in the caller-supplied buffer.
	KindInsufficientOutput
	// KindInvalidInput means the DEFLATE or puff stream is malformed:
	// an oversubscribed Huffman code, an illegal symbol, a mismatched
	// LEN/NLEN pair, and so on.
	KindInvalidInput
)

func (k Kind) String() string {
	switch k {
	case KindInsufficientInput:
		return "insufficient input"
	case KindInsufficientOutput:
		return "insufficient output"
	case KindInvalidInput:
		return "invalid input"
	default:
		return "unknown"
	}
}

// Error is the error type returned by every puffin transcoding operation.
// It carries the byte offset into whichever stream triggered it, so a
// caller can report exactly where a patch pair diverged.
type Error struct {
	Kind   Kind
	Offset int64
	Msg    string
}

func (e *Error) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("puffin: %s at offset %d: %s", e.Kind, e.Offset, e.Msg)
	}
	return fmt.Sprintf("puffin: %s: %s", e.Kind, e.Msg)
}

func newError(kind Kind, offset int64, msg string) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: msg}
}

var (
	// ErrCorrupt is a sentinel InvalidInput error used internally where no
	// offset is known yet; callers should match on Kind rather than on
	// this specific value.
	ErrCorrupt = &Error{Kind: KindInvalidInput, Offset: -1, Msg: "stream is corrupted"}
)

// Logger receives the one diagnostic message puffin ever emits outside of
// the error path (see the dynamic-block degenerate-code-lengths note in
// the design doc). It defaults to the standard logger; tests and
// embedders may override it to silence or capture the message.
var Logger = log.New(log.Writer(), "puffin: ", log.LstdFlags)

// errRecover is installed via defer at every public entry point. Internal
// decode/encode steps signal failure by panicking with an error value
// (usually an *Error); errRecover turns any such error into the returned
// error and re-panics runtime errors and non-error values, exactly as the
// teacher's flate.Reader does with its own errRecover helper.
func errRecover(err *error) {
	switch ex := recover().(type) {
	case nil:
		// Do nothing.
	case runtime.Error:
		panic(ex)
	case *Error:
		*err = ex
	case error:
		*err = ex
	default:
		panic(ex)
	}
}
