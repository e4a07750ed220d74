// Copyright 2024, The Puffin Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package puff

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarkerRoundTrip(t *testing.T) {
	cases := []struct {
		name   string
		final  bool
		typ    BlockType
		header []byte
		raw    []byte
	}{
		{"fixed-nonfinal", false, Fixed, nil, nil},
		{"fixed-final", true, Fixed, nil, nil},
		{"dynamic", false, Dynamic, []byte{0x12, 0x03, 0x0a, 0xff, 0x00}, nil},
		{"dynamic-empty-header", true, Dynamic, []byte{}, nil},
		{"uncompressed-empty", false, Uncompressed, nil, []byte{}},
		{"uncompressed-payload", true, Uncompressed, nil, []byte("hello, puff")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			var buf bytes.Buffer
			w := NewWriter(&buf)
			if c.typ == Uncompressed {
				require.NoError(t, w.PutUncompressed(c.final, c.raw))
			} else {
				require.NoError(t, w.PutMarker(c.final, c.typ, c.header))
			}

			r := NewReader(&buf)
			tok, err := r.ReadToken()
			require.NoError(t, err)
			require.Equal(t, KindMarker, tok.Kind)
			require.Equal(t, c.final, tok.Final)
			require.Equal(t, c.typ, tok.Type)
			if c.typ == Dynamic {
				require.Equal(t, c.header, tok.Header)
			}
			if c.typ == Uncompressed {
				require.Equal(t, c.raw, tok.Raw)
			}

			_, err = r.ReadToken()
			require.ErrorIs(t, err, io.EOF)
		})
	}
}

func TestLiteralRunSplitsAtMax(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	data := bytes.Repeat([]byte{'x'}, MaxLiteralRun+1)
	require.NoError(t, w.PutLiteral(data))

	r := NewReader(&buf)
	first, err := r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, KindLiteral, first.Kind)
	require.Len(t, first.Literal, MaxLiteralRun)

	second, err := r.ReadToken()
	require.NoError(t, err)
	require.Equal(t, KindLiteral, second.Kind)
	require.Len(t, second.Literal, 1)

	_, err = r.ReadToken()
	require.ErrorIs(t, err, io.EOF)
}

func TestCopyRoundTrip(t *testing.T) {
	cases := []struct {
		length, distance int
	}{
		{3, 1},
		{258, 32768},
		{10, 100},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := NewWriter(&buf)
		require.NoError(t, w.PutCopy(c.length, c.distance))

		r := NewReader(&buf)
		tok, err := r.ReadToken()
		require.NoError(t, err)
		require.Equal(t, KindCopy, tok.Kind)
		require.Equal(t, c.length, tok.Length)
		require.Equal(t, c.distance, tok.Distance)
	}
}

func TestTokenStreamSequence(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.PutMarker(false, Fixed, nil))
	require.NoError(t, w.PutLiteral([]byte("ab")))
	require.NoError(t, w.PutCopy(4, 2))
	require.NoError(t, w.PutMarker(true, Fixed, nil))

	r := NewReader(&buf)
	var kinds []Kind
	for {
		tok, err := r.ReadToken()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		kinds = append(kinds, tok.Kind)
	}
	require.Equal(t, []Kind{KindMarker, KindLiteral, KindCopy, KindMarker}, kinds)
}

func TestReadTokenCorruptTag(t *testing.T) {
	// Tag bytes 0-5 are markers, 6 is literal, 7 is copy; anything else
	// (here, the unused value 8) must be rejected.
	r := NewReader(bytes.NewReader([]byte{8}))
	_, err := r.ReadToken()
	require.Equal(t, ErrCorruptStream, err)
}
