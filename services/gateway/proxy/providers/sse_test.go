// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderYieldsDataPayloads(t *testing.T) {
	body := "data: {\"a\":1}\n\n" +
		"event: ping\n" +
		"\n" +
		"data: {\"b\":2}\n\n" +
		"data: [DONE]\n\n"

	dec := NewDecoder(strings.NewReader(body))

	first, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(first))

	second, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"b":2}`, string(second))

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderDropsMalformedPayloads(t *testing.T) {
	body := "data: {broken\n\n" +
		"data: {\"ok\":true}\n\n" +
		"data: [DONE]\n\n"

	dec := NewDecoder(strings.NewReader(body))

	chunk, err := dec.Next()
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(chunk))

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestDecoderEOFWithoutDoneSentinel(t *testing.T) {
	dec := NewDecoder(strings.NewReader("data: {\"a\":1}\n\n"))

	_, err := dec.Next()
	require.NoError(t, err)

	_, err = dec.Next()
	assert.Equal(t, io.EOF, err)
}

func TestEncodeEventFraming(t *testing.T) {
	assert.Equal(t, "data: {\"x\":1}\n\n", EncodeEvent([]byte(`{"x":1}`)))
	assert.Equal(t, "data: [DONE]\n\n", EncodeDone())
}
