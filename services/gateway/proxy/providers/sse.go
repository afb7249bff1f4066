// Copyright (C) 2025 Aegis Labs (engineering@aegislabs.io)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package providers

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"
)

// doneSentinel terminates an SSE stream in the OpenAI wire dialect.
const doneSentinel = "[DONE]"

// Decoder reads OpenAI-style server-sent events from an upstream body.
// Lines without the "data: " prefix and payloads that fail to parse as
// JSON are dropped silently.
//
// Thread Safety: Not safe for concurrent use.
type Decoder struct {
	scanner *bufio.Scanner
	done    bool
}

// NewDecoder wraps an upstream response body.
func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	// Upstream chunks can carry long deltas; the default 64K token
	// limit is too small for large tool-call payloads.
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &Decoder{scanner: sc}
}

// Next returns the raw JSON of the next event. It returns io.EOF after
// the [DONE] sentinel or when the underlying stream ends.
func (d *Decoder) Next() (json.RawMessage, error) {
	if d.done {
		return nil, io.EOF
	}
	for d.scanner.Scan() {
		line := strings.TrimSpace(d.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == doneSentinel {
			d.done = true
			return nil, io.EOF
		}
		if !json.Valid([]byte(payload)) {
			continue
		}
		return json.RawMessage(payload), nil
	}
	if err := d.scanner.Err(); err != nil {
		return nil, err
	}
	d.done = true
	return nil, io.EOF
}

// EncodeEvent frames one chunk for the client: "data: <json>\n\n".
func EncodeEvent(payload json.RawMessage) string {
	return "data: " + string(payload) + "\n\n"
}

// EncodeDone frames the stream terminator.
func EncodeDone() string {
	return "data: " + doneSentinel + "\n\n"
}
