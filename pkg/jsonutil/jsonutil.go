// Package jsonutil wraps github.com/go-json-experiment/json for report
// and config encoding.
//
// Byte slices in frames and remainders are raw wire data, so callers
// render them as strings before encoding; jsonutil does not special-case
// them.
package jsonutil

import (
	"io"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
)

// Unmarshal parses data into v. Unknown fields are rejected so typos in
// hand-written documents surface early.
func Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v, json.RejectUnknownMembers(true))
}

// Marshal returns the compact encoding of v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true))
}

// MarshalIndent returns the encoding of v indented by indent.
func MarshalIndent(v any, indent string) ([]byte, error) {
	return json.Marshal(v, json.Deterministic(true), jsontext.WithIndent(indent))
}

// Valid reports whether data is a single valid JSON value.
func Valid(data []byte) bool {
	return jsontext.Value(data).IsValid()
}

// Encoder writes one JSON value per line, like encoding/json.Encoder.
type Encoder struct {
	w      io.Writer
	indent string
}

// NewEncoder creates an encoder that writes to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// SetIndent indents every subsequent value by indent.
func (e *Encoder) SetIndent(indent string) {
	e.indent = indent
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error {
	opts := []json.Options{json.Deterministic(true)}
	if e.indent != "" {
		opts = append(opts, jsontext.WithIndent(e.indent))
	}
	if err := json.MarshalWrite(e.w, v, opts...); err != nil {
		return err
	}
	_, err := e.w.Write([]byte{'\n'})
	return err
}
