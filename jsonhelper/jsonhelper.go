// Package jsonhelper loads JSON configuration files strictly.
package jsonhelper

import (
	"encoding/json"
	"errors"
	"io"
	"os"
)

// DecodeDisallowUnknownFields decodes a single JSON value from r into v,
// rejecting unknown fields and trailing data.
func DecodeDisallowUnknownFields(r io.Reader, v any) error {
	d := json.NewDecoder(r)
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return err
	}
	if _, err := d.Token(); err != io.EOF {
		return errors.New("unexpected data after top-level JSON value")
	}
	return nil
}

// OpenAndDecodeDisallowUnknownFields opens the file at path and decodes it into v,
// disallowing unknown fields.
func OpenAndDecodeDisallowUnknownFields(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return DecodeDisallowUnknownFields(f, v)
}
