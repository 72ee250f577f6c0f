// Package codec converts between document bytes and parameter sets.
//
// The persisted format is a single UTF-8 JSON object whose values are all
// numbers, written with 2-space indentation and keys in parameter order.
// Values must fit a float64: a number such as 1e400 that overflows it makes
// the whole document malformed rather than being clamped to infinity.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/micro-nova/slidered/internal/models"
)

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrMalformedDocument, fmt.Sprintf(format, args...))
}

// Decode parses document bytes. A leading UTF-8 byte order mark is ignored.
// Duplicate keys keep their first position and their last value. Numbers
// outside the float64 range are malformed.
func Decode(data []byte) (*models.Params, error) {
	if !utf8.Valid(data) {
		return nil, malformed("not valid UTF-8")
	}
	data, err := unicode.UTF8BOM.NewDecoder().Bytes(data)
	if err != nil {
		return nil, malformed("decode text: %v", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, malformed("%v", syntaxErr(err))
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, malformed("top-level value is not an object")
	}

	params := models.NewParams()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, malformed("%v", syntaxErr(err))
		}
		key, ok := tok.(string)
		if !ok {
			return nil, malformed("expected object key, got %v", tok)
		}
		if key == "" {
			return nil, malformed("empty parameter name")
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, malformed("%v", syntaxErr(err))
		}
		num, ok := tok.(json.Number)
		if !ok {
			return nil, malformed("value of %q is not a number", key)
		}
		v, err := num.Float64()
		if err != nil {
			return nil, malformed("value of %q: %v", key, err)
		}
		params.Set(key, v)
	}

	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, malformed("%v", syntaxErr(err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, malformed("trailing data after object")
	}
	return params, nil
}

func syntaxErr(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}

// Encode serializes params as pretty-printed JSON.
func Encode(params *models.Params) ([]byte, error) {
	if params.Len() == 0 {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	buf.WriteString("{\n")
	var encErr error
	i := 0
	params.Each(func(key string, value float64) {
		if encErr != nil {
			return
		}
		k, err := marshal(key)
		if err != nil {
			encErr = err
			return
		}
		v, err := marshal(value)
		if err != nil {
			encErr = fmt.Errorf("value of %q: %w", key, err)
			return
		}
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  ")
		buf.Write(k)
		buf.WriteString(": ")
		buf.Write(v)
		i++
	})
	if encErr != nil {
		return nil, encErr
	}
	buf.WriteString("\n}")
	return buf.Bytes(), nil
}

// marshal encodes v without HTML escaping and without the trailing newline
// json.Encoder appends.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
