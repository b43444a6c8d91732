package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	internalErrors "github.com/irevoire/minisearch/internal/errors"
)

// DocID is the 32-bit unsigned identifier of a document within the index.
type DocID = uint32

// Document is a free-form JSON object. Top-level key order is preserved
// across unmarshal/marshal because document identification depends on it:
// the docid comes from the first top-level field whose key contains "id",
// and Go maps do not remember insertion order.
//
// Nested values are stored as plain decoded JSON (map[string]interface{},
// []interface{}, json.Number, string, bool, nil).
type Document struct {
	keys   []string
	fields map[string]interface{}
}

// UnmarshalJSON decodes a JSON object token by token so the top-level key
// order of the input survives. Numbers are kept as json.Number so their
// literal text survives a round trip without float rounding, and so
// DocID can parse integer ids from their digits.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("document must be a JSON object, got %v", tok)
	}

	d.keys = nil
	d.fields = make(map[string]interface{})

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to decode document key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("document key must be a string, got %v", keyTok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("failed to decode value of field %q: %w", key, err)
		}

		if _, seen := d.fields[key]; !seen {
			d.keys = append(d.keys, key)
		}
		d.fields[key] = value
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("failed to decode document: %w", err)
	}
	return nil
}

// MarshalJSON writes the fields back in their original top-level order.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		encodedKey, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(encodedKey)
		buf.WriteByte(':')
		encodedValue, err := json.Marshal(d.fields[key])
		if err != nil {
			return nil, fmt.Errorf("failed to encode value of field %q: %w", key, err)
		}
		buf.Write(encodedValue)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// DocID returns the document identifier: the value of the first top-level
// field whose key contains the substring "id". The value must be an unsigned
// 32-bit integer or a string that parses as one.
func (d Document) DocID() (DocID, error) {
	for _, key := range d.keys {
		if !strings.Contains(key, "id") {
			continue
		}
		id, err := parseDocID(d.fields[key])
		if err != nil {
			return 0, internalErrors.NewInvalidDocIDError(key, fmt.Sprintf("%v", d.fields[key]))
		}
		return id, nil
	}
	return 0, internalErrors.NewMissingDocIDError(d.String())
}

func parseDocID(value interface{}) (DocID, error) {
	switch v := value.(type) {
	case json.Number:
		id, err := strconv.ParseUint(v.String(), 10, 32)
		if err != nil {
			return 0, err
		}
		return DocID(id), nil
	case string:
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, err
		}
		return DocID(id), nil
	default:
		return 0, fmt.Errorf("unsupported docid type %T", value)
	}
}

// StringFields returns every string value reachable anywhere in the document,
// descending into arrays and nested objects. Numbers, booleans and nulls
// never contribute, which is how numeric ids avoid indexing themselves.
func (d Document) StringFields() []string {
	var out []string
	for _, key := range d.keys {
		out = appendStringValues(out, d.fields[key])
	}
	return out
}

func appendStringValues(out []string, value interface{}) []string {
	switch v := value.(type) {
	case string:
		out = append(out, v)
	case []interface{}:
		for _, element := range v {
			out = appendStringValues(out, element)
		}
	case map[string]interface{}:
		for _, element := range v {
			out = appendStringValues(out, element)
		}
	}
	return out
}

// String renders the document as compact JSON, mostly for error messages.
func (d Document) String() string {
	data, err := d.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<unencodable document: %v>", err)
	}
	return string(data)
}
