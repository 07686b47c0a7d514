package series

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/wonny/salescast/internal/contracts"
)

// containerKeys are the conventional keys a record list may be wrapped under
var containerKeys = []string{"sales_data", "data", "records", "items"}

// Field is one key/value pair of a record, in document order
type Field struct {
	Key   string
	Value json.RawMessage
}

// Record is a JSON object whose key order is preserved
type Record []Field

// Get returns the raw value of key
func (r Record) Get(key string) (json.RawMessage, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// DecodeRecords accepts a JSON array of objects, an object wrapping such an
// array under a conventional key, or a single flat object.
func DecodeRecords(data []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty document", contracts.ErrSchema)
	}

	switch trimmed[0] {
	case '[':
		return decodeArray(trimmed)
	case '{':
		var wrapper map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
		}
		for _, key := range containerKeys {
			raw, ok := wrapper[key]
			if ok && len(bytes.TrimSpace(raw)) > 0 && bytes.TrimSpace(raw)[0] == '[' {
				return decodeArray(raw)
			}
		}
		rec, err := decodeObject(json.NewDecoder(bytes.NewReader(trimmed)))
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported JSON structure", contracts.ErrSchema)
	}
}

func decodeArray(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return nil, fmt.Errorf("%w: expected array", contracts.ErrSchema)
	}

	var records []Record
	for dec.More() {
		rec, err := decodeObject(dec)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if _, err := dec.Token(); err != nil && err != io.EOF {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	return records, nil
}

// decodeObject reads the next object from dec keeping key order
func decodeObject(dec *json.Decoder) (Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: records must be JSON objects", contracts.ErrSchema)
	}

	var rec Record
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: invalid object key", contracts.ErrSchema)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
		}
		rec = append(rec, Field{Key: key, Value: value})
	}
	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrSchema, err)
	}
	return rec, nil
}
