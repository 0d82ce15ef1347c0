package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
)

// MarshalRecords encodes records as a JSON array of objects. Keys named in
// columns come first, in that order; any other keys follow sorted.
func MarshalRecords(records []Record, columns []string) ([]byte, error) {
	if records == nil {
		return []byte("[]"), nil
	}
	if columns == nil {
		return json.Marshal(records)
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, rec := range records {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeRecord(&buf, rec, columns); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func writeRecord(buf *bytes.Buffer, rec Record, columns []string) error {
	keys := make([]string, 0, len(rec))
	for _, c := range columns {
		if _, ok := rec[c]; ok {
			keys = append(keys, c)
		}
	}
	if len(keys) < len(rec) {
		var rest []string
		for k := range rec {
			if !slices.Contains(columns, k) {
				rest = append(rest, k)
			}
		}
		slices.Sort(rest)
		keys = append(keys, rest...)
	}

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(rec[k])
		if err != nil {
			return fmt.Errorf("marshal %q: %w", k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return nil
}
