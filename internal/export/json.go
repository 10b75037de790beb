package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tyB-or/weibu-ipSearch/internal/domain"
	"github.com/tyB-or/weibu-ipSearch/internal/results"
)

var ErrNoDataBlock = errors.New("export: document has no data object")

// WriteJSON writes {"data": {ip: payload}} with keys in row order.
func WriteJSON(w io.Writer, rows []domain.ReputationRecord) error {
	var compact bytes.Buffer
	compact.WriteString(`{"data":{`)

	for i, rec := range rows {
		if i > 0 {
			compact.WriteByte(',')
		}
		key, err := marshalNoEscape(rec.IP)
		if err != nil {
			return err
		}
		value, err := marshalNoEscape(rec)
		if err != nil {
			return fmt.Errorf("export: encode %s: %w", rec.IP, err)
		}
		compact.Write(key)
		compact.WriteByte(':')
		compact.Write(value)
	}
	compact.WriteString("}}")

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "    "); err != nil {
		return fmt.Errorf("export: indent: %w", err)
	}
	out.WriteByte('\n')

	_, err := out.WriteTo(w)
	return err
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ReadJSON parses a document written by WriteJSON. Records come back in file
// order; a payload that does not decode fails the whole read.
func ReadJSON(r io.Reader) ([]domain.ReputationRecord, error) {
	dec := json.NewDecoder(r)

	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}

	var records []domain.ReputationRecord
	found := false
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		if key != "data" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, fmt.Errorf("export: skip %q: %w", key, err)
			}
			continue
		}

		found = true
		records, err = readData(dec)
		if err != nil {
			return nil, err
		}
	}

	if !found {
		return nil, ErrNoDataBlock
	}
	return records, nil
}

func readData(dec *json.Decoder) ([]domain.ReputationRecord, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("export: read data: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, ErrNoDataBlock
	}

	records := []domain.ReputationRecord{}
	for dec.More() {
		ip, err := readKey(dec)
		if err != nil {
			return nil, err
		}
		var payload json.RawMessage
		if err := dec.Decode(&payload); err != nil {
			return nil, fmt.Errorf("export: read %s: %w", ip, err)
		}
		rec, err := results.DecodeRecord(ip, payload)
		if err != nil {
			return nil, fmt.Errorf("export: decode %s: %w", ip, err)
		}
		records = append(records, rec)
	}

	if err := expectDelim(dec, '}'); err != nil {
		return nil, err
	}
	return records, nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("export: read key: %w", err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("export: unexpected token %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("export: read document: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != want {
		return fmt.Errorf("export: expected %q, got %v", want, tok)
	}
	return nil
}
