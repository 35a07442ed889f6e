package tabular

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"
)

// Decode parses payload according to format.
func Decode(format Format, payload []byte) (*Table, error) {
	var (
		t   *Table
		err error
	)
	switch format {
	case CSV:
		t, err = decodeCSV(payload)
	case JSON:
		t, err = decodeJSON(payload)
	case Parquet:
		t, err = decodeParquet(payload)
	default:
		return nil, NewErrUnsupported(string(format))
	}
	if err != nil {
		return nil, NewErrDecode(format, err)
	}
	return t, nil
}

func decodeCSV(payload []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(payload))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("no header row")
	}
	if err != nil {
		return nil, err
	}

	t := &Table{Columns: header}
	for line := 2; ; line++ {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		// Skip empty rows
		if len(record) == 0 || (len(record) == 1 && record[0] == "") {
			continue
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		row := make([]any, len(header))
		for i, cell := range record {
			row[i] = inferCell(cell)
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func inferCell(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "True", "true":
		return true
	case "False", "false":
		return false
	}
	return s
}

// decodeJSON accepts either a records array ([{"a":1}, ...]) or a column
// oriented object ({"a":{"0":1, ...}} or {"a":[1, ...]}). Column order is the
// order keys first appear in the document.
func decodeJSON(payload []byte) (*Table, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	var t *Table
	switch tok {
	case json.Delim('['):
		t, err = decodeRecords(dec)
	case json.Delim('{'):
		t, err = decodeColumns(dec)
	default:
		return nil, fmt.Errorf("unexpected token %v at top level", tok)
	}
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after document")
	}
	return t, nil
}

func decodeRecords(dec *json.Decoder) (*Table, error) {
	t := &Table{}
	for dec.More() {
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}
		row := make([]any, len(t.Columns))
		for dec.More() {
			key, err := objectKey(dec)
			if err != nil {
				return nil, err
			}
			var v any
			if err := dec.Decode(&v); err != nil {
				return nil, err
			}
			idx, ok := t.columnIndex(key)
			if !ok {
				idx = t.addColumn(key)
				row = append(row, nil)
			}
			row[idx] = normalize(v)
		}
		if err := expectDelim(dec, '}'); err != nil {
			return nil, err
		}
		t.Rows = append(t.Rows, row)
	}
	return t, expectDelim(dec, ']')
}

func decodeColumns(dec *json.Decoder) (*Table, error) {
	t := &Table{}
	rowIndex := make(map[string]int)

	for dec.More() {
		col, err := objectKey(dec)
		if err != nil {
			return nil, err
		}
		idx, ok := t.columnIndex(col)
		if !ok {
			idx = t.addColumn(col)
		}

		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		switch tok {
		case json.Delim('{'):
			for dec.More() {
				label, err := objectKey(dec)
				if err != nil {
					return nil, err
				}
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil, err
				}
				r, ok := rowIndex[label]
				if !ok {
					r = len(t.Rows)
					rowIndex[label] = r
					t.Rows = append(t.Rows, make([]any, len(t.Columns)))
				}
				t.Rows[r][idx] = normalize(v)
			}
			if err := expectDelim(dec, '}'); err != nil {
				return nil, err
			}
		case json.Delim('['):
			for r := 0; dec.More(); r++ {
				var v any
				if err := dec.Decode(&v); err != nil {
					return nil, err
				}
				label := strconv.Itoa(r)
				if _, ok := rowIndex[label]; !ok {
					rowIndex[label] = len(t.Rows)
					t.Rows = append(t.Rows, make([]any, len(t.Columns)))
				}
				t.Rows[rowIndex[label]][idx] = normalize(v)
			}
			if err := expectDelim(dec, ']'); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("column %q: expected object or array, saw %v", col, tok)
		}
	}
	return t, expectDelim(dec, '}')
}

func objectKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", err
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("expected object key, saw %v", tok)
	}
	return key, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, saw %v", want, tok)
	}
	return nil
}

// normalize turns json.Number into int64 or float64.
func normalize(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

// decodeParquet reads every row with a schema-less reader and reuses the JSON
// records path so column order follows the file schema.
func decodeParquet(payload []byte) (*Table, error) {
	pf := buffer.NewBufferFileFromBytes(payload)
	pr, err := reader.NewParquetReader(pf, nil, 4)
	if err != nil {
		return nil, err
	}
	defer pr.ReadStop()

	rows, err := pr.ReadByNumber(int(pr.GetNumRows()))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Table{}, nil
	}
	b, err := json.Marshal(rows)
	if err != nil {
		return nil, err
	}
	return decodeJSON(b)
}
