package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

// EncodeJSONRecords renders t as a JSON array with one object per row. Keys
// keep the column order and missing cells are written as null.
func EncodeJSONRecords(t *Table) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for r, row := range t.Rows {
		if r > 0 {
			buf.WriteByte(',')
		}
		buf.WriteByte('{')
		for i, col := range t.Columns {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			var cell any
			if i < len(row) {
				cell = row[i]
			}
			v, err := json.Marshal(cell)
			if err != nil {
				return nil, fmt.Errorf("row %d column %q: %w", r, col, err)
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
		buf.WriteByte('}')
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

type schemaField struct {
	Tag    string        `json:"Tag"`
	Fields []schemaField `json:"Fields,omitempty"`
}

func parquetSchema(columns []string) (string, error) {
	root := schemaField{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for _, c := range columns {
		root.Fields = append(root.Fields, schemaField{
			Tag: fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", c),
		})
	}
	b, err := json.Marshal(root)
	return string(b), err
}

// EncodeParquet writes t as a SNAPPY compressed parquet file with every column
// stored as an optional UTF8 string.
func EncodeParquet(t *Table) ([]byte, error) {
	schema, err := parquetSchema(t.Columns)
	if err != nil {
		return nil, err
	}

	pf := buffer.NewBufferFile()
	pw, err := writer.NewJSONWriter(schema, pf, 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for r, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) && row[i] != nil {
				record[col] = fmt.Sprint(row[i])
			} else {
				record[col] = nil
			}
		}
		b, err := json.Marshal(record)
		if err != nil {
			return nil, err
		}
		if err := pw.Write(string(b)); err != nil {
			return nil, fmt.Errorf("error writing record %d: %w", r, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return nil, fmt.Errorf("error in WriteStop: %w", err)
	}
	return pf.Bytes(), nil
}

// Encode renders t in format. CSV output is not produced.
func Encode(format Format, t *Table) ([]byte, error) {
	switch format {
	case JSON:
		return EncodeJSONRecords(t)
	case Parquet:
		return EncodeParquet(t)
	default:
		return nil, NewErrUnsupported(string(format))
	}
}
