package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// XLSXSink writes one value per row of a single-column worksheet. Rows are
// streamed; the workbook is saved on Close.
type XLSXSink struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	path   string
	row    int
	closed bool
}

// NewXLSXSink creates a workbook at path. header, when set, becomes row 1.
func NewXLSXSink(path, sheet, header string) (*XLSXSink, error) {
	if sheet == "" {
		sheet = defaultSheet
	}

	f := excelize.NewFile()
	if sheet != defaultSheet {
		index, err := f.NewSheet(sheet)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %q: %w", sheet, err)
		}
		f.SetActiveSheet(index)
		if err := f.DeleteSheet(defaultSheet); err != nil {
			f.Close()
			return nil, fmt.Errorf("delete default sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create stream writer: %w", err)
	}

	s := &XLSXSink{file: f, stream: sw, path: path}

	if header != "" {
		if err := s.setRow(header); err != nil {
			f.Close()
			return nil, err
		}
	}

	return s, nil
}

// Write appends value as the next row.
func (s *XLSXSink) Write(ctx context.Context, value json.RawMessage) error {
	if err := s.setRow(cellValue(value)); err != nil {
		SinkErrors.WithLabelValues(string(TypeXLSX), "write").Inc()
		return err
	}
	SinkWrites.WithLabelValues(string(TypeXLSX)).Inc()
	return nil
}

// Flush is a no-op: rows are committed by the stream writer on Close.
func (s *XLSXSink) Flush(ctx context.Context) error {
	return nil
}

// Close finishes the stream and saves the workbook.
func (s *XLSXSink) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	defer s.file.Close()

	if err := s.stream.Flush(); err != nil {
		SinkErrors.WithLabelValues(string(TypeXLSX), "close").Inc()
		return fmt.Errorf("flush stream: %w", err)
	}
	if err := s.file.SaveAs(s.path); err != nil {
		SinkErrors.WithLabelValues(string(TypeXLSX), "close").Inc()
		return fmt.Errorf("save workbook %q: %w", s.path, err)
	}
	return nil
}

func (s *XLSXSink) setRow(v interface{}) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return fmt.Errorf("row %d: %w", s.row, err)
	}
	if err := s.stream.SetRow(cell, []interface{}{v}); err != nil {
		return fmt.Errorf("set row %d: %w", s.row, err)
	}
	return nil
}

// cellValue maps JSON scalars to native cell types. Objects and arrays are
// stored as their JSON text; null becomes an empty cell.
func cellValue(value json.RawMessage) interface{} {
	if isNull(value) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return string(value)
	}

	switch t := v.(type) {
	case string:
		return t
	case bool:
		return t
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return string(bytes.TrimSpace(value))
	}
}
