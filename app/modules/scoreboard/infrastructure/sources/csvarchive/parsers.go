package csvarchive

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RowParser splits a spreadsheet export into raw rows.
type RowParser interface {
	Rows(data []byte) ([][]string, error)
}

// RowParserFactory picks a RowParser for a file name.
type RowParserFactory interface {
	GetParser(filename string) (RowParser, error)
}

// Factory maps export file extensions to parsers.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// GetParser returns the parser for filename's extension.
func (f *Factory) GetParser(filename string) (RowParser, error) {
	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".csv", ".txt":
		return NewDelimitedParser(0), nil
	case ".tsv":
		return NewDelimitedParser('\t'), nil
	case ".xlsx":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("unsupported export type %q", ext)
	}
}

// DelimitedParser reads CSV-style text. A zero delimiter is detected from the data.
type DelimitedParser struct {
	delimiter rune
}

func NewDelimitedParser(delimiter rune) *DelimitedParser {
	return &DelimitedParser{delimiter: delimiter}
}

func (p *DelimitedParser) Rows(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	delimiter := p.delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read delimited file: %w", err)
		}
		rows = append(rows, record)
	}
	return rows, nil
}

var candidateDelimiters = []rune{',', '\t', ';'}

// detectDelimiter picks the most frequent candidate on the first non-comment line.
func detectDelimiter(data []byte) rune {
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		best, bestCount := ',', 0
		for _, d := range candidateDelimiters {
			if n := strings.Count(line, string(d)); n > bestCount {
				best, bestCount = d, n
			}
		}
		return best
	}
	return ','
}

// XLSXParser reads the first sheet of a workbook.
type XLSXParser struct{}

func NewXLSXParser() *XLSXParser {
	return &XLSXParser{}
}

func (p *XLSXParser) Rows(data []byte) ([][]string, error) {
	book, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer book.Close()

	sheets := book.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := book.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}
