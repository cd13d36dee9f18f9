// Package export renders tabular data such as gradebooks into downloadable files.
package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format is a supported output format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ErrNoColumns is returned for tables without headers.
var ErrNoColumns = errors.New("export requires at least one column")

// Table is an ordered grid. Rows shorter than Headers are padded with blanks.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer turns a table into file bytes.
type Renderer interface {
	Render(t Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ParseFormat accepts "csv" or "pdf" in any case.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatCSV, FormatPDF:
		return f, nil
	case "":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// For returns the renderer of f.
func For(f Format) Renderer {
	if f == FormatPDF {
		return NewPDFExporter()
	}
	return NewCSVExporter()
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
