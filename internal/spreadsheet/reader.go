package spreadsheet

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"reviewsentiment/internal/domain"
)

const (
	reviewColumn = "review"
	utf8BOM      = "\ufeff"
)

// Extension returns the lower-cased extension of filename without the dot,
// or an UnsupportedFormatError when it is not csv or xlsx.
func Extension(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	switch ext {
	case "csv", "xlsx":
		return ext, nil
	default:
		return "", &domain.UnsupportedFormatError{Ext: ext}
	}
}

// ReadReviews extracts the non-blank cells of the review column from a csv
// or xlsx upload, in row order.
func ReadReviews(filename string, r io.Reader) ([]string, error) {
	ext, err := Extension(filename)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch ext {
	case "csv":
		rows, err = readCSV(r)
	case "xlsx":
		rows, err = readXLSX(r)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}

	reviews, err := reviewCells(rows)
	if err != nil {
		return nil, err
	}
	slog.Debug("spreadsheet read", slog.String("file", filename), slog.Int("rows", len(rows)), slog.Int("reviews", len(reviews)))
	return reviews, nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func reviewCells(rows [][]string) ([]string, error) {
	if len(rows) == 0 {
		return nil, &domain.MissingColumnError{Column: "Review"}
	}

	col := -1
	for i, name := range rows[0] {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		if strings.ToLower(strings.TrimSpace(name)) == reviewColumn {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, &domain.MissingColumnError{Column: "Review"}
	}

	reviews := make([]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		// Short rows are how both formats represent trailing empty cells.
		if col >= len(row) || strings.TrimSpace(row[col]) == "" {
			continue
		}
		reviews = append(reviews, row[col])
	}
	return reviews, nil
}
