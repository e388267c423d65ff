package spreadsheet

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"reviewsentiment/internal/domain"
)

func assertReviews(t *testing.T, got []string, err error, want []string) {
	t.Helper()
	if err != nil {
		t.Fatalf("ReadReviews failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got reviews %q, want %q", got, want)
	}
}

func TestReadReviewsCSV(t *testing.T) {
	input := "id, Review ,stars\n" +
		"1,Great product,5\n" +
		"2,,3\n" +
		"3,\"Broke after a day, sadly\",1\n" +
		"4,   ,2\n" +
		"5\n" +
		"6,It's fine,3\n"

	reviews, err := ReadReviews("reviews.CSV", strings.NewReader(input))
	assertReviews(t, reviews, err, []string{"Great product", "Broke after a day, sadly", "It's fine"})
}

func TestReadReviewsCSVWithBOM(t *testing.T) {
	reviews, err := ReadReviews("bom.csv", strings.NewReader("\ufeffreview\nloved it\n"))
	assertReviews(t, reviews, err, []string{"loved it"})
}

func TestReadReviewsCSVFirstMatchingColumnWins(t *testing.T) {
	reviews, err := ReadReviews("dup.csv", strings.NewReader("REVIEW,review\nfirst,second\n"))
	assertReviews(t, reviews, err, []string{"first"})
}

func TestReadReviewsCSVKeepsMultilineCells(t *testing.T) {
	reviews, err := ReadReviews("multi.csv", strings.NewReader("review\n\"ok\n2. bad\"\nnext\n"))
	assertReviews(t, reviews, err, []string{"ok\n2. bad", "next"})
}

func TestReadReviewsXLSX(t *testing.T) {
	f := excelize.NewFile()
	t.Cleanup(func() { _ = f.Close() })
	sheet := f.GetSheetName(0)
	cells := map[string]string{
		"A1": "Product", "B1": "Review",
		"A2": "widget", "B2": "Works as advertised",
		"A3": "gadget",
		"A4": "gizmo", "B4": "Terrible support",
	}
	for cell, value := range cells {
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			t.Fatalf("set %s: %v", cell, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}

	reviews, err := ReadReviews("upload.xlsx", bytes.NewReader(buf.Bytes()))
	assertReviews(t, reviews, err, []string{"Works as advertised", "Terrible support"})
}

func TestReadReviewsUnsupportedFormat(t *testing.T) {
	for _, name := range []string{"notes.txt", "archive.xls", "noextension", "data.csv.bak"} {
		t.Run(name, func(t *testing.T) {
			_, err := ReadReviews(name, strings.NewReader("review\nx\n"))

			var unsupported *domain.UnsupportedFormatError
			if !errors.As(err, &unsupported) {
				t.Fatalf("expected UnsupportedFormatError, got %v", err)
			}
		})
	}
}

func TestReadReviewsMissingColumn(t *testing.T) {
	tests := map[string]string{
		"no review header": "id,comment\n1,nice\n",
		"empty file":       "",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadReviews("reviews.csv", strings.NewReader(input))

			var missing *domain.MissingColumnError
			if !errors.As(err, &missing) {
				t.Fatalf("expected MissingColumnError, got %v", err)
			}
			if err.Error() != "Missing 'Review' column or equivalent" {
				t.Fatalf("unexpected message: %q", err.Error())
			}
		})
	}
}

func TestReadReviewsCorruptWorkbook(t *testing.T) {
	_, err := ReadReviews("broken.xlsx", strings.NewReader("not a zip"))
	if err == nil || !strings.Contains(err.Error(), "broken.xlsx") {
		t.Fatalf("expected error naming the file, got %v", err)
	}
}

func TestExtension(t *testing.T) {
	ext, err := Extension("Q3 Reviews.XLSX")
	if err != nil || ext != "xlsx" {
		t.Fatalf("Extension(Q3 Reviews.XLSX) = %q, %v", ext, err)
	}

	_, err = Extension("reviews.json")
	if err == nil || err.Error() != `Unsupported file type "json"` {
		t.Fatalf("unexpected error for json: %v", err)
	}
}
