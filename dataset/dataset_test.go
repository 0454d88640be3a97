package dataset

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func TestReadCSVStripsBOMAndPadsRows(t *testing.T) {
	input := "\xEF\xBB\xBFLoanID, Gender ,Income\nLP001,Male,5849\nLP002,Female\n\n"
	ds, err := ReadCSV(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(ds.Columns, "|"); got != "LoanID|Gender|Income" {
		t.Fatalf("unexpected columns: %s", got)
	}
	if ds.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", ds.Len())
	}
	if ds.Rows[1][2] != "" {
		t.Fatalf("expected padded empty cell, got %q", ds.Rows[1][2])
	}
}

func TestReadCSVKeepsEmptyRowsAndRawCells(t *testing.T) {
	input := "\n,,\nLoanID,Gender,Income\nLP001, Male ,5849\n,,\nLP002,Female,\n"
	ds, err := ReadCSV(strings.NewReader(input), Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(ds.Columns, "|"); got != "LoanID|Gender|Income" {
		t.Fatalf("unexpected columns: %s", got)
	}
	if ds.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", ds.Len())
	}
	if ds.Rows[0][1] != " Male " {
		t.Fatalf("expected cell kept as read, got %q", ds.Rows[0][1])
	}
	if strings.Join(ds.Rows[1], "") != "" {
		t.Fatalf("expected empty row, got %v", ds.Rows[1])
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "empty", input: ""},
		{name: "duplicate header", input: "a,a\n1,2\n"},
		{name: "empty header cell", input: "a,,b\n1,2,3\n"},
		{name: "long row", input: "a,b\n1,2,3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadCSV(strings.NewReader(tt.input), Options{}); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestReadCSVDecodesCharset(t *testing.T) {
	encoded, err := charmap.Windows1252.NewEncoder().String("Name,City\nJosé,Zürich\n")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ds, err := ReadCSV(strings.NewReader(encoded), Options{Encoding: "windows-1252"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ds.Rows[0][0] != "José" || ds.Rows[0][1] != "Zürich" {
		t.Fatalf("unexpected decoded row: %v", ds.Rows[0])
	}

	if _, err := ReadCSV(strings.NewReader(encoded), Options{Encoding: "klingon"}); err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		values []string
		want   bool
	}{
		{values: []string{"1", "2.5", "-3"}, want: true},
		{values: []string{"1", "", "3"}, want: true},
		{values: []string{"1", "NA", "N/A", " null ", "3"}, want: true},
		{values: []string{"NA", "NaN"}, want: false},
		{values: []string{"", ""}, want: false},
		{values: []string{"1", "3+"}, want: false},
		{values: []string{"Y", "N"}, want: false},
	}
	for _, tt := range tests {
		if got := IsNumeric(tt.values); got != tt.want {
			t.Errorf("IsNumeric(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}
}

func TestAppendColumnKeepsOriginal(t *testing.T) {
	ds := &Dataset{Columns: []string{"id", "x"}, Rows: [][]string{{"a", "1"}, {"b", "2"}}}
	out, err := ds.AppendColumn("pred", []string{"Y", "N"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ds.Columns) != 2 || len(ds.Rows[0]) != 2 {
		t.Fatal("receiver was modified")
	}
	if out.Columns[2] != "pred" || out.Rows[1][2] != "N" {
		t.Fatalf("unexpected result: %+v", out)
	}
	if _, err := ds.AppendColumn("x", []string{"1", "2"}); err == nil {
		t.Fatal("expected error for duplicate column")
	}
	if _, err := ds.AppendColumn("y", []string{"1"}); err == nil {
		t.Fatal("expected error for length mismatch")
	}
}

func TestWriteAndReadBack(t *testing.T) {
	ds := &Dataset{
		Columns: []string{"LoanID", "Gender", "PredictedLoanStatus"},
		Rows:    [][]string{{"LP001", "Male", "Y"}, {"LP002", "Female, Jr", "N"}},
	}
	for _, name := range []string{"out.csv", "out.xlsx"} {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, name)
			if err := Write(path, ds); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			back, err := Read(path, Options{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if strings.Join(back.Columns, "|") != strings.Join(ds.Columns, "|") {
				t.Fatalf("unexpected columns: %v", back.Columns)
			}
			if back.Len() != ds.Len() || back.Rows[1][1] != "Female, Jr" {
				t.Fatalf("unexpected rows: %v", back.Rows)
			}
			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(entries) != 1 {
				t.Fatalf("expected only the output file, found %d entries", len(entries))
			}
		})
	}
}

func TestWriteRejectsUnknownExtension(t *testing.T) {
	err := Write(filepath.Join(t.TempDir(), "out.parquet"), &Dataset{Columns: []string{"a"}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	ds := &Dataset{Columns: []string{"a", "b"}, Rows: [][]string{{"1", "2"}}}
	if err := WriteCSV(&buf, ds); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if buf.String() != "a,b\n1,2\n" {
		t.Fatalf("unexpected csv: %q", buf.String())
	}
}
