package dataset

import (
	"bytes"
	_ "embed"
	"encoding/csv"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/YuminosukeSato/atomgo/pkg/errors"
)

// BuiltinName is the file name of the bundled dataset.
const BuiltinName = "weather_sample.csv"

//go:embed data/weather_sample.csv
var builtinCSV []byte

// Builtin parses the bundled weather dataset.
func Builtin() (*Dataset, error) {
	ds, err := ReadCSV(BuiltinName, bytes.NewReader(builtinCSV))
	if err != nil {
		return nil, errors.NewDataLoadError(BuiltinName, err)
	}
	return ds, nil
}

// Parse reads a CSV or XLSX file, chosen by the file extension.
// Unknown extensions are read as CSV.
func Parse(filename string, r io.Reader) (*Dataset, error) {
	var (
		ds  *Dataset
		err error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		ds, err = ReadXLSX(filename, r)
	default:
		ds, err = ReadCSV(filename, r)
	}
	if err != nil {
		return nil, errors.NewDataLoadError(filename, err)
	}
	return ds, nil
}

// ReadCSV parses comma separated data with a header row.
func ReadCSV(name string, r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read CSV")
	}
	return fromTable(name, records)
}

// ReadXLSX parses the first sheet of an Excel workbook.
func ReadXLSX(name string, r io.Reader) (*Dataset, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open Excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read sheet %q", sheets[0])
	}
	return fromTable(name, rows)
}

func fromTable(name string, records [][]string) (*Dataset, error) {
	// Drop fully blank trailing lines.
	for len(records) > 0 && blank(records[len(records)-1]) {
		records = records[:len(records)-1]
	}
	if len(records) < 2 {
		return nil, errors.New("file must have a header row and at least one data row")
	}
	if len(records[0]) < 2 {
		return nil, errors.New("file must have at least one feature column and a target column")
	}
	return FromRecords(name, records[0], records[1:])
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
