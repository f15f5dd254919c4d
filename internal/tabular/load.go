package tabular

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"marketplace-profit-reconciler/pkg/errors"
	"marketplace-profit-reconciler/pkg/logger"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
)

// LoadFile parses a CSV or XLSX file into the tabular model. Unreadable or
// unparseable files are reported as UnopenableFile errors; the caller decides
// whether that is fatal for the run.
func LoadFile(path string) (*File, error) {
	log := logger.GetGlobalLogger().WithComponent("tabular").WithField("file", path)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		log.Debug("Loading CSV file")
		return loadCSV(path)
	case ".xlsx", ".xlsm":
		log.Debug("Loading XLSX workbook")
		return loadXLSX(path)
	default:
		return nil, errors.FileError(errors.CodeUnopenableFile, path, nil).
			WithSuggestion("supported formats are .csv, .xlsx and .xlsm")
	}
}

// loadCSV reads a CSV export. Marketplace order exports are usually UTF-8 but
// older tooling emits Latin-1; invalid UTF-8 triggers one decode retry.
func loadCSV(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeUnopenableFile, path, err)
	}

	if !utf8.Valid(raw) {
		logger.WithComponent("tabular").
			WithField("file", path).
			Warn("File is not valid UTF-8, retrying as Latin-1")

		decoded, decErr := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if decErr != nil {
			return nil, errors.FileError(errors.CodeUnopenableFile, path, decErr).
				WithSuggestion("save the file in UTF-8 encoding and try again")
		}
		raw = decoded
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.FileError(errors.CodeUnopenableFile, path, err).
				WithSuggestion("check that the file is a well-formed CSV and not open in Excel")
		}
		rows = append(rows, record)
	}

	sheetName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return &File{
		Path:   path,
		Sheets: []Sheet{{Name: sheetName, Rows: rows}},
	}, nil
}

// loadXLSX reads every sheet of a workbook. Sheet order is preserved because
// status precedence may depend on processing order.
func loadXLSX(path string) (*File, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, errors.FileError(errors.CodeUnopenableFile, path, err)
	}
	defer wb.Close()

	file := &File{Path: path}
	for _, name := range wb.GetSheetList() {
		rows, err := wb.GetRows(name)
		if err != nil {
			logger.WithComponent("tabular").
				WithFields(logger.Fields{"file": path, "sheet": name}).
				WithError(err).
				Warn("Failed to read sheet, skipping")
			continue
		}
		file.Sheets = append(file.Sheets, Sheet{Name: name, Rows: rows})
	}

	if len(file.Sheets) == 0 {
		return nil, errors.FileError(errors.CodeUnopenableFile, path, nil).
			WithSuggestion("the workbook contains no readable sheets")
	}

	return file, nil
}
