package storage

import (
	"fmt"
	"strconv"

	"github.com/san-kum/gantrysim/internal/dynamo"
	"github.com/xuri/excelize/v2"
)

// writeXLSX stores a table on a single sheet named after the stream, with
// the same layout as the CSV file.
func writeXLSX(path, sheet string, table *dynamo.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	header := make([]interface{}, 0, len(table.Columns)+1)
	header = append(header, "time")
	for _, c := range table.Columns {
		header = append(header, c)
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		vals := make([]interface{}, 0, len(row)+1)
		vals = append(vals, table.Times[i])
		for _, v := range row {
			vals = append(vals, v)
		}
		if err := f.SetSheetRow(sheet, cell, &vals); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}
	return f.SaveAs(path)
}

// ReadXLSX loads a sheet written by Save back into a table.
func ReadXLSX(path, sheet string) (*dynamo.Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s: sheet %q is empty", path, sheet)
	}

	table := &dynamo.Table{Columns: rows[0][1:]}
	for i, row := range rows[1:] {
		vals := make([]float64, len(row))
		for j, field := range row {
			if vals[j], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, fmt.Errorf("%s: row %d: %w", path, i+2, err)
			}
		}
		if len(vals) == 0 {
			continue
		}
		if err := table.Append(vals[0], vals[1:]); err != nil {
			return nil, err
		}
	}
	return table, nil
}
