package report

import (
	"strings"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Report"

// ExportToExcel writes the output as a single sheet workbook: an optional
// title row, an optional header group row, the column headers, the rows and
// then the totals.
func ExportToExcel(out *Output, title, filename string) ([]byte, string, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, "", err
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	boldStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})

	row := 1
	if title != "" {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		f.SetCellValue(sheetName, cell, title)
		f.SetCellStyle(sheetName, cell, cell, boldStyle)
		row++
	}

	if len(out.HeaderGroups) > 0 {
		for _, g := range out.HeaderGroups {
			first, _ := excelize.CoordinatesToCellName(g.Start+1, row)
			last, _ := excelize.CoordinatesToCellName(g.Start+g.Span, row)
			f.SetCellValue(sheetName, first, g.Title.Default)
			if g.Span > 1 {
				_ = f.MergeCell(sheetName, first, last)
			}
			f.SetCellStyle(sheetName, first, last, headerStyle)
		}
		row++
	}

	for i, col := range out.Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		header := col.Title.Default
		if header == "" {
			header = col.Name
		}
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}
	row++

	writeRows := func(it *RowIterator, style int) {
		for r, ok := it.Next(); ok; r, ok = it.Next() {
			for colIdx, v := range r.Values(out.Columns) {
				cell, _ := excelize.CoordinatesToCellName(colIdx+1, row)
				f.SetCellValue(sheetName, cell, v)
				if style != 0 {
					f.SetCellStyle(sheetName, cell, cell, style)
				}
			}
			row++
		}
	}
	writeRows(out.Rows(), 0)
	writeRows(out.Totals(), boldStyle)

	for i := range out.Columns {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheetName, col, col, 15)
	}

	buffer, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", err
	}

	xlsxFilename := filename
	if !strings.HasSuffix(xlsxFilename, ".xlsx") {
		xlsxFilename += ".xlsx"
	}
	return buffer.Bytes(), xlsxFilename, nil
}
