package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/ppiankov/kidregistry/internal/model"
)

const (
	SheetReports = "通報紀錄"
	SheetSummary = "統計"
)

var exportHeaders = []string{"編號", "被通報人姓名", "發生地點", "事件描述", "狀態", "審核備註", "通報時間", "更新時間"}

var exportWidths = []float64{10, 20, 20, 50, 12, 30, 20, 20}

var statusLabels = map[model.ReportStatus]string{
	model.ReportPending:   "待審核",
	model.ReportReviewing: "審核中",
	model.ReportApproved:  "已通過",
	model.ReportRejected:  "已駁回",
}

// StatusLabel is the display name of a status
func StatusLabel(s model.ReportStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

var taipei = func() *time.Location {
	if loc, err := time.LoadLocation("Asia/Taipei"); err == nil {
		return loc
	}
	return time.FixedZone("CST", 8*3600)
}()

// Workbook builds the export: one row per report plus a status summary sheet
func Workbook(reports []model.Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetReports); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"F59E0B"}},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	for i, h := range exportHeaders {
		if err := setCell(f, SheetReports, i+1, 1, h); err != nil {
			return nil, err
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetColWidth(SheetReports, col, col, exportWidths[i]); err != nil {
			return nil, fmt.Errorf("set column width: %w", err)
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(exportHeaders), 1)
	if err := f.SetCellStyle(SheetReports, "A1", last, header); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}

	counts := make(map[model.ReportStatus]int)
	for i, r := range reports {
		counts[r.Status]++
		location := r.Location
		if location == "" {
			location = "未提供"
		}
		row := []any{
			r.ID, r.SuspectName, location, r.Description, StatusLabel(r.Status), r.ReviewNote,
			r.CreatedAt.In(taipei).Format("2006-01-02 15:04:05"),
			r.UpdatedAt.In(taipei).Format("2006-01-02 15:04:05"),
		}
		for col, v := range row {
			if err := setCell(f, SheetReports, col+1, i+2, v); err != nil {
				return nil, err
			}
		}
	}
	if err := f.SetPanes(SheetReports, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return nil, fmt.Errorf("create summary sheet: %w", err)
	}
	if err := setCell(f, SheetSummary, 1, 1, "狀態"); err != nil {
		return nil, err
	}
	if err := setCell(f, SheetSummary, 2, 1, "數量"); err != nil {
		return nil, err
	}
	for i, s := range model.ReportStatuses {
		if err := setCell(f, SheetSummary, 1, i+2, StatusLabel(s)); err != nil {
			return nil, err
		}
		if err := setCell(f, SheetSummary, 2, i+2, counts[s]); err != nil {
			return nil, err
		}
	}
	totalRow := len(model.ReportStatuses) + 2
	if err := setCell(f, SheetSummary, 1, totalRow, "總計"); err != nil {
		return nil, err
	}
	if err := setCell(f, SheetSummary, 2, totalRow, len(reports)); err != nil {
		return nil, err
	}
	return f, nil
}

// WriteWorkbook builds the export and writes it to w
func WriteWorkbook(w io.Writer, reports []model.Report) error {
	f, err := Workbook(reports)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value any) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellValue(sheet, cell, value)
}
