// Package report writes trade history to spreadsheets.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"signal-trade-bot-go/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	tradesSheet    = "Trades"
	snapshotsSheet = "Snapshots"
	summarySheet   = "Summary"
)

var (
	tradeHeaders    = []string{"ID", "Symbol", "Side", "Quantity", "Entry", "Exit", "Stop Loss", "Take Profit", "Status", "PnL", "PnL %", "Opened", "Closed"}
	snapshotHeaders = []string{"Recorded", "Total Balance", "Available", "Unrealized PnL", "Open Positions", "Daily PnL"}
)

type styles struct {
	header   int
	money    int
	positive int
	negative int
}

// ExportWorkbook writes trades and snapshots to an xlsx file at path.
func ExportWorkbook(trades []models.Trade, snapshots []models.PortfolioSnapshot, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(snapshotsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	st, err := createStyles(fx)
	if err != nil {
		return err
	}
	if err := writeTrades(fx, trades, st); err != nil {
		return err
	}
	if err := writeSnapshots(fx, snapshots, st); err != nil {
		return err
	}
	if err := writeSummary(fx, trades, st); err != nil {
		return err
	}
	return fx.SaveAs(path)
}

func createStyles(fx *excelize.File) (styles, error) {
	var st styles
	var err error
	border := []excelize.Border{
		{Type: "left", Color: "E0E0E0", Style: 1},
		{Type: "right", Color: "E0E0E0", Style: 1},
		{Type: "bottom", Color: "E0E0E0", Style: 1},
	}

	st.header, err = fx.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return st, err
	}
	st.money, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Border: border})
	if err != nil {
		return st, err
	}
	st.positive, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Border: border, Font: &excelize.Font{Color: "008000"}})
	if err != nil {
		return st, err
	}
	st.negative, err = fx.NewStyle(&excelize.Style{NumFmt: 4, Border: border, Font: &excelize.Font{Color: "FF0000"}})
	return st, err
}

func writeHeader(fx *excelize.File, sheet string, headers []string, st styles) error {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := fx.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return fx.SetCellStyle(sheet, "A1", last, st.header)
}

func optional(p *float64) any {
	if p == nil {
		return ""
	}
	return *p
}

func writeTrades(fx *excelize.File, trades []models.Trade, st styles) error {
	if err := writeHeader(fx, tradesSheet, tradeHeaders, st); err != nil {
		return err
	}
	for i, t := range trades {
		row := i + 2
		closed := ""
		if t.ClosedAt != nil {
			closed = t.ClosedAt.UTC().Format("2006-01-02 15:04:05")
		}
		values := []any{
			t.ID, t.Symbol, t.Side, t.Quantity, t.EntryPrice, optional(t.ExitPrice),
			optional(t.StopLoss), optional(t.TakeProfit), string(t.Status),
			optional(t.PnL), optional(t.PnLPercent),
			t.OpenedAt.UTC().Format("2006-01-02 15:04:05"), closed,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(tradesSheet, cell, &values); err != nil {
			return err
		}
		if t.PnL != nil {
			style := st.positive
			if *t.PnL < 0 {
				style = st.negative
			}
			pnlCell, _ := excelize.CoordinatesToCellName(10, row)
			if err := fx.SetCellStyle(tradesSheet, pnlCell, pnlCell, style); err != nil {
				return err
			}
		}
	}
	return fx.SetColWidth(tradesSheet, "A", "M", 14)
}

func writeSnapshots(fx *excelize.File, snapshots []models.PortfolioSnapshot, st styles) error {
	if err := writeHeader(fx, snapshotsSheet, snapshotHeaders, st); err != nil {
		return err
	}
	for i, s := range snapshots {
		row := i + 2
		values := []any{
			s.RecordedAt.UTC().Format("2006-01-02 15:04:05"),
			s.TotalBalance, s.AvailableBalance, s.UnrealizedPnL, s.OpenPositions, s.DailyPnL,
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := fx.SetSheetRow(snapshotsSheet, cell, &values); err != nil {
			return err
		}
		from, _ := excelize.CoordinatesToCellName(2, row)
		to, _ := excelize.CoordinatesToCellName(4, row)
		if err := fx.SetCellStyle(snapshotsSheet, from, to, st.money); err != nil {
			return err
		}
	}
	return fx.SetColWidth(snapshotsSheet, "A", "F", 18)
}

func writeSummary(fx *excelize.File, trades []models.Trade, st styles) error {
	var closed, wins int
	var total float64
	for _, t := range trades {
		if t.Status != models.TradeStatusClosed {
			continue
		}
		closed++
		pnl := t.RealizedPnL()
		total += pnl
		if pnl > 0 {
			wins++
		}
	}
	winRate := 0.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed) * 100
	}

	rows := [][]any{
		{"Metric", "Value"},
		{"Trades", len(trades)},
		{"Closed trades", closed},
		{"Wins", wins},
		{"Win rate %", winRate},
		{"Realized PnL", total},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := fx.SetSheetRow(summarySheet, cell, &r); err != nil {
			return err
		}
	}
	if err := fx.SetCellStyle(summarySheet, "A1", "B1", st.header); err != nil {
		return err
	}
	return fx.SetColWidth(summarySheet, "A", "B", 18)
}
