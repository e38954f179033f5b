package export

import (
	"fmt"
	"sort"

	"github.com/xuri/excelize/v2"
)

// Sheet names.
const (
	SheetAll     = "All Documents"
	SheetMonthly = "Monthly Summary"
	SheetReview  = "Review Needed"
	SheetStats   = "System Stats"
)

// WriteWorkbook renders rows into an xlsx workbook at path. Dev mode adds
// diagnostic columns and the System Stats sheet.
func WriteWorkbook(path string, rows []Row, dev bool) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", SheetAll); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}
	w := &sheetWriter{f: f, header: header}

	allHeaders := []any{"Date", "Category", "Merchant", "Amount", "Currency", "Summary", "Source File", "Notes"}
	if dev {
		allHeaders = append(allHeaders, "Hash", "Confidence", "Processing Time (s)", "Tokens", "Model")
	}
	all := [][]any{allHeaders}
	review := [][]any{{"Date", "Merchant", "Amount", "Source File", "Notes"}}
	if dev {
		review[0] = append(review[0], "Hash")
	}
	for _, row := range rows {
		r := row.Result
		notes := ""
		if r.IsReviewNeeded {
			notes = r.ReviewReason
		}
		line := []any{r.DocDate, r.DocType, r.Merchant, amountCell(row), r.Currency, r.Summary, row.SourceName, notes}
		if dev {
			line = append(line, row.Hash, r.Confidence, r.ProcessingTime, r.TokenUsage.TotalTokens, r.Model)
		}
		all = append(all, line)
		if r.IsReviewNeeded {
			reviewLine := []any{r.DocDate, r.Merchant, amountCell(row), row.SourceName, r.ReviewReason}
			if dev {
				reviewLine = append(reviewLine, row.Hash)
			}
			review = append(review, reviewLine)
		}
	}
	if err := w.write(SheetAll, all, []float64{12, 14, 28, 12, 10, 48, 32, 32}); err != nil {
		return err
	}
	if err := w.create(SheetMonthly, monthlySummary(rows), []float64{12}); err != nil {
		return err
	}
	if err := w.create(SheetReview, review, []float64{12, 28, 12, 32, 40}); err != nil {
		return err
	}
	if dev {
		stats := [][]any{{"Hash", "Processing Time (s)", "Tokens In", "Tokens Out", "Confidence", "Model"}}
		for _, row := range rows {
			r := row.Result
			stats = append(stats, []any{row.Hash, r.ProcessingTime, r.TokenUsage.PromptTokens, r.TokenUsage.CandidatesTokens, r.Confidence, r.Model})
		}
		if err := w.create(SheetStats, stats, []float64{66, 18}); err != nil {
			return err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return writeAtomic(path, buf.Bytes())
}

func amountCell(row Row) any {
	if row.Result.TotalAmount == nil {
		return nil
	}
	return *row.Result.TotalAmount
}

// monthlySummary pivots amounts into month rows and category columns.
// Undated documents are left out.
func monthlySummary(rows []Row) [][]any {
	sums := map[string]map[string]float64{}
	categorySet := map[string]struct{}{}
	for _, row := range rows {
		month := row.Result.Month()
		if month == "" {
			continue
		}
		if sums[month] == nil {
			sums[month] = map[string]float64{}
		}
		sums[month][row.Result.DocType] += row.Result.Amount()
		categorySet[row.Result.DocType] = struct{}{}
	}
	months := make([]string, 0, len(sums))
	for month := range sums {
		months = append(months, month)
	}
	sort.Strings(months)
	categories := make([]string, 0, len(categorySet))
	for category := range categorySet {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	header := []any{"Month"}
	for _, category := range categories {
		header = append(header, category)
	}
	out := [][]any{header}
	for _, month := range months {
		line := []any{month}
		for _, category := range categories {
			line = append(line, sums[month][category])
		}
		out = append(out, line)
	}
	return out
}

type sheetWriter struct {
	f      *excelize.File
	header int
}

func (w *sheetWriter) create(sheet string, rows [][]any, widths []float64) error {
	if _, err := w.f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	return w.write(sheet, rows, widths)
}

func (w *sheetWriter) write(sheet string, rows [][]any, widths []float64) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if err := w.f.SetRowStyle(sheet, 1, 1, w.header); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	for i, width := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := w.f.SetColWidth(sheet, col, col, width); err != nil {
			return fmt.Errorf("size %s column %s: %w", sheet, col, err)
		}
	}
	return w.f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
}
