package services

import (
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/orientation"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// pdfIndexSpan is the grid width of the leading "#" column.
const pdfIndexSpan = 1

// GeneratePDF renders one concentration sheet as a PDF using maroto/v2. The
// grid is sized to the visible columns so hidden ones leave no gap.
func GeneratePDF(data SheetExportData) ([]byte, error) {
	grid := pdfIndexSpan
	for _, c := range data.Columns {
		grid += pdfSpan(c)
	}

	cfg := config.NewBuilder().
		WithOrientation(orientation.Horizontal).
		WithPageSize(pagesize.A4).
		WithMaxGridSize(grid).
		WithLeftMargin(10).
		WithTopMargin(10).
		WithRightMargin(10).
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    7,
			Color:   &props.Color{Red: 120, Green: 120, Blue: 120},
		}).
		Build()

	m := maroto.New(cfg)

	addHeader(m, data, grid)
	addTableHeader(m, data.Columns)
	for i, e := range data.Rows {
		addTableRow(m, data, i+1, e)
	}
	addTotals(m, data)
	addFooter(m, data, grid)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func pdfSpan(c Column) int {
	switch c {
	case ColDescription:
		return 4
	case ColNotes:
		return 3
	}
	return 2
}

// addHeader adds the title, item line, project info and the stale notice.
func addHeader(m core.Maroto, data SheetExportData, grid int) {
	grey := &props.Color{Red: 80, Green: 80, Blue: 80}
	left := grid / 2
	right := grid - left

	m.AddRows(
		row.New(12).Add(
			col.New(grid).Add(
				text.New(data.Title, props.Text{
					Size:  16,
					Style: fontstyle.Bold,
					Align: align.Center,
				}),
			),
		),
	)

	m.AddRows(
		row.New(7).Add(
			col.New(left).Add(
				text.New(data.ItemLine(), props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Left}),
			),
			col.New(right).Add(
				text.New(data.ContractLine(), props.Text{Size: 9, Align: align.Right}),
			),
		),
	)

	pairs := [][2]string{
		{"Project: " + data.Info.ProjectName, "Contract No: " + data.Info.ContractNo},
		{"Contractor in charge: " + data.Info.ContractorInCharge, "Developer: " + data.Info.DeveloperName},
	}
	for _, p := range pairs {
		m.AddRows(
			row.New(6).Add(
				col.New(left).Add(text.New(p[0], props.Text{Size: 8, Align: align.Left, Color: grey})),
				col.New(right).Add(text.New(p[1], props.Text{Size: 8, Align: align.Right, Color: grey})),
			),
		)
	}

	if notice := data.StaleNotice(); notice != "" {
		m.AddRows(
			row.New(7).Add(
				col.New(grid).Add(
					text.New(notice, props.Text{
						Size:  8,
						Style: fontstyle.Bold,
						Align: align.Center,
						Color: &props.Color{Red: 156, Green: 0, Blue: 6},
					}),
				).WithStyle(&props.Cell{BackgroundColor: &props.Color{Red: 255, Green: 199, Blue: 206}}),
			),
		)
	}

	m.AddRows(row.New(4))
}

// addTableHeader adds the header row for the visible columns only.
func addTableHeader(m core.Maroto, cols ColumnSelection) {
	headerBg := &props.Color{Red: 33, Green: 37, Blue: 41}
	headerText := props.Text{
		Size:  8,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
	}
	headerCell := props.Cell{BackgroundColor: headerBg}

	r := row.New(8).Add(col.New(pdfIndexSpan).Add(text.New("#", headerText)).WithStyle(&headerCell))
	for _, c := range cols {
		r.Add(col.New(pdfSpan(c)).Add(text.New(c.Label(), headerText)).WithStyle(&headerCell))
	}
	m.AddRows(r)
}

// addTableRow adds one entry. Computed entries get a light grey background
// so reviewers can tell them from manual ones.
func addTableRow(m core.Maroto, data SheetExportData, n int, e EntryView) {
	baseText := props.Text{Size: 7, Align: align.Center}
	leftText := baseText
	leftText.Align = align.Left
	rightText := baseText
	rightText.Align = align.Right

	var cellStyle *props.Cell
	if !e.IsManual {
		cellStyle = &props.Cell{BackgroundColor: &props.Color{Red: 245, Green: 245, Blue: 245}}
	}

	cols := []core.Col{col.New(pdfIndexSpan).Add(text.New(fmt.Sprint(n), baseText))}
	for _, c := range data.Columns {
		if c.Numeric() {
			cols = append(cols, col.New(pdfSpan(c)).Add(text.New(data.Numbers.Quantity(c.quantity(e)), rightText)))
			continue
		}
		cols = append(cols, col.New(pdfSpan(c)).Add(text.New(c.text(e), leftText)))
	}
	if cellStyle != nil {
		for i := range cols {
			cols[i] = cols[i].WithStyle(cellStyle)
		}
	}

	m.AddRows(row.New(7).Add(cols...))
}

// addTotals adds the totals row under the numeric columns.
func addTotals(m core.Maroto, data SheetExportData) {
	summaryCell := &props.Cell{BackgroundColor: &props.Color{Red: 240, Green: 240, Blue: 240}}
	valueStyle := props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Right}

	r := row.New(8).Add(
		col.New(pdfIndexSpan).Add(text.New("Totals", props.Text{Size: 8, Style: fontstyle.Bold, Align: align.Left})).WithStyle(summaryCell),
	)
	for _, c := range data.Columns {
		cc := col.New(pdfSpan(c))
		if c.Numeric() {
			cc.Add(text.New(data.Numbers.Quantity(c.total(data.Totals)), valueStyle))
		}
		r.Add(cc.WithStyle(summaryCell))
	}
	m.AddRows(r)
}

// addFooter adds the generated-date line at the bottom.
func addFooter(m core.Maroto, data SheetExportData, grid int) {
	m.AddRows(row.New(6))
	m.AddRows(
		row.New(6).Add(
			col.New(grid).Add(
				text.New(
					fmt.Sprintf("Generated on %s (numbers: %s)", data.GeneratedAt, data.Numbers.Locale()),
					props.Text{
						Size:  7,
						Align: align.Left,
						Color: &props.Color{Red: 140, Green: 140, Blue: 140},
					},
				),
			),
		),
	)
}
