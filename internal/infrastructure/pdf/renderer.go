// Package pdf renders invoice documents on a fixed A4 layout.
package pdf

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/latrastienda/tienda/internal/domain/invoice"
)

const (
	font       = "Helvetica"
	margin     = 20.0
	pageWidth  = 210.0
	lineHeight = 5.0
	rowHeight  = 7.0
)

// column widths for the item table, in mm.
var columnWidths = []float64{70, 20, 27, 27, 26}

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

func (r *Renderer) Render(doc invoice.Document) ([]byte, error) {
	p := fpdf.New("P", "mm", "A4", "")
	p.SetMargins(margin, margin, margin)
	p.SetAutoPageBreak(true, margin)
	p.SetTitle(doc.Heading(), true)
	p.AddPage()

	// Core fonts are cp1252; accents and the euro sign need translating.
	tr := p.UnicodeTranslatorFromDescriptor("")
	content := pageWidth - 2*margin

	p.SetFont(font, "B", 16)
	p.CellFormat(content, 10, tr(doc.Heading()), "", 1, "C", false, 0, "")
	p.Ln(4)

	top := p.GetY()
	half := content / 2
	p.SetFont(font, "B", 10)
	p.CellFormat(half, lineHeight, tr("VENDEDOR"), "", 2, "L", false, 0, "")
	p.SetFont(font, "", 9)
	for _, line := range doc.Seller {
		p.CellFormat(half, lineHeight, tr(line), "", 2, "L", false, 0, "")
	}
	sellerBottom := p.GetY()

	p.SetXY(margin+half, top)
	p.SetFont(font, "B", 10)
	p.CellFormat(half, lineHeight, tr("CLIENTE"), "", 2, "L", false, 0, "")
	p.SetFont(font, "", 9)
	for _, line := range doc.Buyer {
		p.CellFormat(half, lineHeight, tr(line), "", 2, "L", false, 0, "")
	}
	p.SetXY(margin, max(sellerBottom, p.GetY()))
	p.Ln(4)

	for _, d := range doc.Details {
		p.SetFont(font, "B", 9)
		p.CellFormat(40, lineHeight, tr(d.Label), "", 0, "L", false, 0, "")
		p.SetFont(font, "", 9)
		p.CellFormat(content-40, lineHeight, tr(d.Value), "", 1, "L", false, 0, "")
	}
	p.Ln(4)

	p.SetFont(font, "B", 9)
	p.SetFillColor(230, 230, 230)
	for i, h := range invoice.Columns {
		p.CellFormat(columnWidths[i], rowHeight, tr(h), "1", 0, "C", true, 0, "")
	}
	p.Ln(-1)

	p.SetFont(font, "", 9)
	for _, it := range doc.Items {
		for i, cell := range it.Cells() {
			align := "R"
			if i == 0 {
				align = "L"
			}
			p.CellFormat(columnWidths[i], rowHeight, tr(cell), "1", 0, align, false, 0, "")
		}
		p.Ln(-1)
	}
	p.Ln(4)

	labelWidth := columnWidths[0] + columnWidths[1] + columnWidths[2] + columnWidths[3]
	for i, t := range doc.Totals {
		style := ""
		if i == len(doc.Totals)-1 {
			style = "B"
		}
		p.SetFont(font, style, 10)
		p.CellFormat(labelWidth, rowHeight, tr(t.Label), "", 0, "R", false, 0, "")
		p.CellFormat(columnWidths[4], rowHeight, tr(t.Value), "", 1, "R", false, 0, "")
	}

	if doc.Footer != "" {
		p.Ln(10)
		p.SetFont(font, "I", 8)
		p.CellFormat(content, lineHeight, tr(doc.Footer), "", 1, "C", false, 0, "")
	}

	var buf bytes.Buffer
	if err := p.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render %s: %w", doc.Filename, err)
	}
	return buf.Bytes(), nil
}
