package pdf

import (
	"bytes"
	"testing"

	"github.com/latrastienda/tienda/internal/domain/invoice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderProducesPDF(t *testing.T) {
	doc := invoice.Document{
		Title:    invoice.TitleReturn,
		Number:   "DEV-7",
		Negative: true,
		Seller:   []string{"LA TRASTIENDA S.L.", "CIF: B00000000"},
		Buyer:    []string{"Ana Pérez", "", "Sevilla"},
		Details:  []invoice.Pair{{Label: "Nº Documento:", Value: "DEV-7"}},
		Items: []invoice.Item{
			{Description: "DEVOLUCIÓN - Maceta", Quantity: "-1", UnitNet: "-8.26 €", UnitTax: "-1.74 €", UnitGross: "-10.00 €"},
		},
		Totals:   []invoice.Pair{{Label: "TOTAL A DEVOLVER:", Value: "-10.00 €"}},
		Footer:   "Devolución procesada",
		Filename: "factura_devolucion_7.pdf",
	}

	out, err := NewRenderer().Render(doc)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestRenderEmptyDocument(t *testing.T) {
	out, err := NewRenderer().Render(invoice.Document{Title: invoice.TitleInvoice, Number: "1"})
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}
