// Package invoice lays out order invoices and return credit notes as plain
// rows of text. Rendering to PDF happens in infrastructure/pdf.
package invoice

import (
	"fmt"
	"strconv"
	"time"

	"github.com/latrastienda/tienda/internal/domain/money"
	"github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/shopspring/decimal"
)

const (
	TitleInvoice = "FACTURA"
	TitleReturn  = "FACTURA DE DEVOLUCIÓN"
	returnPrefix = "DEVOLUCIÓN - "
)

// Columns is the header of the item table.
var Columns = []string{"Producto", "Cantidad", "Precio sin IVA", "IVA 21%", "Total con IVA"}

type Seller struct {
	Name    string
	Address string
	TaxID   string
	Phone   string
	Email   string
}

func DefaultSeller() Seller {
	return Seller{
		Name:    "LA TRASTIENDA S.L.",
		Address: "Avenida de Asturias 14, 28000 Madrid",
		TaxID:   "B00000000",
		Phone:   "666666666",
		Email:   "contabilidad@latrastienda.es",
	}
}

type Buyer struct {
	Name       string
	Address    string
	PostalCode string
	City       string
	Province   string
	Phone      string
	Email      string
	TaxID      string
}

// Pair is a label and its value, as printed in the details and totals blocks.
type Pair struct {
	Label string
	Value string
}

type Item struct {
	Description string
	Quantity    string
	UnitNet     string
	UnitTax     string
	UnitGross   string
}

func (i Item) Cells() []string {
	return []string{i.Description, i.Quantity, i.UnitNet, i.UnitTax, i.UnitGross}
}

type Document struct {
	Title    string
	Number   string
	Negative bool
	Seller   []string
	Buyer    []string
	Details  []Pair
	Items    []Item
	Totals   []Pair
	Footer   string
	Filename string
}

// Heading is the document title line, e.g. "FACTURA Nº 42".
func (d Document) Heading() string {
	return fmt.Sprintf("%s Nº %s", d.Title, d.Number)
}

// Build lays out the invoice for o, or the credit note for ret when ret is non-nil.
func Build(o *order.Order, ret *returns.Return, seller Seller, buyer Buyer, issuedAt time.Time) Document {
	if ret != nil {
		return buildReturn(o, ret, seller, buyer, issuedAt)
	}

	doc := Document{
		Title:    TitleInvoice,
		Number:   strconv.FormatInt(o.ID, 10),
		Seller:   sellerBlock(seller),
		Buyer:    buyerBlock(buyer),
		Footer:   "Gracias por su compra - " + seller.Name,
		Filename: fmt.Sprintf("factura_%d.pdf", o.ID),
	}
	doc.Details = []Pair{
		{"Nº Documento:", doc.Number},
		{"Fecha de emisión:", issuedAt.Format("02/01/2006")},
		{"Pedido original:", doc.Number},
	}

	for _, l := range o.Lines {
		doc.Items = append(doc.Items, item(l.ProductName, l.Quantity, l.UnitBreakdown(), false))
	}
	switch {
	case o.ShippingCost.IsPositive():
		doc.Items = append(doc.Items, item("Gastos de envío", 1, o.ShippingBreakdown(), false))
	case o.FreeShipping:
		doc.Items = append(doc.Items, item("Gastos de envío (Gratis)", 1, money.Split(decimal.Zero), false))
	}

	totals := o.Breakdown().Rounded()
	doc.Totals = []Pair{
		{"BASE IMPONIBLE:", money.Format(totals.Net)},
		{"IVA (21%):", money.Format(totals.Tax)},
		{"TOTAL:", money.Format(totals.Gross)},
	}
	return doc
}

func buildReturn(o *order.Order, ret *returns.Return, seller Seller, buyer Buyer, issuedAt time.Time) Document {
	doc := Document{
		Title:    TitleReturn,
		Number:   fmt.Sprintf("DEV-%d", ret.ID),
		Negative: true,
		Seller:   sellerBlock(seller),
		Buyer:    buyerBlock(buyer),
		Footer:   "Devolución procesada - " + seller.Name,
		Filename: fmt.Sprintf("factura_devolucion_%d.pdf", ret.ID),
	}
	doc.Details = []Pair{
		{"Nº Documento:", doc.Number},
		{"Devolución:", fmt.Sprintf("#%d", ret.ID)},
		{"Fecha de emisión:", issuedAt.Format("02/01/2006")},
		{"Pedido original:", strconv.FormatInt(o.ID, 10)},
		{"Motivo:", ret.Reason},
	}

	var totals money.Breakdown
	for _, l := range ret.Lines {
		doc.Items = append(doc.Items, item(returnPrefix+l.ProductName, l.Quantity, l.UnitBreakdown(), true))
		totals = totals.Add(l.Breakdown())
	}
	if ret.ShippingRefund.IsPositive() {
		b := money.Split(ret.ShippingRefund)
		doc.Items = append(doc.Items, item(returnPrefix+"Gastos de envío", 1, b, true))
		totals = totals.Add(b)
	}

	totals = totals.Rounded()
	doc.Totals = []Pair{
		{"BASE IMPONIBLE:", money.FormatNegative(totals.Net)},
		{"IVA (21%):", money.FormatNegative(totals.Tax)},
		{"TOTAL A DEVOLVER:", money.FormatNegative(totals.Gross)},
	}
	return doc
}

func item(desc string, qty int, unit money.Breakdown, negative bool) Item {
	format := money.Format
	q := strconv.Itoa(qty)
	if negative {
		format = money.FormatNegative
		q = "-" + q
	}
	u := unit.Rounded()
	return Item{
		Description: desc,
		Quantity:    q,
		UnitNet:     format(u.Net),
		UnitTax:     format(u.Tax),
		UnitGross:   format(u.Gross),
	}
}

func sellerBlock(s Seller) []string {
	return []string{
		s.Name,
		s.Address,
		labelled("CIF: ", s.TaxID),
		labelled("Teléfono: ", s.Phone),
		labelled("Email: ", s.Email),
	}
}

func buyerBlock(b Buyer) []string {
	locality := b.City
	if b.Province != "" {
		if locality != "" {
			locality += ", "
		}
		locality += b.Province
	}
	return []string{
		b.Name,
		b.Address,
		locality,
		labelled("Código Postal: ", b.PostalCode),
		labelled("Teléfono: ", b.Phone),
		labelled("Email: ", b.Email),
		labelled("CIF: ", b.TaxID),
	}
}

// labelled prints nothing at all when the value is missing.
func labelled(label, value string) string {
	if value == "" {
		return ""
	}
	return label + value
}
