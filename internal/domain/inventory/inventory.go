package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("inventory: product not found")
	ErrInvalidQuantity   = errors.New("inventory: quantity must be greater than zero")
	ErrInsufficientStock = errors.New("inventory: insufficient stock")
)

// Item is a sellable product and its stock counter.
type Item struct {
	ProductID string
	Name      string
	// Price is tax-inclusive.
	Price     decimal.Decimal
	Quantity  int
	UpdatedAt time.Time
}

func NewItem(productID, name string, price decimal.Decimal, quantity int) (*Item, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}
	return &Item{
		ProductID: productID,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// Deduct removes quantity units. Stock never goes negative.
func (i *Item) Deduct(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	if quantity > i.Quantity {
		return ErrInsufficientStock
	}
	i.Quantity -= quantity
	i.touch()
	return nil
}

func (i *Item) Restock(quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	i.Quantity += quantity
	i.touch()
	return nil
}

func (i *Item) touch() {
	i.UpdatedAt = time.Now().UTC()
}

// Shortage describes one cart line that cannot be served.
type Shortage struct {
	ProductID string
	Name      string
	InStock   int
	Requested int
}

func (s Shortage) String() string {
	return fmt.Sprintf("%s (stock: %d, solicitado: %d)", s.Name, s.InStock, s.Requested)
}

// ShortageError lists every cart line that exceeds the available stock.
type ShortageError struct {
	Items []Shortage
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, s := range e.Items {
		parts = append(parts, s.String())
	}
	return "inventory: insufficient stock: " + strings.Join(parts, ", ")
}

func (e *ShortageError) Unwrap() error { return ErrInsufficientStock }
