package customer

import (
	"context"
	"errors"

	"github.com/latrastienda/tienda/internal/domain/order"
)

var ErrNotFound = errors.New("customer: not found")

// Customer is the account data the shop needs for delivery, invoices and email.
type Customer struct {
	ID         string
	Name       string
	Email      string
	TaxID      string
	Phone      string
	Address    string
	PostalCode string
	City       string
	Province   string
}

// Recipient returns the customer's own address as a delivery snapshot.
func (c *Customer) Recipient() order.Recipient {
	return order.Recipient{
		Name:       c.Name,
		Address:    c.Address,
		PostalCode: c.PostalCode,
		City:       c.City,
		Province:   c.Province,
		Phone:      c.Phone,
	}
}

func (c *Customer) HasAddress() bool {
	return c.Address != "" && c.PostalCode != "" && c.City != ""
}

type Repository interface {
	Get(ctx context.Context, id string) (*Customer, error)
	Save(ctx context.Context, c *Customer) error
}
