package cli

import (
	"context"
	"fmt"
	"os"

	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile is the catalogue and customer list loaded with `serve --seed`.
type seedFile struct {
	Products []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Price string `yaml:"price"`
		Stock int    `yaml:"stock"`
	} `yaml:"products"`
	Customers []struct {
		ID         string `yaml:"id"`
		Name       string `yaml:"name"`
		Email      string `yaml:"email"`
		TaxID      string `yaml:"tax_id"`
		Phone      string `yaml:"phone"`
		Address    string `yaml:"address"`
		PostalCode string `yaml:"postal_code"`
		City       string `yaml:"city"`
		Province   string `yaml:"province"`
	} `yaml:"customers"`
}

// loadSeed upserts every product and customer in path and returns how many
// records were written.
func loadSeed(ctx context.Context, path string, store storage) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading seed: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}

	n := 0
	for _, p := range seed.Products {
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			return n, fmt.Errorf("product %s: price: %w", p.ID, err)
		}
		item, err := dominv.NewItem(p.ID, p.Name, price, p.Stock)
		if err != nil {
			return n, fmt.Errorf("product %s: %w", p.ID, err)
		}
		if err := store.inventory.Save(ctx, item); err != nil {
			return n, fmt.Errorf("product %s: %w", p.ID, err)
		}
		n++
	}
	for _, c := range seed.Customers {
		if c.ID == "" {
			return n, fmt.Errorf("customer without id in %s", path)
		}
		if err := store.customers.Save(ctx, &domcustomer.Customer{
			ID:         c.ID,
			Name:       c.Name,
			Email:      c.Email,
			TaxID:      c.TaxID,
			Phone:      c.Phone,
			Address:    c.Address,
			PostalCode: c.PostalCode,
			City:       c.City,
			Province:   c.Province,
		}); err != nil {
			return n, fmt.Errorf("customer %s: %w", c.ID, err)
		}
		n++
	}
	return n, nil
}
