package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/latrastienda/tienda/internal/application/checkout"
	appinventory "github.com/latrastienda/tienda/internal/application/inventory"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	"github.com/latrastienda/tienda/internal/application/notification"
	apporder "github.com/latrastienda/tienda/internal/application/order"
	apppayment "github.com/latrastienda/tienda/internal/application/payment"
	appreturns "github.com/latrastienda/tienda/internal/application/returns"
	"github.com/latrastienda/tienda/internal/config"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/latrastienda/tienda/internal/infrastructure/id"
	"github.com/latrastienda/tienda/internal/infrastructure/memory"
	"github.com/latrastienda/tienda/internal/infrastructure/outbox"
	"github.com/latrastienda/tienda/internal/infrastructure/pdf"
	"github.com/latrastienda/tienda/internal/infrastructure/postgres"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/latrastienda/tienda/internal/infrastructure/smtpmail"
	"github.com/latrastienda/tienda/internal/observability"
	httppresentation "github.com/latrastienda/tienda/internal/presentation/http"
	workerpresentation "github.com/latrastienda/tienda/internal/presentation/worker"
)

// storage groups the repositories of one backend.
type storage struct {
	orders    domorder.Repository
	returns   domreturns.Repository
	inventory dominv.Repository
	customers domcustomer.Repository
	health    func(ctx context.Context) error
	close     func()
}

func memoryStorage() storage {
	returns := memory.NewReturnRepository()
	return storage{
		orders:    memory.NewOrderRepository().CascadeTo(returns),
		returns:   returns,
		inventory: memory.NewInventoryRepository(),
		customers: memory.NewCustomerRepository(),
		close:     func() {},
	}
}

// openStorage uses Postgres when a database URL is configured and the
// in-memory repositories otherwise.
func openStorage(ctx context.Context, cfg config.Config) (storage, error) {
	if cfg.Database.URL == "" {
		return memoryStorage(), nil
	}
	db, err := postgres.Open(ctx, cfg.Database.URL)
	if err != nil {
		return storage{}, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return storage{}, err
	}
	return storage{
		orders:    postgres.NewOrderRepository(db),
		returns:   postgres.NewReturnRepository(db),
		inventory: postgres.NewInventoryRepository(db),
		customers: postgres.NewCustomerRepository(db),
		health:    db.Ping,
		close:     db.Close,
	}, nil
}

// app is the wired service: use cases, event bus, workers and HTTP surface.
type app struct {
	handler http.Handler
	bus     *outbox.Bus
}

func newApp(ctx context.Context, cfg config.Config, store storage, tel observability.Observability, metrics http.Handler) (*app, error) {
	policy, err := cfg.ShippingPolicy()
	if err != nil {
		return nil, err
	}
	gateway, err := redsys.New(cfg.RedsysConfig())
	if err != nil {
		return nil, fmt.Errorf("redsys: %w", err)
	}

	bus := outbox.NewBus(tel)
	events := workerpresentation.NewSubscriber(bus, tel)

	seller := cfg.InvoiceSeller()
	invoices := appinvoice.NewService(store.orders, store.returns, store.customers, pdf.NewRenderer(), seller, tel)

	var mailer notification.Mailer
	if cfg.SMTP.Enabled() {
		mailer = smtpmail.New(smtpmail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			ReplyTo:  cfg.SMTP.ReplyTo,
		})
	} else {
		mailer = smtpmail.NewLogMailer(tel)
	}
	notifier := notification.NewNotifier(store.orders, store.customers, invoices, mailer, seller, cfg.SMTP.StaffEmail, tel)
	notification.NewWorker(events, notifier, tel).Start()

	stock := appinventory.NewStockUseCase(store.inventory, bus, tel)

	handler := httppresentation.NewHandler(httppresentation.Services{
		Checkout:      checkout.NewPlaceOrderUseCase(store.orders, store.inventory, store.customers, policy, tel),
		PaymentForm:   apppayment.NewBuildRequestUseCase(store.orders, gateway, tel),
		Notifications: apppayment.NewHandleNotificationUseCase(store.orders, gateway, stock, bus, id.NewUUIDGenerator(), tel),
		Invoices:      invoices,
		Orders:        apporder.NewService(store.orders, store.customers, notifier, tel),
		Returns:       appreturns.NewService(store.returns, store.orders, stock, invoices, notifier, tel),
		Health:        store.health,
		Metrics:       metrics,
	}, tel)

	bus.Start(ctx)
	return &app{handler: handler.Router(), bus: bus}, nil
}

// Close drains queued events so confirmation emails are not lost on shutdown.
func (a *app) Close(ctx context.Context) {
	a.bus.Stop(ctx)
}
