package httppresentation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/latrastienda/tienda/internal/application/checkout"
	appinventory "github.com/latrastienda/tienda/internal/application/inventory"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	"github.com/latrastienda/tienda/internal/application/notification"
	apporder "github.com/latrastienda/tienda/internal/application/order"
	apppayment "github.com/latrastienda/tienda/internal/application/payment"
	appreturns "github.com/latrastienda/tienda/internal/application/returns"
	domcustomer "github.com/latrastienda/tienda/internal/domain/customer"
	dominv "github.com/latrastienda/tienda/internal/domain/inventory"
	dominvoice "github.com/latrastienda/tienda/internal/domain/invoice"
	"github.com/latrastienda/tienda/internal/domain/shipping"
	"github.com/latrastienda/tienda/internal/infrastructure/memory"
	infraobs "github.com/latrastienda/tienda/internal/infrastructure/observability"
	"github.com/latrastienda/tienda/internal/infrastructure/observability/prometrics"
	"github.com/latrastienda/tienda/internal/infrastructure/pdf"
	"github.com/latrastienda/tienda/internal/infrastructure/redsys"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticID string

func (s staticID) NewID() string { return string(s) }

type fakeMailer struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (m *fakeMailer) Send(_ context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

type fixture struct {
	server    *httptest.Server
	gateway   *redsys.Gateway
	orders    *memory.OrderRepository
	returns   *memory.ReturnRepository
	inventory *memory.InventoryRepository
	mailer    *fakeMailer

	mu        sync.Mutex
	healthErr error
}

func (f *fixture) health(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.healthErr
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	rosa, err := dominv.NewItem("rosa", "Rosa", decimal.RequireFromString("10.00"), 5)
	require.NoError(t, err)
	rets := memory.NewReturnRepository()
	orders := memory.NewOrderRepository().CascadeTo(rets)
	inventory := memory.NewInventoryRepository(rosa)
	customers := memory.NewCustomerRepository(domcustomer.Customer{
		ID: "ana", Name: "Ana", Email: "ana@example.com",
		Address: "Calle Mayor 1", PostalCode: "41001", City: "Sevilla", Province: "Sevilla",
	})

	gw, err := redsys.New(redsys.DefaultConfig("https://tienda.example"))
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	counters, histograms := prometrics.Instruments(prometrics.New(reg, "", ""))
	tel := infraobs.New(infraobs.WithInstruments(counters, histograms))

	seller := dominvoice.DefaultSeller()
	invoices := appinvoice.NewService(orders, rets, customers, pdf.NewRenderer(), seller, tel)
	mailer := &fakeMailer{}
	notifier := notification.NewNotifier(orders, customers, invoices, mailer, seller, "almacen@example.com", tel)
	stock := appinventory.NewStockUseCase(inventory, nil, tel)

	f := &fixture{gateway: gw, orders: orders, returns: rets, inventory: inventory, mailer: mailer}
	h := NewHandler(Services{
		Checkout:      checkout.NewPlaceOrderUseCase(orders, inventory, customers, shipping.DefaultPolicy(), tel),
		PaymentForm:   apppayment.NewBuildRequestUseCase(orders, gw, tel),
		Notifications: apppayment.NewHandleNotificationUseCase(orders, gw, stock, nil, staticID("evt-1"), tel),
		Invoices:      invoices,
		Orders:        apporder.NewService(orders, customers, notifier, tel),
		Returns:       appreturns.NewService(rets, orders, stock, invoices, notifier, tel),
		Health:        f.health,
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, tel)

	f.server = httptest.NewServer(h.Router())
	t.Cleanup(f.server.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (f *fixture) checkout(t *testing.T, qty int) int64 {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/ventas/checkout",
		`{"customer_id":"ana","payment_method":"tarjeta","use_customer_address":true,"lines":[{"product_id":"rosa","quantity":`+strconv.Itoa(qty)+`}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var out checkoutResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	return out.OrderID
}

// notificationForm signs a callback the way the gateway does.
func (f *fixture) notificationForm(t *testing.T, orderID int64, response string) url.Values {
	t.Helper()
	order := redsys.MerchantOrder(orderID, time.Date(2026, 3, 1, 15, 30, 45, 0, time.UTC))
	raw, err := json.Marshal(map[string]string{
		"Ds_Order":             order,
		"Ds_Response":          response,
		"Ds_AuthorisationCode": "654321",
		"Ds_Date":              "01%2F03%2F2026",
		"Ds_Hour":              "15%3A30",
	})
	require.NoError(t, err)
	params := base64.StdEncoding.EncodeToString(raw)
	sig, err := f.gateway.Signer().Sign(params, order)
	require.NoError(t, err)
	return url.Values{
		"Ds_SignatureVersion":   {redsys.SignatureVersion},
		"Ds_MerchantParameters": {params},
		"Ds_Signature":          {sig},
	}
}

func (f *fixture) notify(t *testing.T, form url.Values) (*http.Response, string) {
	t.Helper()
	resp, err := http.PostForm(f.server.URL+"/ventas/notificacion/", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func (f *fixture) pay(t *testing.T, orderID int64) {
	t.Helper()
	resp, body := f.notify(t, f.notificationForm(t, orderID, "0000"))
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body)

	f.mu.Lock()
	f.healthErr = errors.New("db down")
	f.mu.Unlock()
	resp, _ = f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestCheckoutCreatesOrder(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/ventas/checkout",
		`{"customer_id":"ana","payment_method":"tarjeta","use_customer_address":true,"lines":[{"product_id":"rosa","quantity":2}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	var out checkoutResponse
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Equal(t, "20.00", out.Subtotal)
	assert.Equal(t, "5.95", out.ShippingCost)
	assert.False(t, out.FreeShipping)
	assert.Equal(t, "21.45", out.Base)
	assert.Equal(t, "4.50", out.Tax)
	assert.Equal(t, "25.95", out.Total)
	assert.Equal(t, "/ventas/pago/"+strconv.FormatInt(out.OrderID, 10), out.PaymentURL)
	assert.NotEmpty(t, resp.Header.Get(headerRequestID))
}

func TestCheckoutErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed json", body: `{`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"customer":"ana"}`, want: http.StatusBadRequest},
		{name: "bad method", body: `{"customer_id":"ana","payment_method":"efectivo","use_customer_address":true,"lines":[{"product_id":"rosa","quantity":1}]}`, want: http.StatusBadRequest},
		{name: "unknown product", body: `{"customer_id":"ana","payment_method":"bizum","use_customer_address":true,"lines":[{"product_id":"tulipan","quantity":1}]}`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/ventas/checkout", tt.body)
			assert.Equal(t, tt.want, resp.StatusCode, body)
		})
	}
}

func TestCheckoutShortageListsProducts(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/ventas/checkout",
		`{"customer_id":"ana","payment_method":"tarjeta","use_customer_address":true,"lines":[{"product_id":"rosa","quantity":9}]}`)
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	var out struct {
		Shortages []shortageView `json:"shortages"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	require.Len(t, out.Shortages, 1)
	assert.Equal(t, "rosa", out.Shortages[0].ProductID)
	assert.Equal(t, "Rosa (stock: 5, solicitado: 9)", out.Shortages[0].Message)
}

func TestPaymentForm(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 1)

	resp, body := f.do(t, http.MethodGet, "/ventas/pago/"+strconv.FormatInt(id, 10), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
	assert.Contains(t, body, redsys.TestEndpoint)
	assert.Contains(t, body, redsys.SignatureVersion)
	assert.Contains(t, body, "Ds_MerchantParameters")

	resp, _ = f.do(t, http.MethodGet, "/ventas/pago/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f.pay(t, id)
	resp, _ = f.do(t, http.MethodGet, "/ventas/pago/"+strconv.FormatInt(id, 10), "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestNotificationEndpoint(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 2)

	resp, body := f.do(t, http.MethodGet, "/ventas/notificacion/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK - URL accesible", body)

	resp, _ = f.notify(t, url.Values{"Ds_Signature": {"x"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	forged := f.notificationForm(t, id, "0000")
	forged.Set("Ds_Signature", "AAAA")
	resp, _ = f.notify(t, forged)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.notify(t, f.notificationForm(t, 999, "0000"))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body = f.notify(t, f.notificationForm(t, id, "0000"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", body)

	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, o.Paid)
	assert.Equal(t, "654321", o.Payment.AuthorizationCode)

	item, err := f.inventory.Get(context.Background(), "rosa")
	require.NoError(t, err)
	assert.Equal(t, 3, item.Quantity)
}

func TestOrderInvoice(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 1)

	resp, body := f.do(t, http.MethodGet, "/ventas/factura/"+strconv.FormatInt(id, 10), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="factura_`+strconv.FormatInt(id, 10)+`.pdf"`, resp.Header.Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(body, "%PDF"))

	resp, body = f.do(t, http.MethodGet, "/ventas/factura/999", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Pedido no encontrado")

	resp, _ = f.do(t, http.MethodGet, "/ventas/factura/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminOrders(t *testing.T) {
	f := newFixture(t)
	paid := f.checkout(t, 1)
	f.pay(t, paid)
	unpaid := f.checkout(t, 1)

	resp, body := f.do(t, http.MethodGet, "/admin/pedidos?pagado=true", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []orderView
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, paid, list[0].ID)
	assert.Equal(t, "15.95", list[0].Total)
	assert.Equal(t, "Sevilla", list[0].Recipient.City)

	resp, _ = f.do(t, http.MethodGet, "/admin/pedidos?pagado=quizas", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, "/admin/pedidos/enviados", `{"ids":[`+strconv.FormatInt(paid, 10)+`,999]}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"shipped":[`+strconv.FormatInt(paid, 10)+`],"not_found":[999]}`, body)

	resp, body = f.do(t, http.MethodGet, "/admin/pedidos/"+strconv.FormatInt(paid, 10), "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var one orderView
	require.NoError(t, json.Unmarshal([]byte(body), &one))
	assert.True(t, one.Shipped)
	assert.NotNil(t, one.ShippedAt)

	resp, _ = f.do(t, http.MethodPost, "/admin/pedidos/"+strconv.FormatInt(unpaid, 10)+"/reenviar-email", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = f.do(t, http.MethodPost, "/admin/pedidos/"+strconv.FormatInt(paid, 10)+"/reenviar-email", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.mailer.count())

	resp, body = f.do(t, http.MethodGet, "/admin/pedidos.csv", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/csv; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "pedidos_")
	assert.Equal(t, 3, strings.Count(body, "\n"), "header plus two orders")
}

func TestAdminDeleteOrder(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 1)
	f.pay(t, id)
	path := "/admin/pedidos/" + strconv.FormatInt(id, 10)

	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	resp, body := f.do(t, http.MethodPost, "/admin/devoluciones",
		`{"order_id":`+strconv.FormatInt(id, 10)+`,"lines":[{"order_line_id":`+strconv.FormatInt(o.Lines[0].ID, 10)+`,"quantity":1,"reason_code":"otro"}]}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, _ = f.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	left, err := f.returns.ListByOrder(context.Background(), id)
	require.NoError(t, err)
	assert.Empty(t, left)

	resp, _ = f.do(t, http.MethodDelete, path, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminReturnFlow(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 2)
	f.pay(t, id)

	o, err := f.orders.Get(context.Background(), id)
	require.NoError(t, err)
	lineID := strconv.FormatInt(o.Lines[0].ID, 10)

	resp, body := f.do(t, http.MethodPost, "/admin/devoluciones",
		`{"order_id":`+strconv.FormatInt(id, 10)+`,"reason":"Llegó rota","lines":[{"order_line_id":`+lineID+`,"quantity":1,"reason_code":"defectuoso"}],"shipping_override":"2.00"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	var ret returnView
	require.NoError(t, json.Unmarshal([]byte(body), &ret))
	assert.Equal(t, "solicitada", ret.Status)
	assert.Equal(t, []string{"aprobada", "rechazada"}, ret.NextStatuses)
	assert.Equal(t, "12.00", ret.Total)
	require.NotNil(t, ret.ShippingOverride)
	assert.Equal(t, "2.00", *ret.ShippingOverride)
	retPath := "/admin/devoluciones/" + strconv.FormatInt(ret.ID, 10)

	resp, body = f.do(t, http.MethodPost, retPath+"/gastos-envio", `{"amount":null}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &ret))
	assert.Nil(t, ret.ShippingOverride)
	assert.Equal(t, "10.00", ret.Total)

	resp, _ = f.do(t, http.MethodPost, retPath+"/completar", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "requested returns must be approved first")

	resp, body = f.do(t, http.MethodPost, retPath+"/aprobar", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	require.NoError(t, json.Unmarshal([]byte(body), &ret))
	assert.Equal(t, "aprobada", ret.Status)

	resp, body = f.do(t, http.MethodPost, retPath+"/completar", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	var done completeReturnResponse
	require.NoError(t, json.Unmarshal([]byte(body), &done))
	assert.Equal(t, "completada", done.Return.Status)
	assert.Equal(t, 1, done.Restocked)
	assert.True(t, done.EmailSent)
	assert.Empty(t, done.Warnings)
	assert.Equal(t, "factura_devolucion_"+strconv.FormatInt(ret.ID, 10)+".pdf", done.Invoice)

	item, err := f.inventory.Get(context.Background(), "rosa")
	require.NoError(t, err)
	assert.Equal(t, 4, item.Quantity)

	resp, body = f.do(t, http.MethodGet, "/admin/pedidos/"+strconv.FormatInt(id, 10)+"/devoluciones", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []returnView
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "completada", list[0].Status)

	resp, body = f.do(t, http.MethodGet, retPath+"/factura", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, "%PDF"))

	resp, body = f.do(t, http.MethodGet, "/admin/devoluciones/999/factura", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, "Devolución no encontrada")
}

func TestAdminReturnValidation(t *testing.T) {
	f := newFixture(t)
	id := f.checkout(t, 1)

	resp, _ := f.do(t, http.MethodPost, "/admin/devoluciones",
		`{"order_id":`+strconv.FormatInt(id, 10)+`,"lines":[{"order_line_id":999,"quantity":1,"reason_code":"otro"}]}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/admin/devoluciones",
		`{"order_id":`+strconv.FormatInt(id, 10)+`,"lines":[],"shipping_override":"mucho"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/admin/devoluciones/42", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/admin/devoluciones/42/rechazar", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetricsUseRoutePattern(t *testing.T) {
	f := newFixture(t)
	f.checkout(t, 1)
	f.do(t, http.MethodGet, "/ventas/factura/999", "")

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `http_requests_total{method="POST",route="/ventas/checkout",status="201"} 1`)
	assert.Contains(t, body, `http_requests_total{method="GET",route="/ventas/factura/{orderID}",status="404"} 1`)
	assert.Contains(t, body, `usecase_requests_total{outcome="success",use_case="checkout.place_order"} 1`)
}
