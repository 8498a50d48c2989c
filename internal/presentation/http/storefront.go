package httppresentation

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/latrastienda/tienda/internal/application"
	"github.com/latrastienda/tienda/internal/application/checkout"
	appinvoice "github.com/latrastienda/tienda/internal/application/invoice"
	apppayment "github.com/latrastienda/tienda/internal/application/payment"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	"github.com/latrastienda/tienda/internal/observability"
	"github.com/latrastienda/tienda/internal/observability/logctx"
)

const (
	notificationCheckBody = "OK - URL accesible"
	notificationAckBody   = "OK"
)

// handleNotificationCheck lets the gateway back office check that the
// callback URL is reachable.
func (h *Handler) handleNotificationCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(notificationCheckBody))
}

// handleNotification is the gateway's server-to-server callback. The gateway
// only looks at the status code; the body is for humans reading its logs.
func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}
	params := r.PostForm.Get("Ds_MerchantParameters")
	sig := r.PostForm.Get("Ds_Signature")
	if params == "" || sig == "" {
		http.Error(w, "missing Ds_MerchantParameters or Ds_Signature", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Notifications.Execute(r.Context(), apppayment.NotificationInput{
		MerchantParameters: params,
		Signature:          sig,
	})
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			logctx.FromOr(r.Context(), h.log).Error("notification_failed", observability.F("error", err.Error()))
		}
		http.Error(w, http.StatusText(status), status)
		return
	}

	logctx.FromOr(r.Context(), h.log).Info("notification_applied",
		observability.F("order_id", res.OrderID),
		observability.F("authorized", res.Authorized),
		observability.F("response_code", res.ResponseCode),
	)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(notificationAckBody))
}

type recipientRequest struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Phone      string `json:"phone"`
}

type checkoutRequest struct {
	CustomerID    string `json:"customer_id"`
	PaymentMethod string `json:"payment_method"`
	Lines         []struct {
		ProductID string `json:"product_id"`
		Quantity  int    `json:"quantity"`
	} `json:"lines"`
	UseCustomerAddress bool              `json:"use_customer_address"`
	Recipient          *recipientRequest `json:"recipient"`
	GiftMessage        string            `json:"gift_message"`
}

type checkoutResponse struct {
	OrderID      int64  `json:"order_id"`
	Subtotal     string `json:"subtotal"`
	ShippingCost string `json:"shipping_cost"`
	FreeShipping bool   `json:"free_shipping"`
	Base         string `json:"base"`
	Tax          string `json:"tax"`
	Total        string `json:"total"`
	PaymentURL   string `json:"payment_url"`
}

func (h *Handler) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}

	in := checkout.PlaceOrderInput{
		CustomerID:         req.CustomerID,
		PaymentMethod:      req.PaymentMethod,
		UseCustomerAddress: req.UseCustomerAddress,
		GiftMessage:        req.GiftMessage,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, checkout.CartLine{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	if req.Recipient != nil {
		in.Recipient = domorder.Recipient{
			Name:       req.Recipient.Name,
			Address:    req.Recipient.Address,
			PostalCode: req.Recipient.PostalCode,
			City:       req.Recipient.City,
			Province:   req.Recipient.Province,
			Phone:      req.Recipient.Phone,
		}
	}

	res, err := h.svc.Checkout.Execute(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	b := res.Breakdown.Rounded()
	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:      res.OrderID,
		Subtotal:     res.Subtotal.StringFixed(2),
		ShippingCost: res.ShippingCost.StringFixed(2),
		FreeShipping: res.FreeShipping,
		Base:         b.Net.StringFixed(2),
		Tax:          b.Tax.StringFixed(2),
		Total:        res.Total.StringFixed(2),
		PaymentURL:   "/ventas/pago/" + strconv.FormatInt(res.OrderID, 10),
	})
}

type paymentFormView struct {
	OrderID            int64
	Endpoint           string
	SignatureVersion   string
	MerchantParameters string
	Signature          string
}

// handlePaymentForm renders the self-submitting form that carries the signed
// request to the hosted payment page.
func (h *Handler) handlePaymentForm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writePlainError(w, err)
		return
	}
	req, err := h.svc.PaymentForm.Execute(r.Context(), apppayment.BuildRequestInput{OrderID: id})
	if err != nil {
		writePlainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, "payment_form.html", paymentFormView{
		OrderID:            id,
		Endpoint:           req.Endpoint,
		SignatureVersion:   req.SignatureVersion,
		MerchantParameters: req.MerchantParameters,
		Signature:          req.Signature,
	}); err != nil {
		logctx.FromOr(r.Context(), h.log).Error("payment_form_render_failed", observability.F("error", err.Error()))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) handleOrderInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "orderID")
	if err != nil {
		writePlainError(w, err)
		return
	}
	f, err := h.svc.Invoices.OrderInvoice(r.Context(), id)
	if err != nil {
		h.invoiceError(w, r, err)
		return
	}
	writeFile(w, f)
}

func (h *Handler) handleReturnInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writePlainError(w, err)
		return
	}
	f, err := h.svc.Invoices.ReturnInvoice(r.Context(), id)
	if err != nil {
		h.invoiceError(w, r, err)
		return
	}
	writeFile(w, f)
}

func (h *Handler) invoiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appinvoice.ErrOrderNotFound):
		http.Error(w, "Pedido no encontrado", http.StatusNotFound)
	case errors.Is(err, appinvoice.ErrReturnNotFound):
		http.Error(w, "Devolución no encontrada", http.StatusNotFound)
	case errors.Is(err, application.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		logctx.FromOr(r.Context(), h.log).Error("invoice_failed", observability.F("error", err.Error()))
		http.Error(w, "Error generando la factura", http.StatusInternalServerError)
	}
}

func writeFile(w http.ResponseWriter, f *appinvoice.File) {
	w.Header().Set("Content-Type", f.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(f.Content)))
	_, _ = w.Write(f.Content)
}
