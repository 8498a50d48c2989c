package httppresentation

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/latrastienda/tienda/internal/application"
	appreturns "github.com/latrastienda/tienda/internal/application/returns"
	domorder "github.com/latrastienda/tienda/internal/domain/order"
	domreturns "github.com/latrastienda/tienda/internal/domain/returns"
	"github.com/shopspring/decimal"
)

type recipientView struct {
	Name       string `json:"name"`
	Address    string `json:"address"`
	PostalCode string `json:"postal_code"`
	City       string `json:"city"`
	Province   string `json:"province"`
	Phone      string `json:"phone"`
}

type paymentView struct {
	AuthorizationCode string     `json:"authorization_code,omitempty"`
	ResponseCode      string     `json:"response_code,omitempty"`
	ErrorDescription  string     `json:"error_description,omitempty"`
	PaidDate          string     `json:"paid_date,omitempty"`
	PaidTime          string     `json:"paid_time,omitempty"`
	CardCountry       string     `json:"card_country,omitempty"`
	MerchantCode      string     `json:"merchant_code,omitempty"`
	AttemptedAt       *time.Time `json:"attempted_at,omitempty"`
}

type orderLineView struct {
	ID          int64  `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Total       string `json:"total"`
}

type orderView struct {
	ID            int64           `json:"id"`
	CustomerID    string          `json:"customer_id"`
	CreatedAt     time.Time       `json:"created_at"`
	PaymentMethod string          `json:"payment_method"`
	Paid          bool            `json:"paid"`
	Shipped       bool            `json:"shipped"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty"`
	ShippingCost  string          `json:"shipping_cost"`
	FreeShipping  bool            `json:"free_shipping"`
	Subtotal      string          `json:"subtotal"`
	Base          string          `json:"base"`
	Tax           string          `json:"tax"`
	Total         string          `json:"total"`
	Recipient     recipientView   `json:"recipient"`
	GiftMessage   string          `json:"gift_message,omitempty"`
	Payment       paymentView     `json:"payment"`
	Lines         []orderLineView `json:"lines"`
}

func newOrderView(o *domorder.Order) orderView {
	b := o.Breakdown().Rounded()
	v := orderView{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		CreatedAt:     o.CreatedAt,
		PaymentMethod: string(o.PaymentMethod),
		Paid:          o.Paid,
		Shipped:       o.Shipped,
		ShippedAt:     o.ShippedAt,
		ShippingCost:  o.ShippingCost.StringFixed(2),
		FreeShipping:  o.FreeShipping,
		Subtotal:      o.Subtotal().StringFixed(2),
		Base:          b.Net.StringFixed(2),
		Tax:           b.Tax.StringFixed(2),
		Total:         o.Total().StringFixed(2),
		Recipient:     recipientView(o.Recipient),
		GiftMessage:   o.GiftMessage,
		Payment:       paymentView(o.Payment),
		Lines:         make([]orderLineView, 0, len(o.Lines)),
	}
	for _, l := range o.Lines {
		v.Lines = append(v.Lines, orderLineView{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			Total:       l.Gross().StringFixed(2),
		})
	}
	return v
}

type returnLineView struct {
	ID          int64  `json:"id"`
	OrderLineID int64  `json:"order_line_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	UnitPrice   string `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	ReasonCode  string `json:"reason_code"`
	Reason      string `json:"reason"`
}

type returnView struct {
	ID               int64            `json:"id"`
	OrderID          int64            `json:"order_id"`
	Status           string           `json:"status"`
	RequestedAt      time.Time        `json:"requested_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	Reason           string           `json:"reason,omitempty"`
	InternalNotes    string           `json:"internal_notes,omitempty"`
	ShippingOverride *string          `json:"shipping_override"`
	ShippingRefund   string           `json:"shipping_refund"`
	Base             string           `json:"base"`
	Tax              string           `json:"tax"`
	Total            string           `json:"total"`
	Lines            []returnLineView `json:"lines"`
	NextStatuses     []string         `json:"next_statuses"`
}

func newReturnView(r *domreturns.Return) returnView {
	v := returnView{
		ID:             r.ID,
		OrderID:        r.OrderID,
		Status:         string(r.Status),
		RequestedAt:    r.RequestedAt,
		ProcessedAt:    r.ProcessedAt,
		Reason:         r.Reason,
		InternalNotes:  r.InternalNotes,
		ShippingRefund: r.ShippingRefund.StringFixed(2),
		Base:           r.Base.StringFixed(2),
		Tax:            r.Tax.StringFixed(2),
		Total:          r.Total.StringFixed(2),
		Lines:          make([]returnLineView, 0, len(r.Lines)),
		NextStatuses:   make([]string, 0, 2),
	}
	if r.ShippingOverride != nil {
		s := r.ShippingOverride.StringFixed(2)
		v.ShippingOverride = &s
	}
	for _, next := range r.NextStatuses() {
		v.NextStatuses = append(v.NextStatuses, string(next))
	}
	for _, l := range r.Lines {
		v.Lines = append(v.Lines, returnLineView{
			ID:          l.ID,
			OrderLineID: l.OrderLineID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice.StringFixed(2),
			Quantity:    l.Quantity,
			ReasonCode:  string(l.ReasonCode),
			Reason:      l.ReasonCode.Label(),
		})
	}
	return v
}

func listFilter(r *http.Request) (domorder.ListFilter, error) {
	q := r.URL.Query()
	var f domorder.ListFilter
	parse := func(key string) (*bool, error) {
		raw := q.Get(key)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, application.NewValidation(key + " must be true or false")
		}
		return &v, nil
	}
	var err error
	if f.Paid, err = parse("pagado"); err != nil {
		return f, err
	}
	if f.Shipped, err = parse("enviado"); err != nil {
		return f, err
	}
	f.CustomerID = q.Get("cliente")
	return f, nil
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	orders, err := h.svc.Orders.List(r.Context(), filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, newOrderView(o))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	o, err := h.svc.Orders.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOrderView(o))
}

func (h *Handler) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	filter, err := listFilter(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", "pedidos_"+time.Now().Format("20060102_150405")+".csv"))
	// Headers are already out once rows are streamed; failures are only logged
	// by the use case.
	_, _ = h.svc.Orders.ExportCSV(r.Context(), w, filter)
}

type markShippedRequest struct {
	IDs []int64 `json:"ids"`
}

func (h *Handler) handleMarkShipped(w http.ResponseWriter, r *http.Request) {
	var req markShippedRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.svc.Orders.MarkShipped(r.Context(), req.IDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int64{
		"shipped":   nonNil(res.Shipped),
		"not_found": nonNil(res.NotFound),
	})
}

func (h *Handler) handleResendConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.svc.Orders.ResendConfirmation(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": id, "sent": true})
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.svc.Orders.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListReturns(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	rets, err := h.svc.Returns.ListByOrder(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]returnView, 0, len(rets))
	for _, ret := range rets {
		out = append(out, newReturnView(ret))
	}
	writeJSON(w, http.StatusOK, out)
}

type createReturnRequest struct {
	OrderID       int64  `json:"order_id"`
	Reason        string `json:"reason"`
	InternalNotes string `json:"internal_notes"`
	Lines         []struct {
		OrderLineID int64  `json:"order_line_id"`
		Quantity    int    `json:"quantity"`
		ReasonCode  string `json:"reason_code"`
	} `json:"lines"`
	ShippingOverride *string `json:"shipping_override"`
}

func (h *Handler) handleCreateReturn(w http.ResponseWriter, r *http.Request) {
	var req createReturnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	override, err := parseAmount(req.ShippingOverride)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	in := appreturns.CreateInput{
		OrderID:          req.OrderID,
		Reason:           req.Reason,
		InternalNotes:    req.InternalNotes,
		ShippingOverride: override,
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, appreturns.LineInput{
			OrderLineID: l.OrderLineID,
			Quantity:    l.Quantity,
			ReasonCode:  l.ReasonCode,
		})
	}
	ret, err := h.svc.Returns.Create(r.Context(), in)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newReturnView(ret))
}

func (h *Handler) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ret, err := h.svc.Returns.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReturnView(ret))
}

func (h *Handler) returnTransition(apply func(ctx context.Context, id int64) (*domreturns.Return, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r, "id")
		if err != nil {
			writeDomainError(w, err)
			return
		}
		ret, err := apply(r.Context(), id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newReturnView(ret))
	}
}

type completeReturnResponse struct {
	Return    returnView `json:"return"`
	Restocked int        `json:"restocked"`
	Invoice   string     `json:"invoice,omitempty"`
	EmailSent bool       `json:"email_sent"`
	Warnings  []string   `json:"warnings"`
}

func (h *Handler) handleCompleteReturn(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := h.svc.Returns.Complete(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := completeReturnResponse{
		Return:    newReturnView(res.Return),
		Restocked: res.Restocked,
		EmailSent: res.EmailSent,
		Warnings:  nonNil(res.Warnings),
	}
	if res.Invoice != nil {
		out.Invoice = res.Invoice.Filename
	}
	writeJSON(w, http.StatusOK, out)
}

type shippingRefundRequest struct {
	// Amount is a decimal string; null clears the override.
	Amount *string `json:"amount"`
}

func (h *Handler) handleShippingRefund(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req shippingRefundRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeDomainError(w, err)
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ret, err := h.svc.Returns.AdjustShippingRefund(r.Context(), id, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReturnView(ret))
}

func parseAmount(raw *string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, application.NewValidation("amount must be a decimal number")
	}
	return &d, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
