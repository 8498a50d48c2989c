package observability

const (
	MUsecaseRequests         MetricKey = "usecase_requests_total"
	MUsecaseDuration         MetricKey = "usecase_duration_seconds"
	MHTTPRequests            MetricKey = "http_requests_total"
	MHTTPRequestDuration     MetricKey = "http_request_duration_seconds"
	MExternalRequests        MetricKey = "external_requests_total"
	MExternalRequestDuration MetricKey = "external_request_duration_seconds"
	MStockMovements          MetricKey = "stock_movements_total"
	MPaymentNotifications    MetricKey = "payment_notifications_total"
)

// CounterKeys and HistogramKeys list every instrument the store records.
var (
	CounterKeys = []MetricKey{
		MUsecaseRequests, MHTTPRequests, MExternalRequests,
		MStockMovements, MPaymentNotifications,
	}
	HistogramKeys = []MetricKey{
		MUsecaseDuration, MHTTPRequestDuration, MExternalRequestDuration,
	}
)
