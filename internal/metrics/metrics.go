package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hotel"

// Registry owns the service counters. It satisfies the observer interfaces of pricing
// and settlement.
type Registry struct {
	reg               *prometheus.Registry
	quotes            *prometheus.CounterVec
	checkouts         prometheus.Counter
	lateFees          prometheus.Counter
	payments          *prometheus.CounterVec
	paymentAmount     *prometheus.CounterVec
	paymentsRejected  *prometheus.CounterVec
	invoiceCorrection prometheus.Counter
	documents         prometheus.Counter
}

func New() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Price quotes computed, by source of the breakdown.",
		}, []string{"source"}),
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_confirmed_total",
			Help:      "Checkouts confirmed.",
		}),
		lateFees: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "late_fees_total",
			Help:      "Sum of late fees folded into invoices.",
		}),
		payments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_total",
			Help:      "Payments accepted, by method.",
		}, []string{"method"}),
		paymentAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_amount_total",
			Help:      "Sum of accepted payment amounts, by method.",
		}, []string{"method"}),
		paymentsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_rejected_total",
			Help:      "Payments rejected, by reason.",
		}, []string{"reason"}),
		invoiceCorrection: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_corrections_total",
			Help:      "Stored invoices whose totals were recomputed on read.",
		}),
		documents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_generated_total",
			Help:      "Final invoice documents issued.",
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct
		r.quotes,
		r.checkouts,
		r.lateFees,
		r.payments,
		r.paymentAmount,
		r.paymentsRejected,
		r.invoiceCorrection,
		r.documents,
	)

	return r
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) //nolint:exhaustruct
}

func (r *Registry) QuoteComputed(source string) {
	r.quotes.WithLabelValues(source).Inc()
}

func (r *Registry) CheckoutConfirmed(lateFee int64) {
	r.checkouts.Inc()

	if lateFee > 0 {
		r.lateFees.Add(float64(lateFee))
	}
}

func (r *Registry) PaymentRecorded(method string, amount int64) {
	r.payments.WithLabelValues(method).Inc()
	r.paymentAmount.WithLabelValues(method).Add(float64(amount))
}

func (r *Registry) PaymentRejected(reason string) {
	r.paymentsRejected.WithLabelValues(reason).Inc()
}

func (r *Registry) InvoiceCorrected() {
	r.invoiceCorrection.Inc()
}

func (r *Registry) DocumentGenerated() {
	r.documents.Inc()
}
