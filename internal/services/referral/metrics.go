package referral

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	resultReported     = "reported"
	resultReportError  = "report_error"
	resultStorageError = "storage_error"
)

var trackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hkp",
	Subsystem: "referral",
	Name:      "track_total",
	Help:      "Referral tracking attempts by outcome.",
}, []string{"result"})
