package handlers

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var appointmentsBooked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hkp",
	Name:      "appointments_booked_total",
	Help:      "Consultation bookings by whether a partner referred them.",
}, []string{"attributed"})

func countBooking(attributed bool) {
	appointmentsBooked.WithLabelValues(strconv.FormatBool(attributed)).Inc()
}
