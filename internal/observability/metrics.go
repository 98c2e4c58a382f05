package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// transitions counts committed application transitions by target status.
	transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adoption_transitions_total",
			Help: "Committed application status transitions.",
		},
		[]string{"to"},
	)

	// cascadeRejections counts applications rejected because a sibling
	// application for the same pet was approved.
	cascadeRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "adoption_cascade_rejections_total",
			Help: "Applications rejected by cascade after another approval.",
		},
	)

	// notifications counts notification attempts by result (sent|failed).
	notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adoption_notifications_total",
			Help: "Status-change notification attempts.",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(transitions, cascadeRejections, notifications)
}

// RecordTransition counts one committed transition to status to.
func RecordTransition(to string) { transitions.WithLabelValues(to).Inc() }

// RecordCascade counts n cascaded rejections.
func RecordCascade(n int) {
	if n > 0 {
		cascadeRejections.Add(float64(n))
	}
}

// RecordNotification counts one notification attempt.
func RecordNotification(ok bool) {
	if ok {
		notifications.WithLabelValues("sent").Inc()
		return
	}
	notifications.WithLabelValues("failed").Inc()
}
