// Package metrics exposes notifier activity as Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colonyops/cinq/internal/core/eventbus"
)

const namespace = "cinq"

// Poll cycle results.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// Bus is the part of the event bus the collectors listen to.
type Bus interface {
	SubscribePollCompleted(fn func(eventbus.PollCompletedPayload))
	SubscribeUnreadChanged(fn func(eventbus.UnreadChangedPayload))
	SubscribeNotificationShown(fn func(eventbus.NotificationShownPayload))
	SubscribeNotificationArrived(fn func(eventbus.NotificationArrivedPayload))
	OnDrop(fn func(eventbus.Event, any))
}

// Metrics holds the collectors on a private registry.
type Metrics struct {
	Registry *prometheus.Registry

	pollCycles *prometheus.CounterVec
	multiplier prometheus.Gauge
	interval   prometheus.Gauge
	unread     prometheus.Gauge
	shown      *prometheus.CounterVec
	arrived    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		pollCycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "poll",
				Name:      "cycles_total",
				Help:      "Poll cycles by result.",
			},
			[]string{"result"},
		),
		multiplier: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "backoff_multiplier",
			Help:      "Current poll backoff multiplier.",
		}),
		interval: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "interval_seconds",
			Help:      "Delay until the next poll cycle.",
		}),
		unread: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "unread_count",
			Help:      "Unread notifications.",
		}),
		shown: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "shown_total",
				Help:      "Notifications added to the center, by type.",
			},
			[]string{"type"},
		),
		arrived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "notifications",
				Name:      "arrived_total",
				Help:      "Arrivals on the inbox, by producer.",
			},
			[]string{"source"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "bus",
				Name:      "dropped_total",
				Help:      "Events dropped because the bus buffer was full.",
			},
			[]string{"event"},
		),
	}

	m.Registry.MustRegister(m.pollCycles, m.multiplier, m.interval, m.unread, m.shown, m.arrived, m.dropped)
	return m
}

// Attach subscribes the collectors to bus.
func (m *Metrics) Attach(bus Bus) {
	bus.SubscribePollCompleted(m.observePoll)
	bus.SubscribeUnreadChanged(func(p eventbus.UnreadChangedPayload) {
		m.unread.Set(float64(p.Count))
	})
	bus.SubscribeNotificationShown(func(p eventbus.NotificationShownPayload) {
		m.shown.WithLabelValues(string(p.Item.Type)).Inc()
	})
	bus.SubscribeNotificationArrived(func(p eventbus.NotificationArrivedPayload) {
		m.arrived.WithLabelValues(string(p.Source)).Inc()
	})
	bus.OnDrop(func(e eventbus.Event, _ any) {
		m.dropped.WithLabelValues(string(e)).Inc()
	})
}

func (m *Metrics) observePoll(p eventbus.PollCompletedPayload) {
	switch {
	case p.Skipped:
		m.pollCycles.WithLabelValues(ResultSkipped).Inc()
	case p.Err != nil:
		m.pollCycles.WithLabelValues(ResultError).Inc()
	default:
		m.pollCycles.WithLabelValues(ResultOK).Inc()
	}
	if p.Multiplier > 0 {
		m.multiplier.Set(float64(p.Multiplier))
	}
	if p.Interval > 0 {
		m.interval.Set(p.Interval.Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
