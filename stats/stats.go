package stats

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "lkportal"
)

var (
	PromActions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "portal",
		Name:      "actions_total",
	}, []string{"action", "status"})

	PromState = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "portal",
		Name:      "connection_state",
	})

	PromTracks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "portal",
		Name:      "tracks_published",
	})

	PromEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "relay",
		Name:      "events_total",
	}, []string{"status"})

	PromFrames = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "video",
		Name:      "frames_total",
	}, []string{"status"})
)

func Register(r prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{PromActions, PromState, PromTracks, PromEvents, PromFrames} {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func ActionDone(action string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	PromActions.WithLabelValues(action, status).Inc()
}
