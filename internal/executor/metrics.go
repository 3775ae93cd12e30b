package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder exports per-command counters and latencies.
type Recorder struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRecorder registers the executor metrics on reg. A nil reg builds
// unregistered collectors.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		commands: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opsclaw_commands_total",
				Help: "Commands executed, by action and outcome",
			},
			[]string{"action", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "opsclaw_command_duration_seconds",
				Help:    "Command execution latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
	}
}

func (r *Recorder) observe(res Result, elapsed time.Duration) {
	if r == nil {
		return
	}
	action := actionLabel(res)
	r.commands.WithLabelValues(action, outcomeLabel(res)).Inc()
	r.duration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// actionLabel keeps label values to the known action set; model output may
// carry any string.
func actionLabel(res Result) string {
	if !res.Action.Known() {
		return "unknown"
	}
	return string(res.Action)
}

func outcomeLabel(res Result) string {
	switch {
	case res.Success:
		return "success"
	case res.Resolution == ResolutionNotFound:
		return "not_found"
	case res.Resolution == ResolutionAmbig:
		return "ambiguous"
	default:
		return "failure"
	}
}
