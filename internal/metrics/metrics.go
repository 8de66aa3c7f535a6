package metrics

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Recorder observes settled authentication commands.
type Recorder interface {
	CommandSettled(kind, outcome string, elapsed time.Duration)
}

// Nop discards every observation.
type Nop struct{}

func (Nop) CommandSettled(string, string, time.Duration) {}

// Prometheus exports command counts and provider latency.
type Prometheus struct {
	commands *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

var _ Recorder = (*Prometheus)(nil)

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "auth",
			Name:      "commands_total",
			Help:      "Authentication commands by kind and outcome.",
		}, []string{"kind", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "auth",
			Name:      "command_duration_seconds",
			Help:      "Time from command start to settlement.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
	}

	for _, c := range []prometheus.Collector{p.commands, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, errors.Wrap(err, "[NewPrometheus] register collector")
		}
	}
	return p, nil
}

func (p *Prometheus) CommandSettled(kind, outcome string, elapsed time.Duration) {
	p.commands.WithLabelValues(kind, outcome).Inc()
	p.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}
