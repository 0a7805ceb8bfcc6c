package media

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Observer recebe a telemetria de cada derivação.
type Observer interface {
	ObserveDerive(status Status, duration time.Duration)
}

// PrometheusObserver exporta duração e contagem de derivações por status.
type PrometheusObserver struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewPrometheusObserver registra as métricas em reg (DefaultRegisterer quando nil).
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "galeria"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "media",
		Name:      "derive_duration_seconds",
		Help:      "Latência da geração de miniaturas.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "media",
		Name:      "derive_total",
		Help:      "Derivações de miniatura por status.",
	}, []string{"status"})

	var err error
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if total, err = register(reg, total); err != nil {
		return nil, err
	}
	return &PrometheusObserver{duration: duration, total: total}, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("registrar métrica de mídia: %w", err)
	}
	return c, nil
}

func (o *PrometheusObserver) ObserveDerive(status Status, duration time.Duration) {
	if o == nil {
		return
	}
	label := status.Kind.String()
	o.duration.WithLabelValues(label).Observe(duration.Seconds())
	o.total.WithLabelValues(label).Inc()
}

type nopObserver struct{}

func (nopObserver) ObserveDerive(Status, time.Duration) {}
