// Package metrics exposes Prometheus collectors for OCR pipeline runs.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tendant/simple-content-ocr/pkg/ocr"
)

const namespace = "ocr"

// Recorder implements ocr.Observer on top of Prometheus collectors.
type Recorder struct {
	runs         *prometheus.CounterVec
	stages       *prometheus.HistogramVec
	orientations *prometheus.CounterVec
}

var _ ocr.Observer = (*Recorder)(nil)

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Pipeline runs by outcome.",
		}, []string{"outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_stage_duration_seconds",
			Help:      "Time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		orientations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orientation_hints_total",
			Help:      "EXIF orientation hints seen, \"none\" when absent.",
		}, []string{"code"}),
	}
	for _, c := range []prometheus.Collector{r.runs, r.stages, r.orientations} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// ObserveStage records a stage duration.
func (r *Recorder) ObserveStage(stage string, d time.Duration) {
	r.stages.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveRun counts a finished run.
func (r *Recorder) ObserveRun(outcome string) {
	r.runs.WithLabelValues(outcome).Inc()
}

// ObserveOrientation counts the orientation hint of a decoded image.
func (r *Recorder) ObserveOrientation(o ocr.Orientation, ok bool) {
	code := "none"
	if ok {
		code = strconv.Itoa(int(o))
	}
	r.orientations.WithLabelValues(code).Inc()
}
