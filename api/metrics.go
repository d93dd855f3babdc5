package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// mutationRequestMetrics times the stages of a write request so slow
// mutations can be attributed to auth, decode, or the pipeline.
type mutationRequestMetrics struct {
	logger         *log.Logger
	route          string
	start          time.Time
	decodeDuration time.Duration
	mutateDuration time.Duration
	errorStage     string
}

func newMutationRequestMetrics(logger *log.Logger, route string) *mutationRequestMetrics {
	return &mutationRequestMetrics{
		logger: logger,
		route:  route,
		start:  time.Now(),
	}
}

func (m *mutationRequestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decodeDuration = d
}

func (m *mutationRequestMetrics) ObserveMutate(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mutateDuration = d
}

func (m *mutationRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *mutationRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.mutateDuration > 0 {
		fields["mutate_ms"] = durationToMillis(m.mutateDuration)
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("mutation.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
