package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewCheckoutMetrics(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	if metrics == nil {
		t.Fatal("newCheckoutMetricsWithRegisterer should not return nil")
	}

	if metrics.transitions == nil {
		t.Error("transitions counter vec should not be nil")
	}

	if metrics.transitionFails == nil {
		t.Error("transitionFails counter vec should not be nil")
	}

	if metrics.plansBuilt == nil {
		t.Error("plansBuilt counter should not be nil")
	}

	if metrics.plansFailed == nil {
		t.Error("plansFailed counter should not be nil")
	}

	if metrics.authorizations == nil {
		t.Error("authorizations counter should not be nil")
	}

	if metrics.captures == nil {
		t.Error("captures counter should not be nil")
	}

	if metrics.refunds == nil {
		t.Error("refunds counter should not be nil")
	}

	if metrics.webhookReplays == nil {
		t.Error("webhookReplays counter should not be nil")
	}

	if metrics.transitionDuration == nil {
		t.Error("transitionDuration histogram vec should not be nil")
	}

	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}

	if metrics.timelineEvents == nil {
		t.Error("timelineEvents counter should not be nil")
	}
}

func TestNewCheckoutMetricsReregistration(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newCheckoutMetricsWithRegisterer(reg)
	second := newCheckoutMetricsWithRegisterer(reg)

	// Повторная регистрация возвращает уже существующие коллекторы.
	if first.plansBuilt != second.plansBuilt {
		t.Error("re-registration should reuse the existing counter")
	}
	if first.transitions != second.transitions {
		t.Error("re-registration should reuse the existing counter vec")
	}
}

func TestRecordTransition(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordTransition("confirmed")
	metrics.RecordTransition("confirmed")
	metrics.RecordTransitionFailure("complete")

	metric := &dto.Metric{}
	if err := metrics.transitions.WithLabelValues("confirmed").Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected counter value 2.0, got %f", metric.Counter.GetValue())
	}

	failMetric := &dto.Metric{}
	if err := metrics.transitionFails.WithLabelValues("complete").Write(failMetric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if failMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected counter value 1.0, got %f", failMetric.Counter.GetValue())
	}
}

func TestRecordTransitionDuration(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordTransitionDuration("confirmed", 15*time.Millisecond)

	observer, err := metrics.transitionDuration.GetMetricWithLabelValues("confirmed")
	if err != nil {
		t.Fatalf("failed to get histogram: %v", err)
	}

	metric := &dto.Metric{}
	if err := observer.(prometheus.Histogram).Write(metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 1 {
		t.Errorf("expected 1 observation, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordPaymentCounters(t *testing.T) {
	metrics := newCheckoutMetricsWithRegisterer(prometheus.NewRegistry())

	metrics.RecordAuthorization()
	metrics.RecordCapture()
	metrics.RecordRefund()
	metrics.RecordWebhookReplay()
	metrics.RecordWebhookReplay()

	metric := &dto.Metric{}
	if err := metrics.webhookReplays.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 replays, got %f", metric.Counter.GetValue())
	}
}
