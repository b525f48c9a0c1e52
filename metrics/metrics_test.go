package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write counter: %v", err)
	}
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("write gauge: %v", err)
	}
	return m.GetGauge().GetValue()
}

func TestObserveTickDurationAndOverrun(t *testing.T) {
	reg := New(prometheus.NewRegistry())

	reg.ObserveTickDuration(5 * time.Millisecond)
	reg.ObserveOverrun()
	reg.ObserveOverrun()

	if got := counterValue(t, reg.TickOverrun); got != 2 {
		t.Fatalf("TickOverrun = %v, want 2", got)
	}
}

func TestObserveTPSSetsGauge(t *testing.T) {
	reg := New(prometheus.NewRegistry())
	reg.ObserveTPS(19.8)
	if got := gaugeValue(t, reg.TPS); got != 19.8 {
		t.Fatalf("TPS gauge = %v, want 19.8", got)
	}
}

func TestObserveChunkLoadPartitionsByOutcome(t *testing.T) {
	reg := New(prometheus.NewRegistry())
	reg.ObserveChunkLoad(true)
	reg.ObserveChunkLoad(true)
	reg.ObserveChunkLoad(false)

	if got := counterValue(t, reg.ChunkLoads.WithLabelValues("success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := counterValue(t, reg.ChunkLoads.WithLabelValues("failure")); got != 1 {
		t.Fatalf("failure count = %v, want 1", got)
	}
}
