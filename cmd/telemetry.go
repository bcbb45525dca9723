package cmd

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// otelEnv enables in-process metrics collection when set to a non-empty value.
const otelEnv = "SIR_SIM_OTEL"

// newMeterProvider returns a meter provider backed by a manual reader when
// SIR_SIM_OTEL is set, and nils otherwise.
func newMeterProvider() (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	if os.Getenv(otelEnv) == "" {
		return nil, nil
	}
	reader := sdkmetric.NewManualReader()
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), reader
}

// collectTotals sums every int64 counter and counts histogram samples.
func collectTotals(ctx context.Context, reader *sdkmetric.ManualReader) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}
	totals := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					totals[m.Name] += dp.Value
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					totals[m.Name+".count"] += int64(dp.Count)
				}
			}
		}
	}
	return totals, nil
}

// reportMetrics logs the collected totals. No-op without a reader.
func reportMetrics(ctx context.Context, reader *sdkmetric.ManualReader) {
	if reader == nil {
		return
	}
	totals, err := collectTotals(ctx, reader)
	if err != nil {
		logrus.WithError(err).Warn("metrics: collect failed")
		return
	}
	fields := logrus.Fields{}
	for name, v := range totals {
		fields[name] = v
	}
	logrus.WithFields(fields).Info("metrics: batch totals")
}
