package telemetry

import "go.opentelemetry.io/otel/metric"

// Instruments holds the counters flurecore's core packages record against,
// mirroring the teacher's doltMetrics package-level instrument struct
// registered once at init time so call sites never need to re-resolve
// them from Meter.
var Instruments struct {
	NoveltyBytes metric.Int64Counter
	IndexedFlakes metric.Int64Counter
	FuelExhausted metric.Int64Counter
}

func init() {
	Instruments.NoveltyBytes, _ = Meter.Int64Counter("flurecore.novelty.bytes",
		metric.WithDescription("bytes appended to a ledger's novelty set"),
		metric.WithUnit("By"),
	)
	Instruments.IndexedFlakes, _ = Meter.Int64Counter("flurecore.indexer.flakes",
		metric.WithDescription("flakes folded into the index tree by the indexer"),
		metric.WithUnit("{flake}"),
	)
	Instruments.FuelExhausted, _ = Meter.Int64Counter("flurecore.query.fuel_exhausted",
		metric.WithDescription("query/validation passes that raised FuelExhausted"),
		metric.WithUnit("{event}"),
	)
}
