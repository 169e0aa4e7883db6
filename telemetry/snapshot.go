package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// Point is one flattened metric, keyed by instrument name and the
// attribute set it carries — the unit a JSON metrics snapshot needs
// since no Prometheus exposition format is available in the stack.
type Point struct {
	Name       string            `json:"name"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Value      float64           `json:"value"`
	Count      uint64            `json:"count,omitempty"`
}

// Snapshot pulls the manual reader's current aggregation and flattens
// every counter/histogram data point into a JSON-friendly slice, for
// GET /metrics.
func (m *Meter) Snapshot(ctx context.Context) ([]Point, error) {
	var rm metricdata.ResourceMetrics
	if err := m.reader.Collect(ctx, &rm); err != nil {
		return nil, err
	}

	var points []Point
	for _, sm := range rm.ScopeMetrics {
		for _, metricVal := range sm.Metrics {
			points = append(points, flatten(metricVal)...)
		}
	}
	return points, nil
}

func flatten(metricVal metricdata.Metrics) []Point {
	switch data := metricVal.Data.(type) {
	case metricdata.Sum[int64]:
		return sumPoints(metricVal.Name, data.DataPoints)
	case metricdata.Sum[float64]:
		return sumPointsFloat(metricVal.Name, data.DataPoints)
	case metricdata.Histogram[float64]:
		return histogramPoints(metricVal.Name, data.DataPoints)
	case metricdata.Histogram[int64]:
		return histogramPointsInt(metricVal.Name, data.DataPoints)
	default:
		return nil
	}
}

func sumPoints(name string, dps []metricdata.DataPoint[int64]) []Point {
	points := make([]Point, 0, len(dps))
	for _, dp := range dps {
		points = append(points, Point{Name: name, Attributes: attrsToMap(dp.Attributes), Value: float64(dp.Value)})
	}
	return points
}

func sumPointsFloat(name string, dps []metricdata.DataPoint[float64]) []Point {
	points := make([]Point, 0, len(dps))
	for _, dp := range dps {
		points = append(points, Point{Name: name, Attributes: attrsToMap(dp.Attributes), Value: dp.Value})
	}
	return points
}

func histogramPoints(name string, dps []metricdata.HistogramDataPoint[float64]) []Point {
	points := make([]Point, 0, len(dps))
	for _, dp := range dps {
		points = append(points, Point{
			Name:       name,
			Attributes: attrsToMap(dp.Attributes),
			Value:      dp.Sum,
			Count:      dp.Count,
		})
	}
	return points
}

func histogramPointsInt(name string, dps []metricdata.HistogramDataPoint[int64]) []Point {
	points := make([]Point, 0, len(dps))
	for _, dp := range dps {
		points = append(points, Point{
			Name:       name,
			Attributes: attrsToMap(dp.Attributes),
			Value:      float64(dp.Sum),
			Count:      dp.Count,
		})
	}
	return points
}

func attrsToMap(set attribute.Set) map[string]string {
	if set.Len() == 0 {
		return nil
	}
	out := make(map[string]string, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}
