package export

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/hydrohome/sumpctl/internal/models"
)

const measurement = "sump_cycle"

// InfluxWriter writes one point per completed cycle.
type InfluxWriter struct {
	client influxdb2.Client
	api    api.WriteAPIBlocking
}

// NewInfluxWriter creates an InfluxDB write API client. Caller should
// call Close() when done.
func NewInfluxWriter(url, token, org, bucket string) *InfluxWriter {
	client := influxdb2.NewClient(url, token)
	return &InfluxWriter{client: client, api: client.WriteAPIBlocking(org, bucket)}
}

func (w *InfluxWriter) WriteCycle(ctx context.Context, rec models.CycleRecord) error {
	p := influxdb2.NewPointWithMeasurement(measurement).
		AddTag("weather", rec.Weather).
		AddField("working_time_s", rec.WorkingTimeS).
		AddField("total_time_s", rec.TotalTimeS).
		AddField("avg_power_w", rec.AvgPowerW).
		AddField("max_power_w", rec.MaxPowerW).
		AddField("min_power_w", rec.MinPowerW).
		AddField("next_off_time_s", rec.NextOffTimeS).
		AddField("cycle_count", rec.CycleCount).
		SetTime(rec.Time)
	if err := w.api.WritePoint(ctx, p); err != nil {
		return fmt.Errorf("influx write: %w", err)
	}
	return nil
}

// Health checks that InfluxDB is reachable and the token is valid.
func (w *InfluxWriter) Health(ctx context.Context) error {
	_, err := w.client.Health(ctx)
	return err
}

func (w *InfluxWriter) Close() {
	w.client.Close()
}
