//go:build e2e

package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxClient reads back what the sinks wrote during a run.
type InfluxClient struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxClient assumes the server is reachable and already set up.
func NewInfluxClient(url, org, bucket, token string) *InfluxClient {
	c := influxdb2.NewClient(url, token)
	return &InfluxClient{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Count returns how many records of measurement carry the given run id.
func (c *InfluxClient) Count(ctx context.Context, measurement, runID string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q)
  |> range(start: -1h)
  |> filter(fn: (r) => r._measurement == %q and r.run_id == %q)`, c.bucket, measurement, runID)
	res, err := c.query.Query(ctx, flux)
	if err != nil {
		return 0, err
	}
	defer res.Close()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client.
func (c *InfluxClient) Close() { c.client.Close() }
