package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/tavi-ops/dispatchd/core/metrics"
	"github.com/tavi-ops/dispatchd/infra/logger"
)

// InfluxSink writes dispatch pipeline events to an InfluxDB instance using
// the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and returns a
// NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordDispatchOutcome writes each confirmation attempt as line protocol.
func (s *InfluxSink) RecordDispatchOutcome(outcomes []coremetrics.DispatchOutcome) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, o := range outcomes {
		p := write.NewPointWithMeasurement("dispatch_outcome").
			AddTag("work_order_id", o.WorkOrderID.String()).
			AddTag("vendor_id", o.VendorID.String()).
			AddTag("stage", o.Stage).
			AddTag("accepted", strconv.FormatBool(o.Accepted)).
			AddTag("component", "automation").
			AddField("attempt", o.Attempt).
			AddField("price", round3(o.Price)).
			AddField("composite_score", round3(o.Composite)).
			SetTime(o.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordDiscovery persists the result of a discovery cycle.
func (s *InfluxSink) RecordDiscovery(ev coremetrics.DiscoveryEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("discovery_event").
		AddTag("work_order_id", ev.WorkOrderID.String()).
		AddTag("trade", ev.Trade).
		AddTag("from_live", strconv.FormatBool(ev.FromLive)).
		AddField("vendors", ev.Vendors).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordQuote writes a received quote snapshot.
func (s *InfluxSink) RecordQuote(ev coremetrics.QuoteEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("quote_received").
		AddTag("work_order_id", ev.WorkOrderID.String()).
		AddTag("vendor_id", ev.VendorID.String()).
		AddTag("channel", ev.Channel).
		AddField("price", round3(ev.Price)).
		AddField("composite_score", round3(ev.Composite)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordEscalation writes an operator escalation event.
func (s *InfluxSink) RecordEscalation(ev coremetrics.EscalationEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("conversation_escalated").
		AddTag("work_order_id", ev.WorkOrderID.String()).
		AddTag("vendor_id", ev.VendorID.String()).
		AddTag("channel", ev.Channel).
		AddField("reason", ev.Reason).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
