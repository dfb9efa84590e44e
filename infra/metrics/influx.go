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

	coremetrics "github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/infra/logger"
)

// InfluxSink writes assignment events to an InfluxDB instance using the
// official client.
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
// NopSink if the health check fails, so a missing database never blocks
// dispatching.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
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

// RecordAssignment writes the decision as a line protocol point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_event").
		AddTag("dispatch_id", ev.DispatchID).
		AddTag("strategy", string(ev.Strategy)).
		AddTag("fallback", strconv.FormatBool(ev.Fallback)).
		AddTag("severity", strconv.Itoa(ev.Severity)).
		AddTag("component", "dispatch_manager")
	if ev.Failed {
		p = p.AddTag("error_kind", ev.ErrorKind).
			AddField("failed", true)
	} else {
		p = p.AddTag("vehicle_id", ev.VehicleID).
			AddField("distance_km", round3(ev.DistanceKm)).
			AddField("confidence", round3(ev.Confidence))
	}
	p = p.AddField("duration_ms", round3(ev.Duration.Seconds()*1000)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordDriftIssue writes a drift finding.
func (s *InfluxSink) RecordDriftIssue(ev coremetrics.DriftIssueEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("drift_issue").
		AddTag("check", ev.Check).
		AddTag("type", ev.Type).
		AddTag("severity", ev.Severity).
		AddTag("component", "drift_monitor").
		AddField("count", 1).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() { s.client.Close() }

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
