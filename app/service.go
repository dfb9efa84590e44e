// Package app wires the configured components into a runnable service.
package app

import (
	"context"
	"fmt"

	"github.com/emsgrid/dispatchd/config"
	"github.com/emsgrid/dispatchd/core/alert"
	"github.com/emsgrid/dispatchd/core/dispatch"
	"github.com/emsgrid/dispatchd/core/dispatch/logging"
	"github.com/emsgrid/dispatchd/core/drift"
	"github.com/emsgrid/dispatchd/core/history"
	coremetrics "github.com/emsgrid/dispatchd/core/metrics"
	"github.com/emsgrid/dispatchd/infra/logger"
	"github.com/emsgrid/dispatchd/infra/metrics"
	"github.com/emsgrid/dispatchd/infra/mqtt"
	"github.com/emsgrid/dispatchd/infra/prediction"
	"github.com/emsgrid/dispatchd/internal/eventbus"
)

// Service orchestrates the dispatch pipeline, the drift runner and the MQTT
// transport.
type Service struct {
	Manager *dispatch.Manager
	Runner  *drift.Runner

	mqtt     *mqtt.Client
	mqttCfg  mqtt.Config
	store    logging.OutcomeStore
	recorder history.Recorder
	bus      eventbus.EventBus
	log      logger.Logger
	promAddr string
}

// New creates a Service from the configuration. The MQTT connection is
// deferred to Run so construction never blocks on the broker.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	store, err := newOutcomeStore(cfg.Outcomes)
	if err != nil {
		return nil, fmt.Errorf("outcome store: %w", err)
	}
	recorder, err := newHistoryRecorder(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("history recorder: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusAddr != "" {
		sink, err := metrics.NewPromSink()
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.Influx.Enabled() {
		in := cfg.Metrics.Influx
		sinks = append(sinks, metrics.NewInfluxSinkWithFallback(in.URL, in.Token, in.Org, in.Bucket))
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()

	router, err := dispatch.NewRouter(cfg.Router, store, logger.New("router"))
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	engine := dispatch.NewRuleEngine(cfg.Engine, recorder, logger.New("rule-engine"))
	pred := prediction.NewHTTPClient(cfg.Prediction)
	learned := dispatch.NewLearnedClient(cfg.Learned, pred, engine, logger.New("learned-client"))

	manager, err := dispatch.NewManager(router, engine, learned, sink, bus, logg)
	if err != nil {
		return nil, fmt.Errorf("dispatch manager: %w", err)
	}

	monitor := drift.NewMonitor(cfg.Drift, store, logger.New("drift-monitor"))
	alerts := alert.MultiSink{alert.NewLogSink(logger.New("alerts")), alert.NewBusSink(bus)}
	var driftRec coremetrics.DriftRecorder
	if rec, ok := sink.(coremetrics.DriftRecorder); ok {
		driftRec = rec
	}
	runner := drift.NewRunner(cfg.Drift, monitor, store, alerts, driftRec, bus, logger.New("drift-runner"))
	runner.WatchHealth(pred)

	return &Service{
		Manager:  manager,
		Runner:   runner,
		mqttCfg:  cfg.MQTT,
		store:    store,
		recorder: recorder,
		bus:      bus,
		log:      logg,
		promAddr: cfg.Metrics.PrometheusAddr,
	}, nil
}

func newOutcomeStore(cfg config.OutcomeLogConfig) (logging.OutcomeStore, error) {
	if cfg.Backend == "memory" {
		return logging.NewMemoryStore(), nil
	}
	return logging.NewJSONLStore(cfg.Path, cfg.ValidationPath)
}

func newHistoryRecorder(cfg config.HistoryConfig) (history.Recorder, error) {
	if !cfg.Enabled {
		return history.NopRecorder{}, nil
	}
	return history.NewJSONLRecorder(cfg.Path)
}

// Run connects the transport and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	client, err := mqtt.NewClient(s.mqttCfg, s.Manager)
	if err != nil {
		return fmt.Errorf("mqtt client: %w", err)
	}
	s.mqtt = client

	go s.Runner.Run(ctx)
	if s.promAddr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	s.log.Infof("dispatchd running, requests on %s", s.mqttCfg.RequestTopic)
	<-ctx.Done()
	return nil
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqtt != nil {
		s.mqtt.Disconnect()
	}
	s.bus.Close()
	if err := s.recorder.Close(); err != nil {
		return err
	}
	return s.store.Close()
}
