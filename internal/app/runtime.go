package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skobkin/mesh2aprs/internal/aprs"
	"github.com/skobkin/mesh2aprs/internal/bus"
	"github.com/skobkin/mesh2aprs/internal/config"
	"github.com/skobkin/mesh2aprs/internal/connectors"
	"github.com/skobkin/mesh2aprs/internal/domain"
	"github.com/skobkin/mesh2aprs/internal/gateway"
	"github.com/skobkin/mesh2aprs/internal/logging"
	"github.com/skobkin/mesh2aprs/internal/meshtastic"
	"github.com/skobkin/mesh2aprs/internal/persistence"
	"github.com/skobkin/mesh2aprs/internal/transport"
)

const shutdownStepTimeout = 5 * time.Second

// ReportStats counts gateway report outcomes since startup.
type ReportStats struct {
	Sent       int
	Suppressed int
	Failed     int
}

type Runtime struct {
	Ctx    context.Context
	cancel context.CancelFunc

	Paths  Paths
	Config config.AppConfig

	LogManager *logging.Manager
	Bus        *bus.PubSubBus

	NodeRepo  persistence.NodeRepository
	NodeStore *domain.NodeStore

	Session *aprs.Session
	Gateway *gateway.Gateway
	MQTT    *transport.MQTTSubscriber

	consumers []<-chan struct{}

	statusMu sync.RWMutex
	status   connectors.ConnectionStatus
	stats    ReportStats
}

func Initialize(parent context.Context, configPath string) (*Runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	paths, err := ResolvePaths(configPath, cfg.Storage.Path, cfg.Logging.File)
	if err != nil {
		return nil, err
	}
	dir, err := gateway.NewDirectory(directoryFromConfig(cfg.Nodes))
	if err != nil {
		return nil, err
	}
	decoder, err := meshtastic.NewDecoder(cfg.Meshtastic.Key)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(parent)
	rt := &Runtime{
		Ctx:    ctx,
		cancel: cancel,
		Paths:  paths,
		Config: cfg,
		status: ConnectionStatusFromConfig(cfg.APRS),
	}

	logMgr := logging.NewManager()
	logCfg := cfg.Logging
	logCfg.File = paths.LogFile
	if err := logMgr.Configure(logCfg); err != nil {
		_ = logMgr.Close()
		cancel()
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	rt.LogManager = logMgr
	slog.Info("starting mesh2aprs", "version", BuildVersion(), "build_date", BuildDateYMD(), "config", paths.ConfigFile)
	if len(dir) == 0 {
		slog.Warn("no nodes configured, nothing will be reported")
	}
	if cfg.Meshtastic.Key == "" {
		slog.Warn("no channel key configured, only unencrypted packets can be decoded")
	}

	repo, err := persistence.OpenNodeRepository(ctx, paths.StorageFile)
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("open node storage: %w", err)
	}
	rt.NodeRepo = repo

	store := domain.NewNodeStore(repo)
	if err := store.Load(ctx); err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.NodeStore = store
	slog.Info("node store loaded", "path", paths.StorageFile, "nodes", store.Len())

	b := bus.New(logMgr.Logger("bus"))
	rt.Bus = b
	rt.consumers = append(rt.consumers,
		bus.Consume(ctx, b, connectors.TopicAPRSStatus, rt.setStatus),
		bus.Consume(ctx, b, connectors.TopicReport, rt.countReport),
	)

	rt.Session = aprs.NewSession(logMgr.Logger("aprs"), aprs.Options{
		Transport: transport.NewIPTransport(cfg.APRS.Host, cfg.APRS.Port),
		Credentials: aprs.Credentials{
			Callsign: cfg.APRS.Callsign,
			Passcode: aprs.Passcode(cfg.APRS.Callsign),
			Filter:   cfg.APRS.Filter,
		},
		ClientName:    Name,
		ClientVersion: BuildVersion(),
		Bus:           b,
		LoginTimeout:  time.Duration(cfg.APRS.LoginTimeout) * time.Second,
	})
	rt.Session.Start(ctx)

	rt.Gateway = gateway.New(logMgr.Logger("gateway"), gateway.Options{
		Directory:      dir,
		Store:          store,
		Reporter:       rt.Session,
		Decoder:        decoder,
		UpdateInterval: time.Duration(cfg.UpdateInterval) * time.Second,
		Bus:            b,
	})

	rt.MQTT = transport.NewMQTTSubscriber(logMgr.Logger("mqtt"), transport.MQTTConfig{
		Host:     cfg.MQTT.Host,
		Port:     cfg.MQTT.Port,
		Username: cfg.MQTT.Username,
		Password: cfg.MQTT.Password,
		Topic:    cfg.MQTT.Topic,
		ClientID: mqttClientID(cfg.MQTT.ClientID),
	}, rt.Gateway.HandleMessage)
	if err := rt.MQTT.Start(ctx); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("start mqtt subscriber: %w", err)
	}

	return rt, nil
}

func directoryFromConfig(nodes map[string]config.NodeConfig) map[string]string {
	out := make(map[string]string, len(nodes))
	for id, node := range nodes {
		out[id] = node.Callsign
	}

	return out
}

func mqttClientID(configured string) string {
	if configured != "" {
		return configured
	}

	return Name + "-" + uuid.NewString()
}

func (r *Runtime) setStatus(status connectors.ConnectionStatus) {
	r.statusMu.Lock()
	prev := r.status
	r.status = status
	r.statusMu.Unlock()

	switch {
	case status.State == prev.State && status.Err == "":
		return
	case status.Err != "":
		slog.Warn("aprs-is status", "status", DescribeStatus(status))
	default:
		slog.Info("aprs-is status", "status", DescribeStatus(status))
	}
}

func (r *Runtime) countReport(ev connectors.ReportEvent) {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()

	switch ev.Outcome {
	case connectors.ReportSent:
		r.stats.Sent++
	case connectors.ReportSuppressed:
		r.stats.Suppressed++
	case connectors.ReportFailed:
		r.stats.Failed++
	}
}

// CurrentAPRSStatus returns the last APRS-IS status published by the session.
func (r *Runtime) CurrentAPRSStatus() connectors.ConnectionStatus {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	return r.status
}

func (r *Runtime) Stats() ReportStats {
	r.statusMu.RLock()
	defer r.statusMu.RUnlock()

	return r.stats
}

// Close stops every bus publisher and consumer before shutting the bus down,
// then releases storage and logging.
func (r *Runtime) Close() error {
	if r.cancel != nil {
		r.cancel()
	}
	if r.Session != nil {
		waitStopped("aprs-is session", r.Session.Done())
	}
	if r.MQTT != nil {
		waitStopped("mqtt subscriber", r.MQTT.Done())
	}
	for _, done := range r.consumers {
		waitStopped("bus consumer", done)
	}
	if r.Bus != nil {
		r.Bus.Close()
	}
	if r.NodeRepo != nil {
		if err := r.NodeRepo.Close(); err != nil {
			slog.Warn("close node storage", "error", err)
		}
	}
	if r.LogManager != nil {
		_ = r.LogManager.Close()
	}

	return nil
}

func waitStopped(what string, done <-chan struct{}) {
	timer := time.NewTimer(shutdownStepTimeout)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		slog.Warn("component did not stop in time", "component", what)
	}
}
