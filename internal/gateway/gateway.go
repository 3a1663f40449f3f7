package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/skobkin/mesh2aprs/internal/aprs"
	"github.com/skobkin/mesh2aprs/internal/bus"
	"github.com/skobkin/mesh2aprs/internal/connectors"
	"github.com/skobkin/mesh2aprs/internal/domain"
	"github.com/skobkin/mesh2aprs/internal/meshtastic"
)

const commentPrefix = "Meshtastic Node !"

type Store interface {
	Get(nodeID string) (domain.NodeRecord, bool)
	Update(ctx context.Context, nodeID string, u domain.NodeUpdate) (domain.NodeRecord, error)
}

type Reporter interface {
	Send(ctx context.Context, line string) error
}

type Decoder interface {
	Decode(payload []byte) (domain.Telemetry, error)
}

type Options struct {
	Directory      Directory
	Store          Store
	Reporter       Reporter
	Decoder        Decoder
	UpdateInterval time.Duration
	Now            func() time.Time
	Bus            bus.MessageBus
}

// Gateway relays positions of configured mesh nodes to APRS-IS, at most once
// per update interval per node.
type Gateway struct {
	logger   *slog.Logger
	dir      Directory
	store    Store
	reporter Reporter
	decoder  Decoder
	interval time.Duration
	now      func() time.Time
	bus      bus.MessageBus

	missingKeyOnce sync.Once
}

func New(logger *slog.Logger, opts Options) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Bus == nil {
		opts.Bus = bus.Nop{}
	}
	if opts.Directory == nil {
		opts.Directory = Directory{}
	}

	return &Gateway{
		logger:   logger,
		dir:      opts.Directory,
		store:    opts.Store,
		reporter: opts.Reporter,
		decoder:  opts.Decoder,
		interval: opts.UpdateInterval,
		now:      opts.Now,
		bus:      opts.Bus,
	}
}

// HandleMessage decodes one MQTT payload and handles the resulting record.
// Undecodable payloads are dropped.
func (g *Gateway) HandleMessage(ctx context.Context, topic string, payload []byte) {
	t, err := g.decoder.Decode(payload)
	if err != nil {
		var decodeErr *meshtastic.DecodeError
		switch {
		case errors.Is(err, meshtastic.ErrMissingKey):
			g.missingKeyOnce.Do(func() {
				g.logger.Error("encrypted packets received but no channel key configured", "topic", topic, "error", err)
			})
		case errors.As(err, &decodeErr):
			g.logger.Debug("dropping undecodable payload", "topic", topic, "size", len(payload), "error", err)
		default:
			g.logger.Warn("dropping payload", "topic", topic, "size", len(payload), "error", err)
		}

		return
	}
	if t == nil {
		return
	}

	g.Handle(ctx, t)
}

// Handle applies one decoded record. Records of nodes missing from the
// directory are ignored. Failures are logged, never returned.
func (g *Gateway) Handle(ctx context.Context, t domain.Telemetry) {
	nodeID := t.Node()
	callsign, ok := g.dir.Callsign(nodeID)
	if !ok {
		g.logger.Debug("ignoring record of unconfigured node", "node_id", nodeID)
		return
	}

	switch rec := t.(type) {
	case domain.Identity:
		g.handleIdentity(ctx, rec)
	case domain.Position:
		g.handlePosition(ctx, rec, callsign)
	}
}

func (g *Gateway) handleIdentity(ctx context.Context, id domain.Identity) {
	if _, err := g.store.Update(ctx, id.NodeID, domain.IdentityUpdate(id)); err != nil {
		g.logger.Error("store node identity failed", "node_id", id.NodeID, "error", err)
		return
	}
	g.logger.Debug("node identity updated", "node_id", id.NodeID, "long_name", id.LongName, "hw_model", id.HwModel)
}

func (g *Gateway) handlePosition(ctx context.Context, pos domain.Position, callsign string) {
	now := g.now()
	seen := now.Add(-(g.interval + time.Second))
	comment := commentPrefix + pos.NodeID
	rec, found := g.store.Get(pos.NodeID)
	if found {
		if !rec.SeenAt.IsZero() {
			seen = rec.SeenAt
		}
		if rec.HwModel != "" {
			comment += " | " + rec.HwModel
		}
	}

	event := connectors.ReportEvent{
		NodeID:    pos.NodeID,
		Callsign:  callsign,
		Outcome:   connectors.ReportSuppressed,
		Timestamp: now,
	}
	if seen.Before(now.Add(-g.interval)) {
		event.Line = aprs.ReportLine(callsign, aprs.FormatPosition(pos.Latitude, pos.Longitude, comment))
		if err := g.reporter.Send(ctx, event.Line); err != nil {
			event.Outcome = connectors.ReportFailed
			event.Err = err.Error()
			g.logger.Error("position report failed", "node_id", pos.NodeID, "callsign", callsign, "error", err)
		} else {
			event.Outcome = connectors.ReportSent
			g.logger.Info("position reported", "node_id", pos.NodeID, "node", domain.NodeDisplayName(pos.NodeID, rec), "callsign", callsign)
		}
	} else {
		g.logger.Debug("position suppressed by rate limit", "node_id", pos.NodeID, "last_seen", seen)
	}
	g.bus.Publish(connectors.TopicReport, event)

	if _, err := g.store.Update(ctx, pos.NodeID, domain.SeenUpdate(now)); err != nil {
		g.logger.Error("store last seen failed", "node_id", pos.NodeID, "error", err)
	}
}
