// Package events is the process-wide event bus. It runs an embedded
// NATS server with an in-process connection: no socket is opened, but
// the subjects and payloads match what an external NATS deployment
// would carry, so the excluded UI/notification layer can attach either
// way.
//
// The bus is created once at startup and torn down at shutdown. It is
// never re-created mid-process. Delivery is fire-and-forget: publishing
// never blocks the request path and subscriber panics are contained.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Stable subjects exposed to the UI/notification layer.
const (
	SubjectProjectCreated    = "project.created"
	SubjectProjectUpdated    = "project.updated"
	SubjectQuestionGenerated = "question.generated"
	SubjectCodeGenerated     = "code.generated"
	SubjectConflictDetected  = "conflict.detected"
	SubjectKnowledgeAdded    = "knowledge.added"
	SubjectUsageRecorded     = "usage.recorded"
)

const readyTimeout = 5 * time.Second

// Bus wraps the embedded server and its in-process connection.
type Bus struct {
	ns     *server.Server
	nc     *nats.Conn
	logger *zap.Logger
}

// New starts the embedded server and connects in process.
func New(logger *zap.Logger) (*Bus, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("events")

	ns, err := server.NewServer(&server.Options{
		ServerName: "tutord-events",
		DontListen: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedded nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats server not ready after %s", readyTimeout)
	}

	nc, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		ns.Shutdown()
		return nil, fmt.Errorf("connecting to embedded nats server: %w", err)
	}

	logger.Info("event bus started")
	return &Bus{ns: ns, nc: nc, logger: logger}, nil
}

// Publish emits a JSON-encoded event. Errors are returned for logging
// but emission failures must never fail the originating request.
func (b *Bus) Publish(subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding event %s: %w", subject, err)
	}
	if err := b.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publishing %s: %w", subject, err)
	}
	b.logger.Debug("event published", zap.String("subject", subject))
	return nil
}

// Subscribe registers a handler for a subject ("*" and ">" wildcards
// work as in NATS). Handler panics are caught and logged, never
// propagated to the emitting side.
func (b *Bus) Subscribe(subject string, handler func(subject string, data []byte)) (*nats.Subscription, error) {
	sub, err := b.nc.Subscribe(subject, func(msg *nats.Msg) {
		defer func() {
			if r := recover(); r != nil {
				b.logger.Error("event handler panicked",
					zap.String("subject", msg.Subject),
					zap.Any("panic", r))
			}
		}()
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribing to %s: %w", subject, err)
	}
	return sub, nil
}

// Flush waits for published events to be processed by the server.
// Tests use it to make delivery assertions deterministic.
func (b *Bus) Flush() error {
	return b.nc.Flush()
}

// Close drains the connection and shuts the embedded server down.
func (b *Bus) Close() {
	if err := b.nc.Drain(); err != nil {
		b.logger.Warn("draining event bus connection", zap.Error(err))
	}
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
	b.logger.Info("event bus stopped")
}
