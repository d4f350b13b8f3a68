package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-shark/internal/infrastructure/mqtt"
)

// defaultHealthInterval is how often health is published when no interval
// is configured.
const defaultHealthInterval = 30 * time.Second

// HealthReporter periodically publishes the engine's condition to the
// health topic so supervisors can watch the bridge without scraping the
// admin API.
type HealthReporter struct {
	engine    *Engine
	bus       Publisher
	topics    mqtt.Topics
	version   string
	interval  time.Duration
	startTime time.Time
	qos       byte
	logger    *logging.Logger

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// healthMessage is the payload published to the health topic.
type healthMessage struct {
	Status        string    `json:"status"`
	Reason        string    `json:"reason,omitempty"`
	EngineLevel   string    `json:"engine_level"`
	EngineMessage string    `json:"engine_message,omitempty"`
	DeviceCount   int       `json:"device_count"`
	UptimeSeconds int64     `json:"uptime_seconds"`
	Version       string    `json:"version"`
	TS            time.Time `json:"ts"`
}

// NewHealthReporter creates a reporter over the given engine and bus.
func NewHealthReporter(engine *Engine, bus Publisher, version string, interval time.Duration, qos byte, logger *logging.Logger) *HealthReporter {
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	return &HealthReporter{
		engine:    engine,
		bus:       bus,
		version:   version,
		interval:  interval,
		startTime: time.Now(),
		qos:       qos,
		logger:    logger,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting. Call Stop to shut down.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop gracefully stops reporting, publishing a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()
		h.publish("stopping", "bridge shutting down")
	})
}

// PublishNow publishes the current health immediately.
func (h *HealthReporter) PublishNow() {
	status, reason := h.determineStatus()
	h.publish(status, reason)
}

// reportLoop publishes on the configured interval.
func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.PublishNow()

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			h.PublishNow()
		}
	}
}

// determineStatus grades the bridge from the bus connection and the
// engine's aggregate status.
func (h *HealthReporter) determineStatus() (status, reason string) {
	if h.bus == nil || !h.bus.IsConnected() {
		return "degraded", "MQTT disconnected"
	}

	engine := h.engine.Status()
	switch engine.Level {
	case LevelOK, LevelInfo:
		return "healthy", ""
	case LevelWarning:
		return "degraded", engine.Message
	default:
		return "unhealthy", engine.Message
	}
}

// publish sends one health message (QoS per config, retained).
func (h *HealthReporter) publish(status, reason string) {
	if h.bus == nil {
		return
	}

	engine := h.engine.Status()
	msg := healthMessage{
		Status:        status,
		Reason:        reason,
		EngineLevel:   engine.Level.String(),
		EngineMessage: engine.Message,
		DeviceCount:   len(h.engine.Devices()),
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Version:       h.version,
		TS:            time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := h.bus.Publish(h.topics.BridgeHealth(), payload, h.qos, true); err != nil {
		h.logger.Warn("health publish failed", "error", err)
	}
}
