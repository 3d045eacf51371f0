// Package alerts provides multi-channel alerting with suppression.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Severity represents the alert severity level
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert represents a system alert
type Alert struct {
	Title         string
	Message       string
	Severity      Severity
	CorrelationID string
	Timestamp     time.Time
	Metadata      map[string]interface{}
}

// Alerter is the interface for alert delivery channels
type Alerter interface {
	Send(ctx context.Context, alert Alert) error
}

// Default suppression policy, overridable via SetPolicy
const (
	DefaultSuppressionWindow = 15 * time.Minute
	DefaultMaxPerCorrelation = 5
)

// Manager fans alerts out to all registered channels. Identical alerts
// inside the suppression window are dropped, and each correlation id is
// capped so a flapping component cannot flood the channels.
type Manager struct {
	alerters []Alerter

	mu             sync.Mutex
	suppression    time.Duration
	maxPerCorr     int
	lastSent       map[string]time.Time
	perCorrelation map[string]int
	now            func() time.Time
}

// NewManager creates an alert manager with the given channels
func NewManager(alerters ...Alerter) *Manager {
	return &Manager{
		alerters:       alerters,
		suppression:    DefaultSuppressionWindow,
		maxPerCorr:     DefaultMaxPerCorrelation,
		lastSent:       make(map[string]time.Time),
		perCorrelation: make(map[string]int),
		now:            time.Now,
	}
}

// SetPolicy adjusts the suppression window and per-correlation cap.
// Zero values keep the current setting.
func (m *Manager) SetPolicy(suppression time.Duration, maxPerCorrelation int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if suppression > 0 {
		m.suppression = suppression
	}
	if maxPerCorrelation > 0 {
		m.maxPerCorr = maxPerCorrelation
	}
}

// AddAlerter registers an additional delivery channel
func (m *Manager) AddAlerter(a Alerter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alerters = append(m.alerters, a)
}

// suppressionKey identifies "the same alert" for dedup purposes
func suppressionKey(alert Alert) string {
	if alert.CorrelationID != "" {
		return alert.CorrelationID + "/" + alert.Title
	}
	return string(alert.Severity) + "/" + alert.Title
}

// shouldSend applies the suppression window and correlation cap
func (m *Manager) shouldSend(alert Alert) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := suppressionKey(alert)
	now := m.now()

	if last, ok := m.lastSent[key]; ok && now.Sub(last) < m.suppression {
		log.Debug().
			Str("alert_title", alert.Title).
			Dur("since_last", now.Sub(last)).
			Msg("Alert suppressed inside suppression window")
		return false
	}

	if alert.CorrelationID != "" {
		if m.perCorrelation[alert.CorrelationID] >= m.maxPerCorr {
			log.Debug().
				Str("correlation_id", alert.CorrelationID).
				Int("max", m.maxPerCorr).
				Msg("Alert dropped: correlation cap reached")
			return false
		}
		m.perCorrelation[alert.CorrelationID]++
	}

	m.lastSent[key] = now
	return true
}

// Send delivers an alert to all channels. Delivery errors are logged per
// channel and the last one is returned.
func (m *Manager) Send(ctx context.Context, alert Alert) error {
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now()
	}

	if !m.shouldSend(alert) {
		return nil
	}

	var lastErr error
	for _, alerter := range m.alerters {
		if err := alerter.Send(ctx, alert); err != nil {
			log.Error().
				Err(err).
				Str("alert_title", alert.Title).
				Str("alert_severity", string(alert.Severity)).
				Msg("Failed to send alert")
			lastErr = err
		}
	}
	return lastErr
}

// SendCritical sends a critical severity alert
func (m *Manager) SendCritical(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityCritical,
		Metadata: metadata,
	})
}

// SendWarning sends a warning severity alert
func (m *Manager) SendWarning(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityWarning,
		Metadata: metadata,
	})
}

// SendInfo sends an informational alert
func (m *Manager) SendInfo(ctx context.Context, title, message string, metadata map[string]interface{}) error {
	return m.Send(ctx, Alert{
		Title:    title,
		Message:  message,
		Severity: SeverityInfo,
		Metadata: metadata,
	})
}

// LogAlerter writes alerts to the structured log
type LogAlerter struct{}

// NewLogAlerter creates a new log-based alerter
func NewLogAlerter() *LogAlerter {
	return &LogAlerter{}
}

// Send writes the alert at a level matching its severity
func (l *LogAlerter) Send(ctx context.Context, alert Alert) error {
	var event = log.Info()
	switch alert.Severity {
	case SeverityCritical:
		event = log.Error()
	case SeverityWarning:
		event = log.Warn()
	}

	for key, value := range alert.Metadata {
		event = event.Interface(key, value)
	}

	event.
		Str("alert_title", alert.Title).
		Str("alert_severity", string(alert.Severity)).
		Time("alert_time", alert.Timestamp).
		Msg(fmt.Sprintf("ALERT: %s", alert.Message))

	return nil
}

// Default global alert manager (can be replaced with custom configuration)
var defaultManager = NewManager(NewLogAlerter())

// GetDefaultManager returns the default alert manager
func GetDefaultManager() *Manager {
	return defaultManager
}

// SetDefaultManager sets the default alert manager
func SetDefaultManager(manager *Manager) {
	defaultManager = manager
}

// Helper functions for common platform alerts

// AlertSyncFailed reports a failed inventory sync for a marketplace
func AlertSyncFailed(ctx context.Context, marketplace string, failed, total int) {
	defaultManager.Send(ctx, Alert{
		Title:         "Inventory Sync Failed",
		Message:       fmt.Sprintf("Sync to %s failed for %d of %d listings", marketplace, failed, total),
		Severity:      SeverityWarning,
		CorrelationID: "sync/" + marketplace,
		Metadata: map[string]interface{}{
			"marketplace": marketplace,
			"failed":      failed,
			"total":       total,
		},
	})
}

// AlertFulfillmentFailed reports a fulfillment that a marketplace rejected
func AlertFulfillmentFailed(ctx context.Context, orderID, marketplace string, reasons []string) {
	defaultManager.Send(ctx, Alert{
		Title:         "Order Fulfillment Failed",
		Message:       fmt.Sprintf("Order %s on %s could not be fulfilled: %v", orderID, marketplace, reasons),
		Severity:      SeverityCritical,
		CorrelationID: "order/" + orderID,
		Metadata: map[string]interface{}{
			"order_id":    orderID,
			"marketplace": marketplace,
			"reasons":     reasons,
		},
	})
}

// AlertBudgetExceeded reports the daily model budget being exhausted
func AlertBudgetExceeded(ctx context.Context, spent, budget float64) {
	defaultManager.SendCritical(ctx, "Daily Model Budget Exceeded", fmt.Sprintf(
		"Spent $%.2f of the $%.2f daily budget; model calls now degrade to fallbacks", spent, budget,
	), map[string]interface{}{
		"spent":  spent,
		"budget": budget,
	})
}

// AlertAgentDegraded reports an agent whose success rate fell below target
func AlertAgentDegraded(ctx context.Context, agentID string, successRate float64) {
	defaultManager.Send(ctx, Alert{
		Title:         "Agent Performance Degraded",
		Message:       fmt.Sprintf("Agent %s success rate dropped to %.0f%%", agentID, successRate*100),
		Severity:      SeverityWarning,
		CorrelationID: "agent/" + agentID,
		Metadata: map[string]interface{}{
			"agent_id":     agentID,
			"success_rate": successRate,
		},
	})
}
