// Package testutil provides shared test doubles: a capturing logger, a
// scriptable engine and theory oracle, and PGN fixtures.
package testutil

import (
	"sync"

	"github.com/turtacn/FairPlay-Intelligence/internal/infrastructure/monitoring/logging"
)

// MockLogger implements logging.Logger and records every entry so tests can
// assert on logging behavior. Fatal records like any other level instead of
// exiting.
type MockLogger struct {
	mu       sync.Mutex
	messages []LogMessage
}

// LogMessage is a single captured log entry.
type LogMessage struct {
	Level   string
	Message string
	Fields  []logging.Field
}

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

func (m *MockLogger) log(level, msg string, fields []logging.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, LogMessage{Level: level, Message: msg, Fields: fields})
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.log("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.log("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.log("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.log("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.log("fatal", msg, fields) }

func (m *MockLogger) With(fields ...logging.Field) logging.Logger { return m }
func (m *MockLogger) Named(name string) logging.Logger            { return m }
func (m *MockLogger) Sync() error                                 { return nil }

// Messages returns a copy of all captured entries.
func (m *MockLogger) Messages() []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// MessagesAt returns the captured entries at the given level.
func (m *MockLogger) MessagesAt(level string) []LogMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []LogMessage
	for _, msg := range m.messages {
		if msg.Level == level {
			out = append(out, msg)
		}
	}
	return out
}

// Contains reports whether any entry's message equals msg.
func (m *MockLogger) Contains(msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.messages {
		if entry.Message == msg {
			return true
		}
	}
	return false
}

// Reset discards all captured entries.
func (m *MockLogger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
