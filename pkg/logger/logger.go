// Package logger provides the leveled logger shared by the reminder components.
package logger

import (
	"fmt"
	"log"
	"sync"
)

// Logger is implemented by every log sink the components write to.
type Logger interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// StandardLogger wraps a stdlib *log.Logger and prefixes the level
type StandardLogger struct {
	logger *log.Logger
}

// NewStandardLogger creates a logger writing to l, or to log.Default() when l is nil
func NewStandardLogger(l *log.Logger) *StandardLogger {
	if l == nil {
		l = log.Default()
	}
	return &StandardLogger{logger: l}
}

func (s *StandardLogger) Info(format string, args ...interface{}) {
	s.logger.Printf("[INFO] "+format, args...)
}

func (s *StandardLogger) Warning(format string, args ...interface{}) {
	s.logger.Printf("[WARNING] "+format, args...)
}

func (s *StandardLogger) Error(format string, args ...interface{}) {
	s.logger.Printf("[ERROR] "+format, args...)
}

// NopLogger discards all messages
type NopLogger struct{}

func NewNopLogger() *NopLogger { return &NopLogger{} }

func (NopLogger) Info(format string, args ...interface{})    {}
func (NopLogger) Warning(format string, args ...interface{}) {}
func (NopLogger) Error(format string, args ...interface{})   {}

// Default returns l, or a StandardLogger on log.Default() when l is nil
func Default(l Logger) Logger {
	if l == nil {
		return NewStandardLogger(nil)
	}
	return l
}

// MockLogger records every call so tests can assert on surfaced warnings.
// It is safe for concurrent use.
type MockLogger struct {
	mu           sync.Mutex
	infoCalls    []string
	warningCalls []string
	errorCalls   []string
}

func NewMockLogger() *MockLogger { return &MockLogger{} }

func (m *MockLogger) Info(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infoCalls = append(m.infoCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Warning(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warningCalls = append(m.warningCalls, fmt.Sprintf(format, args...))
}

func (m *MockLogger) Error(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCalls = append(m.errorCalls, fmt.Sprintf(format, args...))
}

// Warnings returns a copy of the recorded warning messages
func (m *MockLogger) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warningCalls...)
}

// Errors returns a copy of the recorded error messages
func (m *MockLogger) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errorCalls...)
}

// Infos returns a copy of the recorded info messages
func (m *MockLogger) Infos() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.infoCalls...)
}

var (
	_ Logger = (*StandardLogger)(nil)
	_ Logger = (*NopLogger)(nil)
	_ Logger = (*MockLogger)(nil)
)
