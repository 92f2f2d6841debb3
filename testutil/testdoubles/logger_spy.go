package testdoubles

import (
	"sync"

	"github.com/Hburdack/happy-button-sub001/simulation"
)

// LoggerSpy is a Logger implementation that captures logging calls for
// testing the simulator's observability instrumentation.
type LoggerSpy struct {
	mu      sync.Mutex
	records []SpyLogRecord
}

// SpyLogRecord represents a recorded log call.
type SpyLogRecord struct {
	Level   string
	Message string
	Args    []any
}

// NewLoggerSpy creates a new LoggerSpy instance.
func NewLoggerSpy() *LoggerSpy {
	return &LoggerSpy{}
}

// Debug implements the Logger interface for testing.
func (s *LoggerSpy) Debug(msg string, args ...any) {
	s.record("debug", msg, args)
}

// Info implements the Logger interface for testing.
func (s *LoggerSpy) Info(msg string, args ...any) {
	s.record("info", msg, args)
}

// Warn implements the Logger interface for testing.
func (s *LoggerSpy) Warn(msg string, args ...any) {
	s.record("warn", msg, args)
}

// Error implements the Logger interface for testing.
func (s *LoggerSpy) Error(msg string, args ...any) {
	s.record("error", msg, args)
}

// Records returns a copy of all recorded log calls.
func (s *LoggerSpy) Records() []SpyLogRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]SpyLogRecord(nil), s.records...)
}

// HasLog checks if a log with the given level and message exists.
func (s *LoggerSpy) HasLog(level string, message string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, record := range s.records {
		if record.Level == level && record.Message == message {
			return true
		}
	}

	return false
}

// Reset clears all recorded log calls.
func (s *LoggerSpy) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = s.records[:0]
}

func (s *LoggerSpy) record(level string, msg string, args []any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, SpyLogRecord{Level: level, Message: msg, Args: args})
}

// Compile-time check to ensure LoggerSpy implements the Logger interface.
var _ simulation.Logger = (*LoggerSpy)(nil)
