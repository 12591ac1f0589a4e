package testutil

import (
	"bytes"
	"strings"
	"sync"
)

// MockWriter is a goroutine-safe io.Writer that keeps everything written to
// it. Tests hand it to zerolog to inspect the structured log lines a
// component emitted.
type MockWriter struct {
	buf        *bytes.Buffer
	mu         sync.Mutex
	writeCount int
}

// NewMockWriter creates a new MockWriter.
func NewMockWriter() *MockWriter {
	return &MockWriter{
		buf: &bytes.Buffer{},
	}
}

// Write implements io.Writer.
func (mw *MockWriter) Write(p []byte) (int, error) {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	mw.writeCount++
	return mw.buf.Write(p)
}

// String returns the current buffer contents.
func (mw *MockWriter) String() string {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.String()
}

// Lines returns the non-empty lines written so far.
func (mw *MockWriter) Lines() []string {
	var lines []string
	for _, line := range strings.Split(mw.String(), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// Len returns the current buffer length.
func (mw *MockWriter) Len() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.buf.Len()
}

// WriteCount returns the number of Write calls.
func (mw *MockWriter) WriteCount() int {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	return mw.writeCount
}

// Reset clears the buffer and resets counters.
func (mw *MockWriter) Reset() {
	mw.mu.Lock()
	defer mw.mu.Unlock()
	mw.buf.Reset()
	mw.writeCount = 0
}
