package corelog

import (
	"bytes"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlogLoggerLevelsWriteToBase(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	l := NewSlogLogger(base, func(int) {})

	l.Info("render", "frame committed", "n", 1)
	assert.Contains(t, buf.String(), "frame committed")
	assert.Contains(t, buf.String(), "domain=render")
}

func TestSlogLoggerFatalCallsExitFunc(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))

	var exitCode int
	l := NewSlogLogger(base, func(code int) { exitCode = code })

	l.Fatal("render", "unrecoverable", "error", "boom")
	assert.Equal(t, 1, exitCode)
}

func TestSlogLoggerDomainLoggerIsRaceFreeAcrossGoroutines(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewTextHandler(&buf, nil))
	l := NewSlogLogger(base, func(int) {})

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l.Info("render", "tick")
			l.Warn("io", "tick")
		}()
	}
	wg.Wait()
}
