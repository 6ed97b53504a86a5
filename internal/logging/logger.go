// Package logging configures the shared logrus instance used across the CLI.
package logging

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	setupOnce sync.Once
	writerMu  sync.Mutex
	logWriter *lumberjack.Logger
)

// Formatter renders log entries as
// [2026-08-30 14:02:11] [warn ] [oauth.go:118] message.
type Formatter struct{}

// Format renders a single log entry.
func (f *Formatter) Format(entry *log.Entry) ([]byte, error) {
	var buffer *bytes.Buffer
	if entry.Buffer != nil {
		buffer = entry.Buffer
	} else {
		buffer = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	message := strings.TrimRight(entry.Message, "\r\n")

	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	if entry.Caller != nil {
		fmt.Fprintf(buffer, "[%s] [%-5s] [%s:%d] %s\n", timestamp, level, filepath.Base(entry.Caller.File), entry.Caller.Line, message)
	} else {
		fmt.Fprintf(buffer, "[%s] [%-5s] %s\n", timestamp, level, message)
	}
	return buffer.Bytes(), nil
}

// SetupBaseLogger configures the shared logrus instance. It is safe to call
// multiple times; initialization happens only once. Logs go to stderr so they
// never mix with command output on stdout.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stderr)
		log.SetReportCaller(true)
		log.SetFormatter(&Formatter{})
		log.SetLevel(log.InfoLevel)
		log.RegisterExitHandler(closeLogOutput)
	})
}

// SetVerbose toggles debug-level logging.
func SetVerbose(verbose bool) {
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}
}

// ConfigureFileOutput switches the global log destination to a rotating file
// when path is non-empty, or back to stderr when it is empty.
func ConfigureFileOutput(path string) error {
	SetupBaseLogger()

	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}

	if path == "" {
		log.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("logging: failed to create log directory: %w", err)
	}
	logWriter = &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10,
		MaxBackups: 3,
	}
	log.SetOutput(logWriter)
	return nil
}

func closeLogOutput() {
	writerMu.Lock()
	defer writerMu.Unlock()

	if logWriter != nil {
		_ = logWriter.Close()
		logWriter = nil
	}
}
