package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/skobkin/mesh2aprs/internal/config"
)

const redacted = "REDACTED"

// Attribute keys whose values never reach the log output.
var secretKeys = map[string]struct{}{
	"password": {},
	"passcode": {},
	"psk":      {},
	"key":      {},
}

// Manager owns the gateway logger and the optional log file behind it.
type Manager struct {
	mu     sync.RWMutex
	logger *slog.Logger
	file   *os.File
}

func NewManager() *Manager {
	return &Manager{logger: slog.New(slog.NewTextHandler(os.Stdout, handlerOptions(slog.LevelInfo)))}
}

// Configure swaps the process logger for one built from cfg. Output always
// goes to stdout; cfg.File adds an append-only copy on disk.
func (m *Manager) Configure(cfg config.LoggingConfig) error {
	level, err := parseLevel(cfg.Level)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.closeFileLocked()

	var out io.Writer = os.Stdout
	if path := strings.TrimSpace(cfg.File); path != "" {
		// #nosec G304 -- path comes from operator-provided configuration.
		file, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		m.file = file
		out = teeWriter{os.Stdout, file}
	}

	h, err := newHandler(cfg.Format, out, handlerOptions(level))
	if err != nil {
		m.closeFileLocked()
		return err
	}
	m.logger = slog.New(h)
	slog.SetDefault(m.logger)

	return nil
}

// Logger returns the current logger tagged with a gateway component such as
// "aprs", "mqtt" or "gateway".
func (m *Manager) Logger(component string) *slog.Logger {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.logger.With("component", component)
}

func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.file == nil {
		return nil
	}
	err := m.file.Close()
	m.file = nil

	return err
}

func (m *Manager) closeFileLocked() {
	if m.file != nil {
		_ = m.file.Close()
		m.file = nil
	}
}

func handlerOptions(level slog.Leveler) *slog.HandlerOptions {
	return &slog.HandlerOptions{Level: level, ReplaceAttr: redactSecrets}
}

// redactSecrets masks credentials such as the MQTT password, the APRS-IS
// passcode and the channel key whenever they are logged as attributes.
func redactSecrets(_ []string, a slog.Attr) slog.Attr {
	if _, ok := secretKeys[strings.ToLower(a.Key)]; ok && a.Value.Kind() != slog.KindGroup {
		return slog.String(a.Key, redacted)
	}

	return a
}

func newHandler(format string, w io.Writer, opts *slog.HandlerOptions) (slog.Handler, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "text", "":
		return slog.NewTextHandler(w, opts), nil
	case "json":
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unsupported log format: %q", format)
	}
}

func parseLevel(raw string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, fmt.Errorf("unsupported log level: %q", raw)
	}
}

// teeWriter copies every record to all destinations. The write fails only
// when no destination accepted the whole record.
type teeWriter []io.Writer

func (t teeWriter) Write(p []byte) (int, error) {
	var firstErr error
	accepted := 0
	for _, dst := range t {
		n, err := dst.Write(p)
		if err == nil && n != len(p) {
			err = io.ErrShortWrite
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		accepted++
	}

	if accepted == 0 && firstErr != nil {
		return 0, firstErr
	}

	return len(p), nil
}
