// pkg/logging/logging.go - leveled key/value logging for msikit.
//
// Every entry goes to the console and, when a log directory is configured,
// to a plain text log plus JSON lines and YAML documents for external tools.

package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// LogLevel represents the severity of the log message.
type LogLevel int

const (
	// Define log levels.
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

// String returns the string representation of the LogLevel.
func (ll LogLevel) String() string {
	switch ll {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a configuration string to a LogLevel. Unknown values map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "DEBUG":
		return LevelDebug
	default:
		return LevelInfo
	}
}

// LevelFromVerbosity raises base by one level per -v flag, capped at LevelDebug.
func LevelFromVerbosity(base LogLevel, verbosity int) LogLevel {
	level := base + LogLevel(max(verbosity, 0))
	if level > LevelDebug {
		return LevelDebug
	}
	return level
}

// LogEntry is one structured log line.
type LogEntry struct {
	Time       int64                  `json:"time" yaml:"time"`
	Timestamp  string                 `json:"timestamp" yaml:"timestamp"`
	Level      string                 `json:"level" yaml:"level"`
	Message    string                 `json:"message" yaml:"message"`
	Component  string                 `json:"component" yaml:"component"`
	PID        int64                  `json:"pid" yaml:"pid"`
	Hostname   string                 `json:"hostname" yaml:"hostname"`
	Properties map[string]interface{} `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// Config holds configuration for a Logger.
type Config struct {
	Level     LogLevel
	Component string
	// LogDir receives msikit.log, events.jsonl and msikit.yaml. Empty disables file output.
	LogDir     string
	EnableJSON bool
	EnableYAML bool
	// Console receives human readable lines. nil disables console output.
	Console io.Writer
}

// Logger writes entries to all configured outputs.
type Logger struct {
	mu       sync.Mutex
	config   Config
	logFile  *os.File
	jsonFile *os.File
	yamlFile *os.File
	hostname string
	now      func() time.Time
}

var (
	instanceMu sync.RWMutex
	instance   *Logger
)

// New creates a Logger, opening the log files under cfg.LogDir.
func New(cfg Config) (*Logger, error) {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}
	if cfg.Component == "" {
		cfg.Component = "msikit"
	}

	l := &Logger{config: cfg, hostname: hostname, now: time.Now}
	if cfg.LogDir != "" {
		if err := l.openFiles(); err != nil {
			l.Close()
			return nil, err
		}
	}
	if cfg.Console != nil {
		enableColors()
	}
	return l, nil
}

func (l *Logger) openFiles() error {
	if err := os.MkdirAll(l.config.LogDir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory %s: %w", l.config.LogDir, err)
	}

	var err error
	open := func(name string) (*os.File, error) {
		return os.OpenFile(filepath.Join(l.config.LogDir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	}

	if l.logFile, err = open("msikit.log"); err != nil {
		return fmt.Errorf("failed to open main log file: %w", err)
	}
	if l.config.EnableJSON {
		if l.jsonFile, err = open("events.jsonl"); err != nil {
			return fmt.Errorf("failed to open JSON log file: %w", err)
		}
	}
	if l.config.EnableYAML {
		if l.yamlFile, err = open("msikit.yaml"); err != nil {
			return fmt.Errorf("failed to open YAML log file: %w", err)
		}
	}
	return nil
}

// Init installs a new package-level logger, closing any previous one.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	instanceMu.Lock()
	prev := instance
	instance = l
	instanceMu.Unlock()
	if prev != nil {
		prev.Close()
	}
	return nil
}

// CloseLogger closes the package-level logger's files.
func CloseLogger() {
	instanceMu.Lock()
	l := instance
	instance = nil
	instanceMu.Unlock()
	if l != nil {
		l.Close()
	}
}

// Close closes all log files if they're open.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, f := range []**os.File{&l.logFile, &l.jsonFile, &l.yamlFile} {
		if *f != nil {
			if err := (*f).Close(); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to close log file: %v\n", err)
			}
			*f = nil
		}
	}
}

// Enabled reports whether entries at level would be written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level <= l.config.Level
}

// Log writes one entry. keyValues alternate between keys and values.
func (l *Logger) Log(level LogLevel, message string, keyValues ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.createLogEntry(level, message, keyValues)
	line := formatLine(entry, keyValues)

	if l.config.Console != nil {
		fmt.Fprintln(l.config.Console, colorize(level, line))
	}
	if l.logFile != nil {
		l.logFile.WriteString(line + "\n")
	}
	if l.jsonFile != nil {
		if data, err := json.Marshal(entry); err == nil {
			l.jsonFile.Write(append(data, '\n'))
		}
	}
	if l.yamlFile != nil {
		if data, err := yaml.Marshal(entry); err == nil {
			l.yamlFile.WriteString("---\n" + string(data))
		}
	}
}

func (l *Logger) createLogEntry(level LogLevel, message string, keyValues []interface{}) LogEntry {
	now := l.now()
	var properties map[string]interface{}
	if len(keyValues) > 0 {
		properties = make(map[string]interface{}, len(keyValues)/2)
		for i := 0; i+1 < len(keyValues); i += 2 {
			properties[fmt.Sprintf("%v", keyValues[i])] = propertyValue(keyValues[i+1])
		}
	}
	return LogEntry{
		Time:       now.Unix(),
		Timestamp:  now.Format(time.RFC3339),
		Level:      level.String(),
		Message:    message,
		Component:  l.config.Component,
		PID:        int64(os.Getpid()),
		Hostname:   l.hostname,
		Properties: properties,
	}
}

// propertyValue keeps errors readable in JSON and YAML output.
func propertyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}

// formatLine renders the traditional "[ts] LEVEL message k=v" format.
func formatLine(entry LogEntry, keyValues []interface{}) string {
	ts := time.Unix(entry.Time, 0).Format("2006-01-02 15:04:05")
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %-5s %s", ts, entry.Level, entry.Message)

	// Long key/value lists read better one per line.
	multiline := len(keyValues)/2 > 4
	for i := 0; i+1 < len(keyValues); i += 2 {
		if multiline {
			fmt.Fprintf(&b, "\n        %v: %v", keyValues[i], keyValues[i+1])
		} else {
			fmt.Fprintf(&b, " %v=%v", keyValues[i], keyValues[i+1])
		}
	}
	return b.String()
}

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
)

func colorize(level LogLevel, line string) string {
	if !colorsEnabled {
		return line
	}
	switch level {
	case LevelError:
		return colorRed + line + colorReset
	case LevelWarn:
		return colorYellow + line + colorReset
	case LevelDebug:
		return colorBlue + line + colorReset
	default:
		return line
	}
}

func current() *Logger {
	instanceMu.RLock()
	defer instanceMu.RUnlock()
	return instance
}

func logPackage(level LogLevel, message string, keyValues []interface{}) {
	if l := current(); l != nil {
		l.Log(level, message, keyValues...)
		return
	}
	// Not initialized: only surface problems.
	if level <= LevelWarn {
		fmt.Fprintln(os.Stderr, formatLine(LogEntry{Time: time.Now().Unix(), Level: level.String(), Message: message}, keyValues))
	}
}

// Debug logs debug messages.
func Debug(message string, keyValues ...interface{}) {
	logPackage(LevelDebug, message, keyValues)
}

// Info logs informational messages.
func Info(message string, keyValues ...interface{}) {
	logPackage(LevelInfo, message, keyValues)
}

// Warn logs warning messages.
func Warn(message string, keyValues ...interface{}) {
	logPackage(LevelWarn, message, keyValues)
}

// Error logs error messages.
func Error(message string, keyValues ...interface{}) {
	logPackage(LevelError, message, keyValues)
}
