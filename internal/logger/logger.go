package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "debug"
	case INFO:
		return "info"
	case WARN:
		return "warn"
	case ERROR:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a config string to a Level. Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Entry is a structured log entry
type Entry struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// sink is shared by the default logger and every component logger, so
// Init and SetOutput apply to loggers created before them.
type sink struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
}

// Logger provides structured JSON logging
type Logger struct {
	sink      *sink
	component string
}

var defaultSink = &sink{out: os.Stderr, level: INFO}

var defaultLogger = &Logger{sink: defaultSink}

// Init sets the global log level
func Init(level Level) {
	defaultSink.mu.Lock()
	defer defaultSink.mu.Unlock()
	defaultSink.level = level
}

// SetOutput redirects all loggers. Used by tests.
func SetOutput(w io.Writer) {
	defaultSink.mu.Lock()
	defer defaultSink.mu.Unlock()
	defaultSink.out = w
}

// WithComponent returns a component-scoped logger
func WithComponent(name string) *Logger {
	return &Logger{sink: defaultSink, component: name}
}

func (l *Logger) log(level Level, msg string, fields map[string]interface{}) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if level < l.sink.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level.String(),
		Component: l.component,
		Message:   msg,
		Fields:    fields,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.sink.out, `{"ts":"%s","level":"error","msg":"log marshal failed: %v"}`+"\n",
			time.Now().UTC().Format(time.RFC3339), err)
		return
	}
	l.sink.out.Write(append(data, '\n'))
}

func (l *Logger) Debug(msg string, kv ...interface{}) { l.log(DEBUG, msg, kvToMap(kv)) }
func (l *Logger) Info(msg string, kv ...interface{})  { l.log(INFO, msg, kvToMap(kv)) }
func (l *Logger) Warn(msg string, kv ...interface{})  { l.log(WARN, msg, kvToMap(kv)) }
func (l *Logger) Error(msg string, kv ...interface{}) { l.log(ERROR, msg, kvToMap(kv)) }

// Package-level functions use the default logger
func Debug(msg string, kv ...interface{}) { defaultLogger.log(DEBUG, msg, kvToMap(kv)) }
func Info(msg string, kv ...interface{})  { defaultLogger.log(INFO, msg, kvToMap(kv)) }
func Warn(msg string, kv ...interface{})  { defaultLogger.log(WARN, msg, kvToMap(kv)) }
func Error(msg string, kv ...interface{}) { defaultLogger.log(ERROR, msg, kvToMap(kv)) }

// kvToMap converts key-value pairs to a map. Error values are stored as strings.
func kvToMap(kv []interface{}) map[string]interface{} {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kv[i])
		}
		if err, ok := kv[i+1].(error); ok {
			m[key] = err.Error()
			continue
		}
		m[key] = kv[i+1]
	}
	return m
}
