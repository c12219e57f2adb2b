package logger

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

const jobBufferSize = 100
const maxDocumentLengthEnvVar = "MONGODRV_LOG_MAX_DOCUMENT_LENGTH"

// DefaultMaxDocumentLength is the default maximum length, in bytes, of a
// stringified command/reply document before it is truncated.
const DefaultMaxDocumentLength = 1000

// TruncationSuffix is appended to a truncated string.
const TruncationSuffix = "..."

// LogSink is the interface a logging backend must satisfy. It is a subset of
// go-logr/logr's LogSink, so any logr-compatible sink (zap, zerolog) plugs in
// directly.
type LogSink interface {
	Info(level int, msg string, keysAndValues ...interface{})
}

type job struct {
	level Level
	msg   ComponentMessage
}

// Logger is the driver's logger. Messages are queued on a channel and
// printed by a single background goroutine so that logging never blocks a
// command dispatch or connection handshake.
type Logger struct {
	ComponentLevels   map[Component]Level
	Sink              LogSink
	MaxDocumentLength uint

	jobs chan job
}

// New constructs a Logger. componentLevels take precedence over whatever is
// found in the environment; a component with no entry (or a nil map) falls
// back to the environment, and a missing environment entry falls back to
// LevelOff. An explicit LevelOff entry is kept, not replaced.
func New(sink LogSink, maxDocumentLength uint, componentLevels map[Component]Level) *Logger {
	return &Logger{
		ComponentLevels: selectComponentLevels(
			func() map[Component]Level { return componentLevels },
			getEnvComponentLevels,
		),
		MaxDocumentLength: selectMaxDocumentLength(
			func() uint { return maxDocumentLength },
			getEnvMaxDocumentLength,
		),
		Sink: selectLogSink(
			func() LogSink { return sink },
			getEnvLogSink,
		),
		jobs: make(chan job, jobBufferSize),
	}
}

// Close stops the printer goroutine. Must not be called concurrently with
// Print.
func (l *Logger) Close() {
	close(l.jobs)
}

// Is reports whether level is enabled for component.
func (l *Logger) Is(level Level, component Component) bool {
	return l.ComponentLevels[component] >= level
}

// Print enqueues msg for printing if its component/level is enabled.
// Non-blocking: if the queue is full, msg is dropped and a drop notice is
// queued in its place only if a slot has freed by then; otherwise the
// drop notice is discarded too.
func (l *Logger) Print(level Level, msg ComponentMessage) {
	if !l.Is(level, msg.Component()) {
		return
	}
	select {
	case l.jobs <- job{level, msg}:
	default:
		select {
		case l.jobs <- job{level, CommandMessageDropped{}}:
		default:
		}
	}
}

// StartPrintListener starts the background goroutine that drains jobs into
// the configured Sink.
func StartPrintListener(l *Logger) {
	go func() {
		for j := range l.jobs {
			sink := l.Sink
			if sink == nil {
				continue
			}
			keysAndValues, err := formatMessage(j.msg.Serialize(), l.MaxDocumentLength)
			if err != nil {
				sink.Info(int(j.level)-DiffToInfo, "error formatting log message: "+err.Error())
				continue
			}
			sink.Info(int(j.level)-DiffToInfo, j.msg.Message(), keysAndValues...)
		}
	}()
}

func truncate(str string, width uint) string {
	if width == 0 || uint(len(str)) <= width {
		return str
	}
	return str[:width] + TruncationSuffix
}

// formatMessage truncates any "command" or "reply" string value to
// commandWidth bytes. The pack may be BSON, JSON, or anything else that
// implements fmt.Stringer; the logger only ever deals in the already
// stringified form, keeping it decoupled from any one serialization pack.
func formatMessage(keysAndValues []interface{}, commandWidth uint) ([]interface{}, error) {
	formatted := make([]interface{}, len(keysAndValues))
	copy(formatted, keysAndValues)
	for i := 0; i+1 < len(formatted); i += 2 {
		key, ok := formatted[i].(string)
		if !ok {
			return nil, fmt.Errorf("log key at index %d is not a string", i)
		}
		if key != "command" && key != "reply" {
			continue
		}
		if str, ok := formatted[i+1].(string); ok {
			formatted[i+1] = truncate(str, commandWidth)
		}
	}
	return formatted, nil
}

func getEnvMaxDocumentLength() uint {
	max := os.Getenv(maxDocumentLengthEnvVar)
	if max == "" {
		return 0
	}
	maxUint, err := strconv.ParseUint(max, 10, 32)
	if err != nil {
		return 0
	}
	return uint(maxUint)
}

func selectMaxDocumentLength(getLen ...func() uint) uint {
	for _, get := range getLen {
		if n := get(); n != 0 {
			return n
		}
	}
	return DefaultMaxDocumentLength
}

const (
	logSinkPathStdOut = "stdout"
	logSinkPathStdErr = "stderr"
	logSinkPathEnvVar = "MONGODRV_LOG_PATH"
)

func getEnvLogSink() LogSink {
	path := strings.ToLower(os.Getenv(logSinkPathEnvVar))
	switch path {
	case logSinkPathStdErr, "":
		return newOSSink(os.Stderr)
	case logSinkPathStdOut:
		return newOSSink(os.Stdout)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return newOSSink(os.Stderr)
	}
	return newOSSink(f)
}

func selectLogSink(getSink ...func() LogSink) LogSink {
	for _, get := range getSink {
		if sink := get(); sink != nil {
			return sink
		}
	}
	return newOSSink(os.Stderr)
}

func getEnvComponentLevels() map[Component]Level {
	componentLevels := make(map[Component]Level)
	globalLevel := parseLevel(os.Getenv(string(componentEnvVarAll)))

	for _, envVar := range allComponentEnvVars {
		if envVar == componentEnvVarAll {
			continue
		}
		level := globalLevel
		if globalLevel == LevelOff {
			level = parseLevel(os.Getenv(string(envVar)))
		}
		componentLevels[envVar.component()] = level
	}
	return componentLevels
}

func selectComponentLevels(getters ...func() map[Component]Level) map[Component]Level {
	selected := make(map[Component]Level)
	set := make(map[Component]struct{})
	for _, get := range getters {
		for component, level := range get() {
			if _, ok := set[component]; !ok {
				selected[component] = level
			}
			set[component] = struct{}{}
		}
	}
	return selected
}
