package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/weaveworks/promrus"
)

// NullLogger discards everything. Useful for tests and for the CLI's dry-run output.
var NullLogger = &log.Logger{
	Out:       io.Discard,
	Formatter: new(log.TextFormatter),
	Hooks:     make(log.LevelHooks),
	Level:     log.PanicLevel,
}

// Fields WithError adds next to logrus' own error field.
const (
	StackField          = "stack"
	UpstreamStatusField = "upstream_status"
)

var promrusOnce sync.Once

// ConfigureLogging sets up the standard logrus logger for an application.
func ConfigureLogging(config Config) error {
	if err := config.validate(); err != nil {
		return err
	}
	level, _ := parseLogLevel(config.Level)
	log.SetLevel(level)
	log.SetOutput(os.Stdout)
	if strings.ToLower(config.Format) == FormatJson {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{ForceColors: true, FullTimestamp: true})
	}
	if config.PrometheusHook {
		// promrus registers its counter globally, so the hook can only be created once per process.
		promrusOnce.Do(func() {
			log.AddHook(promrus.MustNewPrometheusHook())
		})
	}
	return nil
}

// ConfigureCommandLineLogging sets up logging for interactive commands, where only the message matters.
func ConfigureCommandLineLogging() {
	log.SetFormatter(&CommandLineFormatter{})
	log.SetOutput(os.Stderr)
}

type CommandLineFormatter struct{}

func (f *CommandLineFormatter) Format(entry *log.Entry) ([]byte, error) {
	return []byte(fmt.Sprintf("%s\n", entry.Message)), nil
}

// WithError adds err to entry along with the first stack trace recorded on its chain and,
// for failed upstream calls, the status code the upstream answered with.
func WithError(entry *log.Entry, err error) *log.Entry {
	entry = entry.WithError(err)
	if frames := StackFrames(err); len(frames) > 0 {
		entry = entry.WithField(StackField, frames)
	}
	var upstream interface{ UpstreamStatusCode() int }
	if errors.As(err, &upstream) {
		entry = entry.WithField(UpstreamStatusField, upstream.UpstreamStatusCode())
	}
	return entry
}

// StackFrames renders the outermost pkg/errors stack trace on err's chain, one "function file:line" per frame.
// It returns nil when nothing on the chain carries a stack.
func StackFrames(err error) []string {
	var tracer interface{ StackTrace() errors.StackTrace }
	if !errors.As(err, &tracer) {
		return nil
	}
	stack := tracer.StackTrace()
	frames := make([]string, 0, len(stack))
	for _, frame := range stack {
		frames = append(frames, fmt.Sprintf("%n %s:%d", frame, frame, frame))
	}
	return frames
}
