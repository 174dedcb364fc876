package log

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lsds/kungfu-shmem/srcs/go/kungfu/config"
)

type Level int32

const (
	Debug Level = iota
	Info
	Warn
	Error
)

var levelNames = map[string]Level{
	`DEBUG`: Debug,
	`INFO`:  Info,
	`WARN`:  Warn,
	`ERROR`: Error,
}

// ParseLevel accepts DEBUG, INFO, WARN and ERROR.
func ParseLevel(s string) (Level, bool) {
	level, ok := levelNames[s]
	return level, ok
}

const (
	ShowTimestamp = 1 << iota
	ShowColor
)

// sink is the output shared by a logger and the loggers derived from it.
type sink struct {
	mu    sync.Mutex
	w     io.Writer
	buf   []byte
	t0    time.Time
	flags uint32
	exit  func(int)
	level atomic.Int32
}

func (s *sink) write(prefix, tag, msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := append(s.buf[:0], prefix...)
	if s.flags&ShowColor != 0 && (prefix == `[E]` || prefix == `[F]`) {
		b = append(b[:0], "\x1b[1;35m"+prefix+"\x1b[m"...)
	}
	if s.flags&ShowTimestamp != 0 {
		b = fmt.Appendf(b, " %12.6fs", time.Since(s.t0).Seconds())
	}
	b = append(b, tag...)
	b = append(b, ' ')
	b = append(b, msg...)
	if len(msg) == 0 || msg[len(msg)-1] != '\n' {
		b = append(b, '\n')
	}
	s.w.Write(b)
	s.buf = b
}

type Logger struct {
	*sink
	tag string
}

func New() *Logger {
	s := &sink{
		w:     os.Stdout,
		t0:    time.Now(),
		flags: ShowColor,
		exit:  os.Exit,
	}
	level, ok := ParseLevel(config.LogLevel)
	if !ok {
		level = Info
	}
	s.level.Store(int32(level))
	return &Logger{sink: s}
}

// With returns a logger sharing the output and level of l whose lines carry
// tag, e.g. With(`PE 3`) writes `[I] [PE 3] ...`.
func (l *Logger) With(tag string) *Logger {
	return &Logger{sink: l.sink, tag: l.tag + ` [` + tag + `]`}
}

func (l *Logger) Enabled(level Level) bool {
	return level >= Level(l.level.Load())
}

func (l *Logger) logf(level Level, prefix, format string, v ...interface{}) {
	if l.Enabled(level) {
		l.write(prefix, l.tag, fmt.Sprintf(format, v...))
	}
}

func (l *Logger) Debugf(format string, v ...interface{}) {
	l.logf(Debug, `[D]`, format, v...)
}

func (l *Logger) Infof(format string, v ...interface{}) {
	l.logf(Info, `[I]`, format, v...)
}

func (l *Logger) Warnf(format string, v ...interface{}) {
	l.logf(Warn, `[W]`, format, v...)
}

func (l *Logger) Errorf(format string, v ...interface{}) {
	l.logf(Error, `[E]`, format, v...)
}

// Exitf logs unconditionally and terminates the process.
func (l *Logger) Exitf(format string, v ...interface{}) {
	l.write(`[F]`, l.tag, fmt.Sprintf(format, v...))
	l.mu.Lock()
	exit := l.exit
	l.mu.Unlock()
	exit(1)
}

func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w = w
}

func (l *Logger) SetFlags(fs ...uint32) {
	var flags uint32
	for _, f := range fs {
		flags |= f
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.flags = flags
}

func (l *Logger) SetLevel(level Level) {
	l.level.Store(int32(level))
}

// SetExit replaces os.Exit, for tests of fatal paths.
func (l *Logger) SetExit(exit func(int)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.exit = exit
}

var std = New()

var (
	Debugf    = std.Debugf
	Infof     = std.Infof
	Warnf     = std.Warnf
	Errorf    = std.Errorf
	Exitf     = std.Exitf
	With      = std.With
	Enabled   = std.Enabled
	SetFlags  = std.SetFlags
	SetOutput = std.SetOutput
	SetLevel  = std.SetLevel
	SetExit   = std.SetExit
)
