// Package logx provides component-tagged logging on top of the standard
// library logger, the same convention the rest of this codebase's ancestry
// uses (e.g. "CALL [%s]: ..."): a short bracketed tag identifying the
// subsystem, followed by a plain message.
package logx

import (
	"log"
	"os"
)

// Logger writes tagged lines to an underlying *log.Logger.
type Logger struct {
	tag string
	l   *log.Logger
}

// New returns a Logger that prefixes every line with "[tag] ".
func New(tag string) *Logger {
	return &Logger{
		tag: tag,
		l:   log.New(os.Stderr, "", log.LstdFlags),
	}
}

func (lg *Logger) Printf(format string, args ...any) {
	lg.l.Printf("["+lg.tag+"] "+format, args...)
}

func (lg *Logger) Println(args ...any) {
	all := make([]any, 0, len(args)+1)
	all = append(all, "["+lg.tag+"]")
	all = append(all, args...)
	lg.l.Println(all...)
}

// With returns a child logger tagged "tag/sub", for per-session or
// per-device loggers nested under a subsystem (e.g. "session/abcd1234").
func (lg *Logger) With(sub string) *Logger {
	return &Logger{tag: lg.tag + "/" + sub, l: lg.l}
}
