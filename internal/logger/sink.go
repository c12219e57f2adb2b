package logger

import (
	"fmt"
	"io"
)

// osSink is the default LogSink, used when no external one (zap, zerolog,
// go-logr) has been wired in.
type osSink struct {
	w io.Writer
}

func newOSSink(w io.Writer) *osSink {
	return &osSink{w: w}
}

func (s *osSink) Info(level int, msg string, keysAndValues ...interface{}) {
	fmt.Fprintf(s.w, "[%d] %s", level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(s.w, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	fmt.Fprintln(s.w)
}
