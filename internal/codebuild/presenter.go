package codebuild

import (
	"io"
	"strings"
)

// Presenter writes build log lines to the invocation's output as they arrive
type Presenter struct {
	out io.Writer
}

// NewPresenter creates a presenter writing to out. A hidden presenter discards everything.
func NewPresenter(out io.Writer, hidden bool) *Presenter {
	if hidden || out == nil {
		out = io.Discard
	}
	return &Presenter{out: out}
}

// Present writes each event in order. CloudWatch messages carry their own line
// endings, which are replaced with a single newline. Write errors are ignored.
func (p *Presenter) Present(events []LogEvent) {
	for _, e := range events {
		_, _ = io.WriteString(p.out, strings.TrimRight(e.Message, "\r\n")+"\n")
	}
}
