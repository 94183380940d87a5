package console

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"ragconsole/internal/notice"
)

// Printer echoes notifications to a terminal.
type Printer struct {
	mu      sync.Mutex
	out     io.Writer
	stamp   *color.Color
	success *color.Color
	failure *color.Color
	muted   *color.Color
}

func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out:     out,
		stamp:   color.New(color.Faint),
		success: color.New(color.FgGreen, color.Bold),
		failure: color.New(color.FgRed, color.Bold),
		muted:   color.New(color.FgHiBlack),
	}
}

func (p *Printer) Print(ev notice.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ev.Type == notice.EventCleared || ev.Notification == nil {
		p.muted.Fprintln(p.out, "  (notice cleared)")
		return
	}

	n := ev.Notification
	c := p.success
	if isFailure(n.Text) {
		c = p.failure
	}
	p.stamp.Fprint(p.out, n.CreatedAt.Format(time.TimeOnly)+" ")
	c.Fprintln(p.out, n.Text)
}

func isFailure(text string) bool {
	for _, prefix := range []string{"Error:", "Connection error:", "Authentication failed", "Session expired"} {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func (p *Printer) Banner(name, version, addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.success.Fprintf(p.out, "%s %s", name, version)
	fmt.Fprintf(p.out, " listening on http://%s\n", addr)
}
