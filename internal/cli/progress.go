package cli

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/forPelevin/clipforge/internal/export"
	"github.com/forPelevin/clipforge/internal/logging"
)

// progressPrinter redraws a single status line on a terminal and falls back
// to a log line per quarter of progress otherwise.
type progressPrinter struct {
	w      io.Writer
	tty    bool
	logger *slog.Logger

	mu     sync.Mutex
	bucket map[string]int
	open   bool
}

func newProgressPrinter(w io.Writer, logger *slog.Logger) *progressPrinter {
	return &progressPrinter{
		w:      w,
		tty:    logging.IsTerminal(w),
		logger: logging.OrDiscard(logger),
		bucket: map[string]int{},
	}
}

func (p *progressPrinter) handle(ev export.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := shortID(ev.ExportID)
	switch ev.Type {
	case export.EventState, export.EventProgress:
		if p.tty {
			fmt.Fprintf(p.w, "\r%s %-10s %3.0f%%", id, ev.State, ev.Progress)
			p.open = true
			return
		}
		if ev.Type == export.EventState {
			return
		}
		if b := int(ev.Progress) / 25; b > p.bucket[ev.ExportID] {
			p.bucket[ev.ExportID] = b
			p.logger.Info("export progress", "export_id", ev.ExportID, "progress", fmt.Sprintf("%.0f%%", ev.Progress))
		}
	default:
		delete(p.bucket, ev.ExportID)
		if p.tty {
			fmt.Fprintf(p.w, "\r%s %-10s %3.0f%%\n", id, ev.State, ev.Progress)
			p.open = false
		}
	}
}

// finish terminates a status line left open by an interrupted run.
func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open {
		fmt.Fprintln(p.w)
		p.open = false
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
