package types

import (
	"fmt"
	"io"
	"sync"

	"github.com/gosuri/uilive"
)

// TerminalPrinter keeps a live status line per run on the terminal
type TerminalPrinter struct {
	mu      sync.Mutex
	writer  *uilive.Writer
	writers []io.Writer
	lines   []string
}

// NewTerminalPrinter prints lines status lines to out
func NewTerminalPrinter(out io.Writer, lines int) *TerminalPrinter {
	if lines < 1 {
		lines = 1
	}
	writer := uilive.New()
	writer.Out = out
	writers := make([]io.Writer, lines)
	writers[0] = writer
	for i := 1; i < lines; i++ {
		writers[i] = writer.Newline()
	}
	return &TerminalPrinter{
		writer:  writer,
		writers: writers,
		lines:   make([]string, lines),
	}
}

func (p *TerminalPrinter) Start() {
	p.writer.Start()
}

// Stop stops refreshing, Start must have been called
func (p *TerminalPrinter) Stop() {
	p.writer.Stop()
}

// Set replaces the status of line i and redraws
func (p *TerminalPrinter) Set(i int, s string) {
	p.mu.Lock()
	if i >= 0 && i < len(p.lines) {
		p.lines[i] = s
	}
	p.mu.Unlock()
	p.print()
}

func (p *TerminalPrinter) print() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, line := range p.lines {
		fmt.Fprintln(p.writers[i], line)
	}
	p.writer.Flush()
}
