package app

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// profiler writes one CSV row of section timings per visualizer frame.
type profiler struct {
	mu       sync.Mutex
	file     *os.File
	sections []string
	timings  []float64
	start    time.Time
	last     time.Time
	frame    uint64
}

var profileSections = []string{"analyse", "draw", "present"}

func newProfiler(path string, logger *log.Logger) *profiler {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		if logger != nil {
			logger.Printf("profiler disabled: %v", err)
		}
		return nil
	}
	p := &profiler{
		file:     f,
		sections: profileSections,
		timings:  make([]float64, len(profileSections)),
	}
	fmt.Fprintf(f, "frame,%s_ms,total_ms\n", strings.Join(p.sections, "_ms,"))
	return p
}

func (p *profiler) beginFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	p.start, p.last = now, now
	clear(p.timings)
}

func (p *profiler) markSection(name string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	for i, s := range p.sections {
		if s == name {
			p.timings[i] += now.Sub(p.last).Seconds() * 1000
			break
		}
	}
	p.last = now
}

func (p *profiler) endFrame() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return
	}
	p.frame++
	var b strings.Builder
	fmt.Fprintf(&b, "%d", p.frame)
	for _, ms := range p.timings {
		fmt.Fprintf(&b, ",%.3f", ms)
	}
	fmt.Fprintf(&b, ",%.3f\n", time.Since(p.start).Seconds()*1000)
	_, _ = p.file.WriteString(b.String())
}

func (p *profiler) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.file == nil {
		return nil
	}
	err := p.file.Close()
	p.file = nil
	return err
}
