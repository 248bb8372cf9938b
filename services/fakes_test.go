package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// stubRenderer returns the merged HTML as the document body. Documents that
// contain failFor are rejected.
type stubRenderer struct {
	mu      sync.Mutex
	calls   int
	failFor string
	last    string
	// onRender runs before each render.
	onRender func(htmlContent string)
}

func (r *stubRenderer) RenderPDF(_ context.Context, htmlContent string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.last = htmlContent
	if r.onRender != nil {
		r.onRender(htmlContent)
	}
	if r.failFor != "" && strings.Contains(htmlContent, r.failFor) {
		return nil, errors.New("chrome crashed")
	}
	return []byte("%PDF-1.4\n" + htmlContent), nil
}

type sentEmail struct {
	To   string
	Name string
	Link string
}

type stubNotifier struct {
	mu      sync.Mutex
	sent    []sentEmail
	failFor map[string]bool
}

func (n *stubNotifier) SendCertificateEmail(_ context.Context, to, displayName, link string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failFor[to] {
		return fmt.Errorf("mailbox %s unavailable", to)
	}
	n.sent = append(n.sent, sentEmail{To: to, Name: displayName, Link: link})
	return nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

type memCache struct {
	mu          sync.Mutex
	entries     map[string]*Verification
	invalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]*Verification{}}
}

func (c *memCache) Get(_ context.Context, token string) (*Verification, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[token]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, token string, v *Verification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = v
	return nil
}

func (c *memCache) Invalidate(_ context.Context, tokens ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tokens {
		delete(c.entries, t)
		c.invalidated = append(c.invalidated, t)
	}
	return nil
}

type recordedEvents struct {
	mu     sync.Mutex
	events []CompletionEvent
}

func (r *recordedEvents) Publish(ev CompletionEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordedEvents) stages() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]int{}
	for _, ev := range r.events {
		out[ev.Stage]++
	}
	return out
}

type countingMetrics struct {
	mu        sync.Mutex
	generated int
	failed    map[string]int
	emails    int
	finished  []time.Duration
}

func (m *countingMetrics) CertificateGenerated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated++
}

func (m *countingMetrics) CertificateFailed(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failed == nil {
		m.failed = map[string]int{}
	}
	m.failed[stage]++
}

func (m *countingMetrics) EmailSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails++
}

func (m *countingMetrics) CompletionFinished(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = append(m.finished, d)
}
