package services

import "sync"

// CitationTracker accumulates the source labels and links a single query's
// tool executions touch. One tracker is scoped per logical query; tools run
// concurrently within a round, so access is mutex guarded.
//
// Labels keep encounter order and duplicates are preserved: a chunk cited by
// two tool calls shows up twice, matching what the tools actually returned.
type CitationTracker struct {
	mu     sync.Mutex
	labels []string
	links  map[string]string
}

func NewCitationTracker() *CitationTracker {
	return &CitationTracker{links: make(map[string]string)}
}

// Add records one citation. Link may be empty; empty links are not stored in
// the link map.
func (c *CitationTracker) Add(label, link string) {
	if c == nil || label == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = append(c.labels, label)
	if link != "" {
		c.links[label] = link
	}
}

// Labels returns the accumulated labels in encounter order.
func (c *CitationTracker) Labels() []string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.labels))
	copy(out, c.labels)
	return out
}

// Links returns the label to link map for labels that carried a link.
func (c *CitationTracker) Links() map[string]string {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.links))
	for k, v := range c.links {
		out[k] = v
	}
	return out
}

// Reset clears the tracker for the next query.
func (c *CitationTracker) Reset() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.labels = nil
	c.links = make(map[string]string)
}
