package events

import "sync"

// Deduper filters re-delivered events by (ExecutionID, EventSeq), letting
// bus consumers safely treat at-least-once delivery as effectively-once.
type Deduper struct {
	mu   sync.Mutex
	seen map[string]map[uint64]bool
}

// NewDeduper creates an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: map[string]map[uint64]bool{}}
}

// Admit reports whether (executionID, seq) has not been seen before,
// recording it as seen if so.
func (d *Deduper) Admit(executionID string, seq uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	bySeq, ok := d.seen[executionID]
	if !ok {
		bySeq = map[uint64]bool{}
		d.seen[executionID] = bySeq
	}
	if bySeq[seq] {
		return false
	}
	bySeq[seq] = true
	return true
}

// Forget drops dedup state for executionID.
func (d *Deduper) Forget(executionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, executionID)
}
