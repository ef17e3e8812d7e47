package grouppool

import "sync"

// AdmissionOutcome reports the result of a tryAdmit call.
type AdmissionOutcome struct {
	Admitted bool
	Borrowed bool
}

// ResizeReport summarizes a completed resize.
type ResizeReport struct {
	Tag            Tag
	OldReserved    int
	NewReserved    int
	GenericDelta   int
	UsedGenericMode bool
}

type slotEntry struct {
	reserved int
	inUse    int
	borrowed int // only meaningful when tag != Generic
}

// ledger tracks reserved/in-use/borrowed slot counts per tag and
// enforces the admission invariants described in the package design:
// a tagged group first draws from its own reservation, then overflows
// into the generic pool's free capacity; the generic pool itself is
// never oversubscribed.
//
// All mutation happens under mu so each admit/release/resize is a
// single atomic step. Waiters block on a closable notification channel
// rather than sync.Cond so they can also select on a caller's context.
type ledger struct {
	mu      sync.Mutex
	entries map[Tag]*slotEntry
	notify  chan struct{}
}

func newLedger(reserved map[Tag]int) *ledger {
	l := &ledger{
		entries: make(map[Tag]*slotEntry, len(reserved)+1),
		notify:  make(chan struct{}),
	}
	if _, ok := reserved[Generic]; !ok {
		l.entries[Generic] = &slotEntry{}
	}
	for t, n := range reserved {
		if n < 0 {
			n = 0
		}
		l.entries[t] = &slotEntry{reserved: n}
	}
	return l
}

// entry returns the entry for t, auto-creating it with a zero
// reservation if it has never been seen (a tag may only ever borrow
// until it is explicitly reserved via adjust).
func (l *ledger) entry(t Tag) *slotEntry {
	e, ok := l.entries[t]
	if !ok {
		e = &slotEntry{}
		l.entries[t] = e
	}
	return e
}

// genericUsed returns the total load currently charged against the
// generic reservation: its own direct admissions plus every tag's
// borrowed count.
func (l *ledger) genericUsed() int {
	used := 0
	for tag, e := range l.entries {
		if tag == Generic {
			used += e.inUse
		} else {
			used += e.borrowed
		}
	}
	return used
}

func (l *ledger) genericFree() int {
	g := l.entries[Generic]
	return g.reserved - l.genericUsed()
}

// tryAdmit implements the admission decision table: own reservation
// first, then generic overflow, else refuse. Callers holding a refused
// outcome should wait on waitChan and retry.
func (l *ledger) tryAdmit(t Tag) AdmissionOutcome {
	l.mu.Lock()
	defer l.mu.Unlock()

	if t == Generic {
		g := l.entry(Generic)
		if l.genericFree() > 0 {
			g.inUse++
			return AdmissionOutcome{Admitted: true}
		}
		return AdmissionOutcome{}
	}

	e := l.entry(t)
	if e.inUse-e.borrowed < e.reserved {
		e.inUse++
		return AdmissionOutcome{Admitted: true}
	}

	if l.genericFree() > 0 {
		e.inUse++
		e.borrowed++
		return AdmissionOutcome{Admitted: true, Borrowed: true}
	}

	return AdmissionOutcome{}
}

// release reverses an admission and wakes any blocked waiters, since a
// freed slot may now satisfy one of them.
func (l *ledger) release(t Tag, wasBorrowed bool) {
	l.mu.Lock()
	e := l.entry(t)
	e.inUse--
	if wasBorrowed {
		e.borrowed--
	}
	l.broadcastLocked()
	l.mu.Unlock()
}

// resize implements the live-capacity-reallocation algorithm. Shrinking
// never cancels running work: if usage already exceeds newSize, the
// surplus keeps running under the old accounting and simply blocks new
// own-reserve admissions until enough releases bring usage back down.
func (l *ledger) resize(t Tag, newSize int, useGenericSlots bool) (ResizeReport, error) {
	if newSize < 0 {
		return ResizeReport{}, ErrNegativeSize
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e := l.entry(t)
	delta := newSize - e.reserved
	report := ResizeReport{Tag: t, OldReserved: e.reserved, NewReserved: newSize, UsedGenericMode: useGenericSlots}

	if !useGenericSlots || t == Generic {
		e.reserved = newSize
		l.broadcastLocked()
		return report, nil
	}

	g := l.entry(Generic)
	newGeneric := g.reserved - delta
	if newGeneric < 0 || newGeneric < l.genericUsed() {
		return ResizeReport{}, ErrInsufficientGeneric
	}

	e.reserved = newSize
	g.reserved = newGeneric
	report.GenericDelta = -delta
	l.broadcastLocked()
	return report, nil
}


func (l *ledger) broadcastLocked() {
	close(l.notify)
	l.notify = make(chan struct{})
}

// waitChan returns the channel waiters should select on; it is only
// valid until the next release/resize, so callers must re-fetch it
// after every failed tryAdmit.
func (l *ledger) waitChan() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.notify
}

// snapshot returns a read-only copy of reserved sizes, keyed by tag,
// for the public Tags() accessor.
func (l *ledger) snapshot() map[Tag]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Tag]int, len(l.entries))
	for t, e := range l.entries {
		out[t] = e.reserved
	}
	return out
}

// TagStats is a read-only snapshot of one tag's slot accounting.
type TagStats struct {
	Reserved int
	InUse    int
	Borrowed int
}

// statsSnapshot returns a copy of every tag's current counters, for
// Pool.Stats and metrics reporting.
func (l *ledger) statsSnapshot() map[Tag]TagStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[Tag]TagStats, len(l.entries))
	for t, e := range l.entries {
		out[t] = TagStats{Reserved: e.reserved, InUse: e.inUse, Borrowed: e.borrowed}
	}
	return out
}

// pendingTotal returns Σ inUse across all tags (invariant I4).
func (l *ledger) pendingTotal() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := 0
	for _, e := range l.entries {
		total += e.inUse
	}
	return total
}
