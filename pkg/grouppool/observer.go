package grouppool

// Observer receives admission-control events as they happen. It exists
// so an external package (metrics, logging, tracing) can watch a
// Pool's behavior without Pool importing any of them.
type Observer interface {
	// Admitted is called once a task is accepted for a tag, reporting
	// whether it was satisfied from the tag's own reservation or
	// borrowed from the generic overflow.
	Admitted(tag Tag, borrowed bool)
	// Refused is called each time an admission attempt for tag is
	// turned away because neither the tag's own reservation nor the
	// generic overflow had room.
	Refused(tag Tag)
	// Released is called once an admitted task completes and its slot
	// is returned to the ledger.
	Released(tag Tag, borrowed bool)
}

// noopObserver discards every event; it is the default so Pool never
// needs a nil check on the hot path.
type noopObserver struct{}

func (noopObserver) Admitted(Tag, bool) {}
func (noopObserver) Refused(Tag)        {}
func (noopObserver) Released(Tag, bool) {}
