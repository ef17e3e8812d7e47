package grouppool

// Tag identifies a reservation group. The Generic tag is the sentinel
// "null tag" described by the admission-control design: it is the
// overflow pool every other tag may borrow from once its own
// reservation is saturated.
type Tag string

// Generic is the sentinel tag for the shared overflow pool. It must
// always be present in a Ledger, even if its reservation is zero.
const Generic Tag = ""

// IsGeneric reports whether t is the sentinel overflow tag.
func (t Tag) IsGeneric() bool {
	return t == Generic
}

func (t Tag) String() string {
	if t == Generic {
		return "<generic>"
	}
	return string(t)
}
