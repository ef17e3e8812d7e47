package grouppool

import "errors"

// ErrPoolStopped is returned by Put/Ingest once Stop has been called.
var ErrPoolStopped = errors.New("grouppool: pool stopped")

// ErrInsufficientGeneric is returned by Adjust when shrinking the
// generic pool to fund a tagged reservation would drive it below the
// capacity already committed to in-flight borrows and own-pool usage.
var ErrInsufficientGeneric = errors.New("grouppool: insufficient generic capacity")

// ErrNegativeSize is returned by Adjust when newSize is negative.
var ErrNegativeSize = errors.New("grouppool: reservation size must be >= 0")
