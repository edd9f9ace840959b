package markstore

import (
	"fmt"
	"time"
)

// Kind is the entry type of a store record
type Kind string

const (
	// KindMark is the only kind the profiler records
	KindMark Kind = "mark"
)

// Key identifies a family of marks.
// Namespace and Name are kept apart so that namespace matching is an exact
// comparison; "[a] b] c" can no longer belong to both "a" and "a] b".
type Key struct {
	Namespace string
	Name      string
}

// String renders the key the way it is shown to people: "[namespace] name"
func (k Key) String() string {
	return fmt.Sprintf("[%s] %s", k.Namespace, k.Name)
}

// Entry is one recorded mark
type Entry struct {
	Key       Key
	Kind      Kind
	Seq       uint64        // store-wide insertion order
	StartTime time.Duration // offset on the store clock
}

// Store defines the timestamp registry the profiler delegates to.
// Entries under the same key accumulate until erased.
type Store interface {
	// Record appends a new timestamped entry under key
	Record(key Key)

	// Query returns all entries for key in chronological order
	Query(key Key) []Entry

	// QueryAll returns every entry of the given kind across all namespaces,
	// in chronological order
	QueryAll(kind Kind) []Entry

	// Now returns the current reading of the store clock
	Now() time.Duration

	// Erase removes all entries under key
	Erase(key Key)
}

// Clock returns a monotonic reading as an offset from an arbitrary epoch
type Clock func() time.Duration

// monoEpoch is an arbitrary t0 for the default clock
var monoEpoch = time.Now()

// MonotonicClock reads the process monotonic clock.
// Values have no meaning outside this process.
func MonotonicClock() time.Duration {
	return time.Since(monoEpoch)
}
