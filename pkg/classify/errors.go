package classify

import "errors"

// These name the classifier's zero-tag reasons. Classify never returns
// them: it reports every one of these cases as tags == 0.
var (
	// errNotIPv4TCPUDP: the acceptance predicate failed.
	errNotIPv4TCPUDP = errors.New("classify: not an IPv4/TCP or IPv4/UDP frame")

	// errNoHeadroom: a tag push cannot fit.
	errNoHeadroom = errors.New("classify: insufficient headroom for tag push")

	// errSharedBuffer: a buffer is not exclusively owned (refcount != 1
	// or not direct).
	errSharedBuffer = errors.New("classify: buffer is shared, refusing to tag")
)
