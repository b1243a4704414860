package crawler

import "errors"

var (
	// ErrTransport reports a connection, DNS or TLS failure.
	ErrTransport = errors.New("transport error")
	// ErrRead reports a body that could not be read or decoded.
	ErrRead = errors.New("read error")
	// ErrParse reports a malformed document. Extraction continues best effort.
	ErrParse = errors.New("parse error")
	// ErrLinkNormalization reports a candidate link that cannot be resolved.
	ErrLinkNormalization = errors.New("link normalization error")
	// ErrConfig reports a construction-time misconfiguration.
	ErrConfig = errors.New("config error")
)
