package chat

// Peer is one online participant as seen by the registry. The concrete
// implementation owns the socket; the registry only needs a name and a way
// to push a single line.
type Peer interface {
	// Username returns the authenticated name, immutable for the peer's lifetime.
	Username() string

	// Send writes one newline-terminated line to the peer. Implementations
	// must serialize concurrent calls so partial writes never interleave.
	Send(line string) error
}
