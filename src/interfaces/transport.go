package interfaces

// -----------------------------------------------------------------------------

// ITransport is a fully-framed text pipe to one client. The session layer
// receives assembled frames and emits assembled frames; framing, deadlines and
// upgrades all live behind this interface.
type ITransport interface {
	// Send queues one outbound text frame. Must never block the caller.
	Send(text string)

	// Stateless reports whether each inbound frame arrives on its own
	// request (HTTP style) rather than a persistent connection.
	Stateless() bool

	// RemoteAddress identifies the peer for logging.
	RemoteAddress() string

	// Close tears the transport down.
	Close()
}

// -----------------------------------------------------------------------------

// IServerControl is what the shutdown action needs from the accept loop.
type IServerControl interface {
	// StopAccepting stops accepting new connections; live ones survive.
	StopAccepting()
}
