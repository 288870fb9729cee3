package events

// Subscriber consumes the event stream on behalf of one transport.
type Subscriber interface {
	// Send delivers an event. Implementations must not block.
	Send(Event) error

	// Close shuts down the subscriber.
	Close() error
}
