package interfaces

// EventPublisher pushes finalized transaction events to downstream
// consumers. A nil publisher disables publishing; failures are logged by
// the caller and never affect the financial state.
type EventPublisher interface {
	Publish(topic string, event any) error
}
