package bus

// DeliveryBus carries messages from the briefing jobs to the channel manager.
// The buffer keeps job goroutines from blocking on a slow channel send.
type DeliveryBus struct {
	ch chan DeliveryMessage
}

func NewDeliveryBus(bufSize int) *DeliveryBus {
	return &DeliveryBus{ch: make(chan DeliveryMessage, bufSize)}
}

// Publish hands a message to the channel manager.
func (b *DeliveryBus) Publish(msg DeliveryMessage) {
	b.ch <- msg
}

// Subscribe returns a receive-only view of the delivery channel.
func (b *DeliveryBus) Subscribe() <-chan DeliveryMessage {
	return b.ch
}

// Size reports how many messages are waiting to be dispatched.
func (b *DeliveryBus) Size() int { return len(b.ch) }
