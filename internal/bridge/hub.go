package bridge

// Hub fans each serial chunk out to every registered client. It never
// blocks: a client whose queue is full is evicted on the spot.
type Hub struct {
	reg *Registry
	bus *Bus
}

func NewHub(reg *Registry, bus *Bus) *Hub {
	return &Hub{reg: reg, bus: bus}
}

// Publish enqueues chunk for every client. The same slice is shared by all
// queues, so chunk must not be modified afterwards.
func (h *Hub) Publish(chunk []byte) {
	for _, c := range h.reg.Snapshot() {
		if !c.enqueue(chunk) {
			h.reg.Remove(c, BackpressureOverflow, nil)
		}
	}
	h.bus.Publish(Event{Kind: BytesSerialToClient, N: len(chunk), Data: chunk})
}
