package simulator

import (
	"math"
	"math/rand"
	"sync"
)

// A Node represents a machine on a virtual network.
type Node struct {
	unused int
}

// NewNode creates a new, unique Node.
func NewNode() *Node {
	return &Node{}
}

// Port creates a new Port connected to the Node.
func (n *Node) Port(loop *EventLoop) *Port {
	return &Port{Node: n, Incoming: loop.Stream()}
}

// A Port identifies a point of communication on a Node.
// Data is sent from Ports and received on Ports.
type Port struct {
	// The Node to which the Port is attached.
	Node *Node

	// A stream of *Message objects.
	Incoming *EventStream
}

// Recv receives the next message.
//
// It fails only if the loop was aborted.
func (p *Port) Recv(h *Handle) (*Message, error) {
	event := h.Poll(p.Incoming)
	if event.Err != nil {
		return nil, event.Err
	}
	return event.Message.(*Message), nil
}

// A Message is a chunk of data sent between nodes over a
// network.
type Message struct {
	Source  *Port
	Dest    *Port
	Message interface{}

	// Size is the approximate encoded size in bytes.
	Size float64
}

// A Network represents an abstract way of communicating
// between nodes.
type Network interface {
	// Send message objects from one node to another.
	// Each message arrives on the receiving port's
	// Incoming stream.
	//
	// This is a non-blocking operation.
	Send(h *Handle, msgs ...*Message)
}

// A RandomNetwork assigns an independent random delay in
// [0, 1) to every message, so messages between the same
// pair of ports may be reordered.
type RandomNetwork struct{}

// Send sends the messages with random delays.
func (r RandomNetwork) Send(h *Handle, msgs ...*Message) {
	for _, msg := range msgs {
		h.Schedule(msg.Dest.Incoming, msg, rand.Float64())
	}
}

// An OrderedNetwork delivers messages to each node in the
// order they were sent. Every message takes Size/Rate
// units of virtual time plus a random latency of at most
// MaxRandomLatency.
type OrderedNetwork struct {
	Rate             float64
	MaxRandomLatency float64

	lock      sync.Mutex
	nextTimes map[*Node]float64
}

// NewOrderedNetwork creates an OrderedNetwork.
//
// The rate must be positive.
func NewOrderedNetwork(rate float64, maxRandomLatency float64) *OrderedNetwork {
	if rate <= 0 {
		panic("network rate must be positive")
	}
	return &OrderedNetwork{
		Rate:             rate,
		MaxRandomLatency: maxRandomLatency,
		nextTimes:        map[*Node]float64{},
	}
}

// Send sends the messages over the network in order.
func (o *OrderedNetwork) Send(h *Handle, msgs ...*Message) {
	o.lock.Lock()
	defer o.lock.Unlock()

	curTime := h.Time()
	for _, msg := range msgs {
		dest := msg.Dest.Node
		delay := rand.Float64()*o.MaxRandomLatency + msg.Size/o.Rate

		arrival := curTime + delay
		if last, ok := o.nextTimes[dest]; ok && last >= curTime {
			arrival = last + delay
			if arrival <= last {
				// Equal deadlines fire in random order.
				arrival = math.Nextafter(last, math.Inf(1))
			}
		}
		o.nextTimes[dest] = arrival
		h.Schedule(msg.Dest.Incoming, msg, arrival-curTime)
	}
}
