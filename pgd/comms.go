package pgd

import (
	"fmt"

	"github.com/unixpickle/dist-gd/simulator"
)

// Comms is one participant's view of the network.
type Comms struct {
	// Handle is the participant's Goroutine's handle on
	// the event loop.
	Handle *simulator.Handle

	// Network carries messages between ports.
	Network simulator.Network

	// Port is where the participant receives messages.
	Port *simulator.Port
}

// Send schedules a message for delivery to dst.
func (c *Comms) Send(dst *simulator.Port, msg *Message) {
	c.Network.Send(c.Handle, c.wrap(dst, msg))
}

// SendEach sends msgs[i] to dsts[i] in a single batch.
func (c *Comms) SendEach(dsts []*simulator.Port, msgs []*Message) {
	if len(dsts) != len(msgs) {
		panic("mismatching destination and message counts")
	}
	raw := make([]*simulator.Message, len(dsts))
	for i, dst := range dsts {
		raw[i] = c.wrap(dst, msgs[i])
	}
	c.Network.Send(c.Handle, raw...)
}

// Bcast sends the same message to every destination.
func (c *Comms) Bcast(dsts []*simulator.Port, msg *Message) {
	msgs := make([]*Message, len(dsts))
	for i := range msgs {
		msgs[i] = msg
	}
	c.SendEach(dsts, msgs)
}

// Recv waits for the next message.
//
// It fails if the event loop was aborted, or if something
// other than a *Message arrives.
func (c *Comms) Recv() (*Message, *simulator.Port, error) {
	raw, err := c.Port.Recv(c.Handle)
	if err != nil {
		return nil, nil, err
	}
	msg, ok := raw.Message.(*Message)
	if !ok {
		return nil, raw.Source, fmt.Errorf("%w: unexpected payload %T", ErrInternalInvariant,
			raw.Message)
	}
	return msg, raw.Source, nil
}

func (c *Comms) wrap(dst *simulator.Port, msg *Message) *simulator.Message {
	return &simulator.Message{
		Source:  c.Port,
		Dest:    dst,
		Message: msg,
		Size:    float64(msg.Size()),
	}
}
