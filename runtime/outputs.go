package runtime

import (
	"github.com/Project-NEURIA/OpenNeuro/channel"
	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/frames"
)

// outputs is the publish surface handed to a node's step. It fans items
// into the node's output channels and feeds the frame inspector. Publishes
// to undeclared slots are ignored.
type outputs struct {
	node     string
	chans    map[string]*channel.Channel // slot -> channel
	recorder *frames.Recorder
}

var _ component.Outputs = (*outputs)(nil)

// newOutputs builds the publish surface for one node from the session's
// channel map. Caller holds rt.mu.
func (rt *Runtime) newOutputs(id string, desc *component.Descriptor) *outputs {
	chans := make(map[string]*channel.Channel, len(desc.Outputs))
	for slot := range desc.Outputs {
		chans[slot] = rt.channels[channelName(id, slot)]
	}
	return &outputs{node: id, chans: chans, recorder: rt.recorder}
}

// Publish sends item on the named output slot's channel.
func (o *outputs) Publish(slot string, item any) {
	ch, ok := o.chans[slot]
	if !ok {
		return
	}
	ch.Publish(item)
	o.recorder.Record(o.node, slot, ch.ElemType(), item)
}

// closeAll closes every output channel of the node.
func (o *outputs) closeAll() {
	for _, ch := range o.chans {
		ch.Close()
	}
}
