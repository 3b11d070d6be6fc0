package runtime

import (
	"github.com/Project-NEURIA/OpenNeuro/graph"
	"github.com/Project-NEURIA/OpenNeuro/logger"
)

// AddNode validates and adds a node. Nodes added while a session is
// running stay stopped until the next start.
func (rt *Runtime) AddNode(componentType, id string, initArgs map[string]any) (graph.Node, error) {
	return rt.graph.AddNode(componentType, id, initArgs)
}

// RemoveNode removes a node and its incident edges. A node that is part of
// the running session is stopped first and its channels are closed.
func (rt *Runtime) RemoveNode(id string) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if _, ok := rt.graph.Node(id); !ok {
		return rt.graph.RemoveNode(id) // surfaces NodeNotFound
	}

	if rt.running {
		rt.stopNodeLocked(id)
	}
	return rt.graph.RemoveNode(id)
}

// stopNodeLocked winds down one node inside a running session: cancels its
// task, detaches its inbound subscriptions, and closes its output
// channels. Caller holds rt.mu.
func (rt *Runtime) stopNodeLocked(id string) {
	if t, ok := rt.tasks[id]; ok {
		t.cancel()
		<-t.done
		delete(rt.tasks, id)
	}

	for _, e := range rt.graph.Edges() {
		if e.TargetNode == id {
			if ref, ok := rt.subs[e.ID()]; ok {
				ref.ch.Unsubscribe(id)
				delete(rt.subs, e.ID())
			}
		}
		if e.SourceNode == id {
			delete(rt.subs, e.ID())
		}
	}

	if desc, ok := rt.graph.Descriptor(id); ok {
		for slot := range desc.Outputs {
			name := channelName(id, slot)
			if ch, ok := rt.channels[name]; ok {
				ch.Close()
				delete(rt.channels, name)
				delete(rt.owners, name)
			}
		}
	}

	rt.graph.SetStatus(id, graph.StatusStopped)
	logger.Debug("node removed from running session", "node", id)
}

// AddEdge validates and adds an edge. On a running graph the target is
// atomically subscribed on the source's live channel and begins receiving
// from that point.
func (rt *Runtime) AddEdge(e graph.Edge) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if err := rt.graph.AddEdge(e); err != nil {
		return err
	}
	if !rt.running {
		return nil
	}

	ch, ok := rt.channels[channelName(e.SourceNode, e.SourceSlot)]
	if !ok {
		// Source joined after start; it has no live channel this session.
		return nil
	}
	sub, err := ch.Subscribe(e.TargetNode)
	if err != nil {
		rt.graph.RemoveEdge(e)
		return err
	}
	rt.subs[e.ID()] = subRef{ch: ch, sub: sub}

	if t, ok := rt.tasks[e.TargetNode]; ok {
		rt.startPump(t, e.TargetSlot, sub)
	}
	return nil
}

// RemoveEdge deletes an edge, unsubscribing the target from the source's
// channel immediately when the session is running. Reports whether the
// edge existed.
func (rt *Runtime) RemoveEdge(e graph.Edge) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.graph.RemoveEdge(e) {
		return false
	}
	if ref, ok := rt.subs[e.ID()]; ok {
		ref.ch.Unsubscribe(e.TargetNode)
		delete(rt.subs, e.ID())
	}
	return true
}
