// Package runtime drives the dataflow graph: it owns one task per node and
// the network of channels between them for the duration of a session.
//
// Start wires channels and subscriptions in topological order, then spawns
// every node task concurrently. Stop cancels cooperatively. A node failure
// is captured on that node alone; the rest of the pipeline keeps running
// and simply observes the failed node's channels closing.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/Project-NEURIA/OpenNeuro/channel"
	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/errors"
	"github.com/Project-NEURIA/OpenNeuro/frames"
	"github.com/Project-NEURIA/OpenNeuro/graph"
	"github.com/Project-NEURIA/OpenNeuro/logger"
)

// Config holds runtime tunables. Zero values fall back to defaults.
type Config struct {
	// ChannelCapacity is the per-subscriber buffer capacity.
	// Default: channel.DefaultCapacity.
	ChannelCapacity int

	// FrameHistory is the number of recent publishes retained for the
	// inspector. Default: frames.DefaultHistory.
	FrameHistory int
}

// Runtime owns node tasks and channels for a graph session.
type Runtime struct {
	cfg      Config
	graph    *graph.Graph
	recorder *frames.Recorder

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	channels map[string]*channel.Channel // channel name -> channel
	owners   map[string]string           // channel name -> producing node id
	subs     map[string]subRef           // edge id -> live subscription
	tasks    map[string]*task            // node id -> task
}

// subRef ties an edge to its live subscription for unsubscribe on removal.
type subRef struct {
	ch  *channel.Channel
	sub *channel.Subscription
}

// task is the per-node execution state.
type task struct {
	id     string
	source bool
	in     chan component.Input
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	outs   *outputs
}

// New creates a runtime over the given graph.
func New(g *graph.Graph, cfg Config) *Runtime {
	return &Runtime{
		cfg:      cfg,
		graph:    g,
		recorder: frames.NewRecorder(cfg.FrameHistory),
		channels: make(map[string]*channel.Channel),
		owners:   make(map[string]string),
		subs:     make(map[string]subRef),
		tasks:    make(map[string]*task),
	}
}

// Graph returns the underlying graph model.
func (rt *Runtime) Graph() *graph.Graph { return rt.graph }

// Recorder returns the frame inspector attached to this runtime.
func (rt *Runtime) Recorder() *frames.Recorder { return rt.recorder }

// Running reports whether a session is active.
func (rt *Runtime) Running() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return rt.running
}

// channelName names the channel of one output slot.
func channelName(nodeID, slot string) string {
	return nodeID + "." + slot
}

// nowSeconds returns the wall clock as float seconds.
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}

// StartAll starts a session: channels are created and subscribed in
// topological order from sources to sinks, then every node task is spawned
// concurrently. A second start without an intervening stop fails with
// AlreadyRunning.
func (rt *Runtime) StartAll() error {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if rt.running {
		return errors.New(errors.KindAlreadyRunning, "pipeline is already running")
	}

	rt.channels = make(map[string]*channel.Channel)
	rt.owners = make(map[string]string)
	rt.subs = make(map[string]subRef)
	rt.tasks = make(map[string]*task)

	order := rt.graph.TopoOrder()

	// One channel per declared output slot, sources first.
	for _, id := range order {
		desc, ok := rt.graph.Descriptor(id)
		if !ok {
			continue
		}
		for slot, elemType := range desc.Outputs {
			name := channelName(id, slot)
			rt.channels[name] = channel.New(name, elemType, rt.cfg.ChannelCapacity)
			rt.owners[name] = id
		}
		rt.graph.SetStatus(id, graph.StatusStartup)
	}

	// One subscription per edge, keyed by the target node id.
	for _, e := range rt.graph.Edges() {
		ch := rt.channels[channelName(e.SourceNode, e.SourceSlot)]
		sub, err := ch.Subscribe(e.TargetNode)
		if err != nil {
			rt.abortStartLocked(order)
			return err
		}
		rt.subs[e.ID()] = subRef{ch: ch, sub: sub}
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel

	for _, id := range order {
		desc, ok := rt.graph.Descriptor(id)
		if !ok {
			continue
		}

		nodeCtx, nodeCancel := context.WithCancel(rootCtx)
		t := &task{
			id:     id,
			source: len(desc.Inputs) == 0,
			in:     make(chan component.Input),
			ctx:    nodeCtx,
			cancel: nodeCancel,
			done:   make(chan struct{}),
			outs:   rt.newOutputs(id, desc),
		}
		rt.tasks[id] = t

		for _, e := range rt.graph.Edges() {
			if e.TargetNode != id {
				continue
			}
			rt.startPump(t, e.TargetSlot, rt.subs[e.ID()].sub)
		}

		rt.wg.Add(1)
		go rt.runNode(t)
	}

	rt.running = true
	logger.Info("pipeline started", "nodes", len(order), "edges", len(rt.graph.Edges()))
	return nil
}

// abortStartLocked rolls back a partially wired session.
func (rt *Runtime) abortStartLocked(order []string) {
	for _, ch := range rt.channels {
		ch.Close()
	}
	rt.channels = make(map[string]*channel.Channel)
	rt.owners = make(map[string]string)
	rt.subs = make(map[string]subRef)
	for _, id := range order {
		rt.graph.SetStatus(id, graph.StatusStopped)
	}
}

// StopAll signals cancellation to every node task, waits for them to wind
// down, and closes all channels. Always succeeds; stopping a stopped
// pipeline is a no-op.
func (rt *Runtime) StopAll() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	if !rt.running {
		return
	}

	rt.cancel()
	rt.wg.Wait()

	// Tasks close their own outputs on exit; this catches channels whose
	// producer never reached running.
	for _, ch := range rt.channels {
		ch.Close()
	}

	for _, n := range rt.graph.Nodes() {
		rt.graph.SetStatus(n.ID, graph.StatusStopped)
	}

	rt.running = false
	rt.tasks = make(map[string]*task)
	logger.Info("pipeline stopped")
}

// startPump spawns the goroutine that moves items from one subscription
// into the node's merged input channel. The node steps whenever any of its
// inputs produces.
func (rt *Runtime) startPump(t *task, slot string, sub *channel.Subscription) {
	rt.wg.Add(1)
	go func() {
		defer rt.wg.Done()
		for {
			item, ok := sub.Receive(t.ctx)
			if !ok {
				return
			}
			select {
			case t.in <- component.Input{Slot: slot, Item: item}:
			case <-t.ctx.Done():
				return
			}
		}
	}()
}

// runNode is the task body: optional startup, the step loop, teardown.
func (rt *Runtime) runNode(t *task) {
	defer rt.wg.Done()
	defer close(t.done)

	comp, ok := rt.graph.Instance(t.id)
	if !ok {
		return
	}

	if s, ok := comp.(component.Starter); ok {
		if err := s.Start(t.ctx); err != nil {
			rt.finishNode(t, comp, err)
			return
		}
	}

	rt.graph.SetRunning(t.id, nowSeconds())
	logger.Debug("node running", "node", t.id)

	var stepErr error
	if t.source {
		// Sources drive themselves: a produce loop with no input argument.
		for t.ctx.Err() == nil {
			if err := comp.Step(t.ctx, component.Input{}, t.outs); err != nil {
				stepErr = err
				break
			}
		}
	} else {
	loop:
		for {
			select {
			case in := <-t.in:
				if err := comp.Step(t.ctx, in, t.outs); err != nil {
					stepErr = err
					break loop
				}
			case <-t.ctx.Done():
				break loop
			}
		}
	}

	rt.finishNode(t, comp, stepErr)
}

// finishNode runs teardown on every termination path: stop hook, output
// closure, and status accounting. A step error is captured on the node's
// record and never cascades to other nodes.
func (rt *Runtime) finishNode(t *task, comp component.Component, stepErr error) {
	if st, ok := comp.(component.Stopper); ok {
		if err := st.Stop(); err != nil {
			logger.Warn("node stop hook failed", "node", t.id, "error", err)
		}
	}
	t.outs.closeAll()

	if stepErr != nil && t.ctx.Err() == nil {
		t.cancel() // release this node's pumps
		rt.graph.SetError(t.id, stepErr.Error())
		logger.Error("node failed", "node", t.id, "error", stepErr)
		return
	}
	rt.graph.SetStatus(t.id, graph.StatusStopped)
	logger.Debug("node stopped", "node", t.id)
}
