// Package graph holds the mutable dataflow graph: node instances, typed
// edges, and the validation that keeps every reachable graph state sound
// (existing endpoints, matching types, no cycles).
//
// The graph is pure data plus derived predicates. It owns no channels and
// no tasks; the runtime reads it to wire a session and writes node status
// back through the setters.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/errors"
)

// Status is a node lifecycle state.
type Status string

// Node lifecycle states.
const (
	StatusStartup Status = "startup"
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusError   Status = "error"
)

// Node is one component instance in the graph.
type Node struct {
	// ID uniquely identifies the node in the graph.
	ID string

	// Type is the component name the node was instantiated from.
	Type string

	// Status is the current lifecycle state, written by the runtime.
	Status Status

	// StartedAt is the wall-clock start time in seconds; nil unless running.
	StartedAt *float64

	// Err is the captured failure message when Status is error.
	Err string

	// InitArgs are the validated constructor arguments.
	InitArgs map[string]any

	desc *component.Descriptor
	comp component.Component
}

// Edge connects one output slot to one input slot.
type Edge struct {
	SourceNode string `json:"source_node"`
	SourceSlot string `json:"source_slot"`
	TargetNode string `json:"target_node"`
	TargetSlot string `json:"target_slot"`
}

// ID returns the canonical edge identifier.
func (e Edge) ID() string {
	return fmt.Sprintf("%s:%s->%s:%s", e.SourceNode, e.SourceSlot, e.TargetNode, e.TargetSlot)
}

// Graph is the in-memory DAG of nodes and edges. All methods are safe for
// concurrent use; edits are serialized by a single writer lock.
type Graph struct {
	mu       sync.RWMutex
	registry *component.Registry
	nodes    map[string]*Node
	edges    map[string]Edge
}

// New creates an empty graph backed by the given component registry.
func New(registry *component.Registry) *Graph {
	return &Graph{
		registry: registry,
		nodes:    make(map[string]*Node),
		edges:    make(map[string]Edge),
	}
}

// AddNode instantiates a component and adds it as a node. An empty id is
// replaced by a generated unique id. New nodes start stopped.
func (g *Graph) AddNode(componentType, id string, initArgs map[string]any) (Node, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id == "" {
		id = uuid.NewString()
	}
	if _, ok := g.nodes[id]; ok {
		return Node{}, errors.New(errors.KindDuplicateID, "node id already in use: %s", id)
	}

	desc, ok := g.registry.Get(componentType)
	if !ok {
		return Node{}, errors.New(errors.KindComponentNotFound, "unknown component: %s", componentType)
	}
	comp, err := g.registry.Instantiate(componentType, initArgs)
	if err != nil {
		return Node{}, err
	}

	n := &Node{
		ID:       id,
		Type:     componentType,
		Status:   StatusStopped,
		InitArgs: initArgs,
		desc:     desc,
		comp:     comp,
	}
	g.nodes[id] = n
	return *n, nil
}

// RemoveNode removes the node and every incident edge. The caller is
// responsible for stopping a running node first.
func (g *Graph) RemoveNode(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.nodes[id]; !ok {
		return errors.New(errors.KindNodeNotFound, "node not found: %s", id)
	}
	for key, e := range g.edges {
		if e.SourceNode == id || e.TargetNode == id {
			delete(g.edges, key)
		}
	}
	delete(g.nodes, id)
	return nil
}

// AddEdge validates and adds an edge. Validation is fail-fast: unknown
// endpoints, unknown slots, type mismatches, duplicates, repeated
// slot-to-node fan-in, and cycles all reject without mutating the graph.
func (g *Graph) AddEdge(e Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	src, ok := g.nodes[e.SourceNode]
	if !ok {
		return errors.New(errors.KindNodeNotFound, "node not found: %s", e.SourceNode)
	}
	tgt, ok := g.nodes[e.TargetNode]
	if !ok {
		return errors.New(errors.KindNodeNotFound, "node not found: %s", e.TargetNode)
	}

	srcType, ok := src.desc.Outputs[e.SourceSlot]
	if !ok {
		return errors.New(errors.KindUnknownSlot, "%s has no output slot %q", e.SourceNode, e.SourceSlot)
	}
	tgtType, ok := tgt.desc.Inputs[e.TargetSlot]
	if !ok {
		return errors.New(errors.KindUnknownSlot, "%s has no input slot %q", e.TargetNode, e.TargetSlot)
	}
	// Types match by strict string equality; "any" on an input slot is the
	// one wildcard, letting inspection sinks accept every element type.
	if srcType != tgtType && tgtType != component.TypeAny {
		return errors.New(errors.KindTypeMismatch,
			"%s.%s produces %s but %s.%s accepts %s",
			e.SourceNode, e.SourceSlot, srcType, e.TargetNode, e.TargetSlot, tgtType)
	}
	if _, ok := g.edges[e.ID()]; ok {
		return errors.New(errors.KindDuplicateEdge, "edge already exists: %s", e.ID())
	}
	// Subscriptions are keyed by target node, one per output slot; a second
	// edge from the same slot into the same node would collide at wiring
	// time, so it is rejected here instead.
	for _, other := range g.edges {
		if other.SourceNode == e.SourceNode && other.SourceSlot == e.SourceSlot && other.TargetNode == e.TargetNode {
			return errors.New(errors.KindAlreadySubscribed,
				"%s already consumes %s.%s (via %s)", e.TargetNode, e.SourceNode, e.SourceSlot, other.TargetSlot)
		}
	}
	if g.wouldCycle(e) {
		return errors.New(errors.KindCycleDetected, "edge %s would close a cycle", e.ID())
	}

	g.edges[e.ID()] = e
	return nil
}

// RemoveEdge deletes an edge and reports whether it existed.
func (g *Graph) RemoveEdge(e Edge) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.edges[e.ID()]; !ok {
		return false
	}
	delete(g.edges, e.ID())
	return true
}

// Node returns a snapshot of one node.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns a snapshot of all nodes ordered by id.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, *n)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns a snapshot of all edges ordered by id.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, e)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Instance returns the live component instance behind a node.
func (g *Graph) Instance(id string) (component.Component, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.comp, true
}

// Descriptor returns the component descriptor behind a node.
func (g *Graph) Descriptor(id string) (*component.Descriptor, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return nil, false
	}
	return n.desc, true
}

// SetStatus updates a node's lifecycle state. Leaving the running state
// clears StartedAt; entering it without SetRunning is not done by the
// runtime.
func (g *Graph) SetStatus(id string, status Status) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.Status = status
		if status != StatusRunning {
			n.StartedAt = nil
		}
	}
}

// SetRunning marks a node running with the given wall-clock start time in
// seconds.
func (g *Graph) SetRunning(id string, startedAt float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.Status = StatusRunning
		n.StartedAt = &startedAt
		n.Err = ""
	}
}

// SetError records a node failure: error status plus the captured message.
func (g *Graph) SetError(id string, msg string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n, ok := g.nodes[id]; ok {
		n.Status = StatusError
		n.StartedAt = nil
		n.Err = msg
	}
}

// TopoOrder returns node ids in topological order, sources first. The
// graph is kept acyclic by AddEdge, so this cannot fail on a graph built
// through the public API.
func (g *Graph) TopoOrder() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return topoSort(g.nodes, g.edges)
}

// wouldCycle reports whether adding e closes a cycle, by attempting a
// topological walk over the proposed edge set. Caller holds the lock.
func (g *Graph) wouldCycle(e Edge) bool {
	proposed := make(map[string]Edge, len(g.edges)+1)
	for k, v := range g.edges {
		proposed[k] = v
	}
	proposed[e.ID()] = e
	return len(topoSort(g.nodes, proposed)) != len(g.nodes)
}

// topoSort is Kahn's algorithm over node ids. It returns fewer ids than
// nodes when the edge set contains a cycle. Ties are broken by id for a
// deterministic order.
func topoSort(nodes map[string]*Node, edges map[string]Edge) []string {
	indegree := make(map[string]int, len(nodes))
	succ := make(map[string][]string, len(nodes))
	for id := range nodes {
		indegree[id] = 0
	}
	for _, e := range edges {
		succ[e.SourceNode] = append(succ[e.SourceNode], e.TargetNode)
		indegree[e.TargetNode]++
	}

	ready := make([]string, 0, len(nodes))
	for id, deg := range indegree {
		if deg == 0 {
			ready = append(ready, id)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)

		next := []string{}
		for _, t := range succ[id] {
			indegree[t]--
			if indegree[t] == 0 {
				next = append(next, t)
			}
		}
		sort.Strings(next)
		ready = append(ready, next...)
	}
	return order
}
