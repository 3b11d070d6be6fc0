// Package component defines the component contract of the pipeline runtime:
// the work-function interface nodes implement, the descriptor published to
// the graph editor, and the registry that instantiates components from
// validated constructor arguments.
package component

import (
	"context"
	"encoding/json"
	"fmt"
)

// Category labels a component's role in the dataflow graph.
type Category string

// Component categories. A source has no inputs, a sink has no outputs, a
// conduit has both.
const (
	CategorySource  Category = "source"
	CategoryConduit Category = "conduit"
	CategorySink    Category = "sink"
)

// TypeAny is the wildcard element type: an input slot declaring it
// accepts every source type. Output slots always declare a concrete type.
const TypeAny = "any"

// Input carries one item delivered to a node's step. Slot names the input
// slot that produced it; sources are stepped with a zero Input.
type Input struct {
	Slot string
	Item any
}

// Outputs is the publish surface handed to a component's Step. Slots not
// declared in the descriptor are ignored.
type Outputs interface {
	Publish(slot string, item any)
}

// Component is the work function of a node. Step is invoked once per
// delivered input item (or repeatedly with a zero Input for sources) and
// may publish to the node's output slots. A returned error stops the node
// and records it in `error` status.
type Component interface {
	Step(ctx context.Context, in Input, out Outputs) error
}

// Starter is implemented by components that need setup before the node
// transitions to running.
type Starter interface {
	Start(ctx context.Context) error
}

// Stopper is implemented by components that need teardown. Stop is called
// on every termination path: normal, error, and cancellation.
type Stopper interface {
	Stop() error
}

// Descriptor describes a component class: its identity, port types, init
// parameter schema, and constructor.
type Descriptor struct {
	// Name uniquely identifies the component class.
	Name string

	// Category is source, conduit, or sink.
	Category Category

	// Init maps constructor parameter names to their schemas.
	Init map[string]*Schema

	// Inputs maps input slot names to declared element types.
	Inputs map[string]string

	// Outputs maps output slot names to declared element types.
	Outputs map[string]string

	// New constructs the component from validated init arguments.
	New func(args map[string]any) (Component, error)
}

// Validate checks the descriptor's structural invariants.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor has no name")
	}
	if d.New == nil {
		return fmt.Errorf("descriptor %s has no constructor", d.Name)
	}
	switch d.Category {
	case CategorySource:
		if len(d.Inputs) != 0 {
			return fmt.Errorf("source %s must not declare inputs", d.Name)
		}
	case CategorySink:
		if len(d.Outputs) != 0 {
			return fmt.Errorf("sink %s must not declare outputs", d.Name)
		}
	case CategoryConduit:
	default:
		return fmt.Errorf("descriptor %s has unknown category %q", d.Name, d.Category)
	}
	return nil
}

// DecodeInit unmarshals a validated init-argument map into a component's
// config struct. The map mirrors the schema shape, so a JSON round-trip
// resolves nested objects and numeric types.
func DecodeInit(args map[string]any, v any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
