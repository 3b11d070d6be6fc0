// Package components ships the built-in component library: synthetic
// sources, simple conduits, and inspection sinks that run without devices
// or external APIs. Register wires all of them into a registry.
package components

import (
	"context"
	"sync"
	"time"

	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/logger"
)

// Register adds every built-in component to the registry.
func Register(reg *component.Registry) error {
	for _, d := range []*component.Descriptor{
		tickDescriptor(),
		doubleDescriptor(),
		collectDescriptor(),
		logSinkDescriptor(),
		toneDescriptor(),
		vadDescriptor(),
		videoTestDescriptor(),
		videoStreamDescriptor(),
	} {
		if err := reg.Register(d); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister is Register that panics on failure.
func MustRegister(reg *component.Registry) {
	if err := Register(reg); err != nil {
		panic(err)
	}
}

// sleepStep waits d respecting cancellation; reports false on cancel.
func sleepStep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-time.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// Tick emits monotonically increasing integers at a fixed interval.
type Tick struct {
	interval time.Duration
	n        int
}

type tickConfig struct {
	IntervalMs int `json:"interval_ms"`
	Start      int `json:"start"`
}

func tickDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "Tick",
		Category: component.CategorySource,
		Init: map[string]*component.Schema{
			"interval_ms": component.Integer(1000),
			"start":       component.Integer(0),
		},
		Outputs: map[string]string{"out": "int"},
		New: func(args map[string]any) (component.Component, error) {
			cfg := tickConfig{IntervalMs: 1000}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			return &Tick{interval: time.Duration(cfg.IntervalMs) * time.Millisecond, n: cfg.Start}, nil
		},
	}
}

func (t *Tick) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	if !sleepStep(ctx, t.interval) {
		return nil
	}
	t.n++
	out.Publish("out", t.n)
	return nil
}

// Double forwards each integer multiplied by two.
type Double struct{}

func doubleDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "Double",
		Category: component.CategoryConduit,
		Inputs:   map[string]string{"in": "int"},
		Outputs:  map[string]string{"out": "int"},
		New: func(args map[string]any) (component.Component, error) {
			return Double{}, nil
		},
	}
}

func (Double) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	if v, ok := in.Item.(int); ok {
		out.Publish("out", v * 2)
	}
	return nil
}

// Collect retains received items for inspection, bounded by limit.
type Collect struct {
	limit int

	mu    sync.Mutex
	items []any
}

type collectConfig struct {
	Limit int `json:"limit"`
}

func collectDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "Collect",
		Category: component.CategorySink,
		Init: map[string]*component.Schema{
			"limit": component.Integer(1000),
		},
		Inputs: map[string]string{"in": component.TypeAny},
		New: func(args map[string]any) (component.Component, error) {
			cfg := collectConfig{Limit: 1000}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			return &Collect{limit: cfg.Limit}, nil
		},
	}
}

func (c *Collect) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = append(c.items, in.Item)
	if c.limit > 0 && len(c.items) > c.limit {
		c.items = c.items[len(c.items)-c.limit:]
	}
	return nil
}

// Items returns a copy of the retained items, oldest first.
func (c *Collect) Items() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.items...)
}

// LogSink logs every received item through the structured logger.
type LogSink struct {
	label string
}

type logSinkConfig struct {
	Label string `json:"label"`
}

func logSinkDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "LogSink",
		Category: component.CategorySink,
		Init: map[string]*component.Schema{
			"label": component.String("log"),
		},
		Inputs: map[string]string{"in": component.TypeAny},
		New: func(args map[string]any) (component.Component, error) {
			cfg := logSinkConfig{Label: "log"}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			return &LogSink{label: cfg.Label}, nil
		},
	}
}

func (l *LogSink) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	logger.Info("item received", "label", l.label, "slot", in.Slot, "item", in.Item)
	return nil
}
