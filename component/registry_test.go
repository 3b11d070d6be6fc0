package component

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-NEURIA/OpenNeuro/errors"
)

type nopComponent struct{}

func (nopComponent) Step(ctx context.Context, in Input, out Outputs) error { return nil }

func descriptorFixture(name string, cat Category) *Descriptor {
	d := &Descriptor{
		Name:     name,
		Category: cat,
		Init:     map[string]*Schema{},
		New: func(args map[string]any) (Component, error) {
			return nopComponent{}, nil
		},
	}
	if cat != CategorySource {
		d.Inputs = map[string]string{"in": "int"}
	}
	if cat != CategorySink {
		d.Outputs = map[string]string{"out": "int"}
	}
	return d
}

func TestDescriptorValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Descriptor)
		wantErr bool
	}{
		{"valid conduit", func(d *Descriptor) {}, false},
		{"missing name", func(d *Descriptor) { d.Name = "" }, true},
		{"missing constructor", func(d *Descriptor) { d.New = nil }, true},
		{"source with inputs", func(d *Descriptor) { d.Category = CategorySource }, true},
		{"bad category", func(d *Descriptor) { d.Category = "filter" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := descriptorFixture("X", CategoryConduit)
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistryListOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(descriptorFixture("Zeta", CategorySink)))
	require.NoError(t, r.Register(descriptorFixture("Alpha", CategoryConduit)))
	require.NoError(t, r.Register(descriptorFixture("Mic", CategorySource)))
	require.NoError(t, r.Register(descriptorFixture("Beta", CategoryConduit)))

	names := []string{}
	for _, d := range r.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"Mic", "Alpha", "Beta", "Zeta"}, names)
}

func TestRegisterDuplicate(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(descriptorFixture("X", CategoryConduit)))
	assert.Error(t, r.Register(descriptorFixture("X", CategoryConduit)))
}

func TestInstantiateUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Instantiate("Nope", nil)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindComponentNotFound))
}

func TestInstantiateValidatesArgs(t *testing.T) {
	r := NewRegistry()
	d := descriptorFixture("Gain", CategoryConduit)
	d.Init = map[string]*Schema{
		"factor": Number(2),
		"mode":   {Type: "string", Enum: []any{"clip", "wrap"}},
	}
	require.NoError(t, r.Register(d))

	_, err := r.Instantiate("Gain", map[string]any{"factor": 1.5, "mode": "clip"})
	assert.NoError(t, err)

	_, err = r.Instantiate("Gain", map[string]any{"factor": "loud"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgs))

	_, err = r.Instantiate("Gain", map[string]any{"mode": "fold"})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgs))

	_, err = r.Instantiate("Gain", map[string]any{"unknown": 1})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgs))
}

func TestInstantiateNestedObjectAndRef(t *testing.T) {
	r := NewRegistry()
	d := descriptorFixture("Agent", CategoryConduit)
	d.Init = map[string]*Schema{
		"model": {
			Ref: "#/$defs/Model",
			Defs: map[string]*Schema{
				"Model": Object(map[string]*Schema{
					"name":        String("gpt"),
					"temperature": Number(0.7),
				}),
			},
		},
		"prompt": Object(map[string]*Schema{
			"system": String(),
		}),
	}
	require.NoError(t, r.Register(d))

	_, err := r.Instantiate("Agent", map[string]any{
		"model":  map[string]any{"name": "local", "temperature": 0.1},
		"prompt": map[string]any{"system": "be brief"},
	})
	assert.NoError(t, err)

	_, err = r.Instantiate("Agent", map[string]any{
		"model": map[string]any{"temperature": "hot"},
	})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindInvalidArgs))
}

func TestDecodeInit(t *testing.T) {
	type cfg struct {
		Interval int     `json:"interval"`
		Gain     float64 `json:"gain"`
		Label    string  `json:"label"`
	}
	var c cfg
	err := DecodeInit(map[string]any{"interval": 10, "gain": 1.5, "label": "x"}, &c)
	require.NoError(t, err)
	assert.Equal(t, cfg{Interval: 10, Gain: 1.5, Label: "x"}, c)
}
