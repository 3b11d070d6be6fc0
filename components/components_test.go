package components

import (
	"bytes"
	"context"
	"image/jpeg"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Project-NEURIA/OpenNeuro/component"
)

// captureOut records published items per slot.
type captureOut struct {
	items map[string][]any
}

func newCaptureOut() *captureOut {
	return &captureOut{items: make(map[string][]any)}
}

func (c *captureOut) Publish(slot string, item any) {
	c.items[slot] = append(c.items[slot], item)
}

func TestRegisterAll(t *testing.T) {
	reg := component.NewRegistry()
	require.NoError(t, Register(reg))

	names := make([]string, 0)
	for _, d := range reg.List() {
		names = append(names, d.Name)
	}
	assert.ElementsMatch(t, []string{
		"Tick", "Double", "Collect", "LogSink",
		"Tone", "VAD", "VideoTest", "VideoStream",
	}, names)

	// Registering twice fails on the first duplicate.
	assert.Error(t, Register(reg))
}

func TestTick(t *testing.T) {
	reg := component.NewRegistry()
	MustRegister(reg)

	comp, err := reg.Instantiate("Tick", map[string]any{"interval_ms": 0, "start": 10})
	require.NoError(t, err)

	out := newCaptureOut()
	for i := 0; i < 3; i++ {
		require.NoError(t, comp.Step(context.Background(), component.Input{}, out))
	}
	assert.Equal(t, []any{11, 12, 13}, out.items["out"])
}

func TestDouble(t *testing.T) {
	out := newCaptureOut()
	d := Double{}
	require.NoError(t, d.Step(context.Background(), component.Input{Slot: "in", Item: 21}, out))
	assert.Equal(t, []any{42}, out.items["out"])

	// Non-integer input is ignored.
	require.NoError(t, d.Step(context.Background(), component.Input{Slot: "in", Item: "x"}, out))
	assert.Len(t, out.items["out"], 1)
}

func TestCollectLimit(t *testing.T) {
	c := &Collect{limit: 3}
	for i := 1; i <= 5; i++ {
		require.NoError(t, c.Step(context.Background(), component.Input{Item: i}, nil))
	}
	assert.Equal(t, []any{3, 4, 5}, c.Items())
}

func TestToneSynthesis(t *testing.T) {
	reg := component.NewRegistry()
	MustRegister(reg)

	comp, err := reg.Instantiate("Tone", map[string]any{
		"freq_hz": 440.0, "sample_rate": 16000, "chunk_ms": 20, "amplitude": 0.5,
	})
	require.NoError(t, err)
	tone := comp.(*Tone)

	chunk := tone.synthesize()
	// 20 ms at 16 kHz, 2 bytes per sample.
	assert.Len(t, chunk, 320*2)

	// A sine at half amplitude has substantial energy.
	rms := pcmRMS(chunk)
	assert.InDelta(t, 0.5/1.4142, rms, 0.05)

	// Phase carries across chunks: consecutive chunks differ.
	assert.NotEqual(t, chunk, tone.synthesize())
}

func TestVADGates(t *testing.T) {
	v := &VAD{minVolume: 0.02, confidence: 0.3, alpha: 1.0}
	out := newCaptureOut()

	silence := make([]byte, 640)
	require.NoError(t, v.Step(context.Background(), component.Input{Item: silence}, out))
	assert.Empty(t, out.items["out"])

	tone := &Tone{freq: 440, amplitude: 0.8, sampleRate: 16000, chunk: 20 * time.Millisecond}
	loud := tone.synthesize()
	require.NoError(t, v.Step(context.Background(), component.Input{Item: loud}, out))
	assert.Equal(t, []any{loud}, out.items["out"])

	// Back to silence: with full smoothing the gate closes again.
	require.NoError(t, v.Step(context.Background(), component.Input{Item: silence}, out))
	assert.Len(t, out.items["out"], 1)
}

func TestVideoTestRendersJPEG(t *testing.T) {
	reg := component.NewRegistry()
	MustRegister(reg)

	comp, err := reg.Instantiate("VideoTest", map[string]any{
		"width": 320, "height": 240, "fps": 30,
	})
	require.NoError(t, err)
	vt := comp.(*VideoTest)

	frame, err := vt.render()
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(frame))
	require.NoError(t, err)
	assert.Equal(t, 320, cfg.Width)
	assert.Equal(t, 240, cfg.Height)

	// Frames animate.
	next, err := vt.render()
	require.NoError(t, err)
	assert.NotEqual(t, frame, next)
}

func TestVideoStreamLatestFrame(t *testing.T) {
	vs := NewVideoStream()
	assert.Nil(t, vs.LatestFrame())

	frame := []byte{0xff, 0xd8, 0xff}
	require.NoError(t, vs.Step(context.Background(), component.Input{Item: frame}, nil))
	assert.Equal(t, frame, vs.LatestFrame())

	require.NoError(t, vs.Stop())
}
