package components

import (
	"context"
	"encoding/binary"
	"math"
	"time"

	"github.com/Project-NEURIA/OpenNeuro/component"
)

const (
	pcmBytesPerSample = 2
	pcmMaxAmplitude   = 32767.0
)

// Tone synthesizes a sine wave as chunks of 16-bit little-endian PCM,
// paced at real time.
type Tone struct {
	freq       float64
	amplitude  float64
	sampleRate int
	chunk      time.Duration

	phase float64
}

type toneConfig struct {
	FreqHz     float64 `json:"freq_hz"`
	Amplitude  float64 `json:"amplitude"`
	SampleRate int     `json:"sample_rate"`
	ChunkMs    int     `json:"chunk_ms"`
}

func toneDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "Tone",
		Category: component.CategorySource,
		Init: map[string]*component.Schema{
			"freq_hz":     component.Number(440),
			"amplitude":   component.Number(0.5),
			"sample_rate": component.Integer(16000),
			"chunk_ms":    component.Integer(20),
		},
		Outputs: map[string]string{"out": "bytes"},
		New: func(args map[string]any) (component.Component, error) {
			cfg := toneConfig{FreqHz: 440, Amplitude: 0.5, SampleRate: 16000, ChunkMs: 20}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			return &Tone{
				freq:       cfg.FreqHz,
				amplitude:  cfg.Amplitude,
				sampleRate: cfg.SampleRate,
				chunk:      time.Duration(cfg.ChunkMs) * time.Millisecond,
			}, nil
		},
	}
}

func (t *Tone) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	if !sleepStep(ctx, t.chunk) {
		return nil
	}
	out.Publish("out", t.synthesize())
	return nil
}

// synthesize produces one chunk of samples, carrying phase across chunks
// so the wave is continuous.
func (t *Tone) synthesize() []byte {
	samples := t.sampleRate * int(t.chunk/time.Millisecond) / 1000
	if samples < 1 {
		samples = 1
	}
	buf := make([]byte, samples*pcmBytesPerSample)
	step := 2 * math.Pi * t.freq / float64(t.sampleRate)
	for i := 0; i < samples; i++ {
		v := int16(t.amplitude * pcmMaxAmplitude * math.Sin(t.phase))
		binary.LittleEndian.PutUint16(buf[i*pcmBytesPerSample:], uint16(v))
		t.phase += step
	}
	t.phase = math.Mod(t.phase, 2*math.Pi)
	return buf
}
