package components

import (
	"context"
	"encoding/binary"
	"math"

	"github.com/Project-NEURIA/OpenNeuro/component"
)

// VAD is an RMS energy gate over 16-bit PCM chunks: chunks whose smoothed
// voice probability clears the confidence threshold pass through, the rest
// are dropped.
type VAD struct {
	minVolume  float64
	confidence float64
	alpha      float64

	smoothedRMS float64
}

type vadConfig struct {
	MinVolume  float64 `json:"min_volume"`
	Confidence float64 `json:"confidence"`
	Smoothing  float64 `json:"smoothing"`
}

// maxExpectedRMS is the expected ceiling for voice audio; probabilities
// scale linearly between min_volume and this value.
const maxExpectedRMS = 0.5

func vadDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "VAD",
		Category: component.CategoryConduit,
		Init: map[string]*component.Schema{
			"min_volume": component.Number(0.02),
			"confidence": component.Number(0.5),
			"smoothing":  component.Number(0.3),
		},
		Inputs:  map[string]string{"in": "bytes"},
		Outputs: map[string]string{"out": "bytes"},
		New: func(args map[string]any) (component.Component, error) {
			cfg := vadConfig{MinVolume: 0.02, Confidence: 0.5, Smoothing: 0.3}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			return &VAD{minVolume: cfg.MinVolume, confidence: cfg.Confidence, alpha: cfg.Smoothing}, nil
		},
	}
}

func (v *VAD) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	chunk, ok := in.Item.([]byte)
	if !ok || len(chunk) == 0 {
		return nil
	}

	rms := pcmRMS(chunk)
	v.smoothedRMS = v.alpha*rms + (1-v.alpha)*v.smoothedRMS

	if v.probability(v.smoothedRMS) >= v.confidence {
		out.Publish("out", chunk)
	}
	return nil
}

// probability converts a smoothed RMS into a 0..1 voice probability.
func (v *VAD) probability(rms float64) float64 {
	if rms <= v.minVolume {
		return 0
	}
	p := (rms - v.minVolume) / (maxExpectedRMS - v.minVolume)
	return math.Min(math.Max(p, 0), 1)
}

// pcmRMS computes the root mean square of 16-bit little-endian PCM,
// normalized to -1..1.
func pcmRMS(audio []byte) float64 {
	numSamples := len(audio) / pcmBytesPerSample
	if numSamples == 0 {
		return 0
	}
	var sumSquares float64
	for i := 0; i < numSamples; i++ {
		sample := int16(binary.LittleEndian.Uint16(audio[i*pcmBytesPerSample:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
	}
	return math.Sqrt(sumSquares / float64(numSamples))
}
