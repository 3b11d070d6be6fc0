package components

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/image/draw"

	"github.com/Project-NEURIA/OpenNeuro/component"
	"github.com/Project-NEURIA/OpenNeuro/logger"
)

// patternSize is the edge of the low-resolution pattern that gets scaled
// up to the output resolution.
const patternSize = 64

// VideoTest emits JPEG frames of a moving color pattern at the configured
// frame rate.
type VideoTest struct {
	width, height int
	interval      time.Duration
	quality       int

	frame int
}

type videoTestConfig struct {
	Width   int `json:"width"`
	Height  int `json:"height"`
	FPS     int `json:"fps"`
	Quality int `json:"quality"`
}

func videoTestDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "VideoTest",
		Category: component.CategorySource,
		Init: map[string]*component.Schema{
			"width":   component.Integer(640),
			"height":  component.Integer(480),
			"fps":     component.Integer(15),
			"quality": component.Integer(80),
		},
		Outputs: map[string]string{"out": "jpeg"},
		New: func(args map[string]any) (component.Component, error) {
			cfg := videoTestConfig{Width: 640, Height: 480, FPS: 15, Quality: 80}
			if err := component.DecodeInit(args, &cfg); err != nil {
				return nil, err
			}
			if cfg.FPS < 1 {
				cfg.FPS = 1
			}
			return &VideoTest{
				width:    cfg.Width,
				height:   cfg.Height,
				interval: time.Second / time.Duration(cfg.FPS),
				quality:  cfg.Quality,
			}, nil
		},
	}
}

func (v *VideoTest) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	if !sleepStep(ctx, v.interval) {
		return nil
	}
	frame, err := v.render()
	if err != nil {
		return err
	}
	out.Publish("out", frame)
	return nil
}

// render draws the pattern at low resolution, scales it to the output
// size, and encodes it as JPEG.
func (v *VideoTest) render() ([]byte, error) {
	v.frame++
	pattern := image.NewRGBA(image.Rect(0, 0, patternSize, patternSize))
	for y := 0; y < patternSize; y++ {
		for x := 0; x < patternSize; x++ {
			pattern.SetRGBA(x, y, color.RGBA{
				R: uint8((x*4 + v.frame*3) % 256),
				G: uint8((y*4 + v.frame*5) % 256),
				B: uint8((x + y + v.frame*7) % 256),
				A: 255,
			})
		}
	}

	scaled := image.NewRGBA(image.Rect(0, 0, v.width, v.height))
	draw.NearestNeighbor.Scale(scaled, scaled.Bounds(), pattern, pattern.Bounds(), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: v.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// VideoStream retains the most recent JPEG frame and pushes every frame to
// attached WebSocket viewers as binary messages. Viewers that fail a write
// are detached.
type VideoStream struct {
	mu      sync.Mutex
	latest  []byte
	viewers map[*websocket.Conn]struct{}
}

func videoStreamDescriptor() *component.Descriptor {
	return &component.Descriptor{
		Name:     "VideoStream",
		Category: component.CategorySink,
		Inputs:   map[string]string{"in": "jpeg"},
		New: func(args map[string]any) (component.Component, error) {
			return NewVideoStream(), nil
		},
	}
}

// NewVideoStream creates an empty stream sink.
func NewVideoStream() *VideoStream {
	return &VideoStream{viewers: make(map[*websocket.Conn]struct{})}
}

func (v *VideoStream) Step(ctx context.Context, in component.Input, out component.Outputs) error {
	frame, ok := in.Item.([]byte)
	if !ok {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.latest = frame
	for conn := range v.viewers {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			logger.Debug("video viewer write failed, detaching", "error", err)
			conn.Close()
			delete(v.viewers, conn)
		}
	}
	return nil
}

// Stop detaches and closes every viewer.
func (v *VideoStream) Stop() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	for conn := range v.viewers {
		conn.Close()
		delete(v.viewers, conn)
	}
	return nil
}

// Attach adds a WebSocket viewer. The latest frame, if any, is sent
// immediately so a new viewer does not wait for the next publish.
func (v *VideoStream) Attach(conn *websocket.Conn) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.latest != nil {
		if err := conn.WriteMessage(websocket.BinaryMessage, v.latest); err != nil {
			return err
		}
	}
	v.viewers[conn] = struct{}{}
	return nil
}

// Detach removes a viewer without closing it.
func (v *VideoStream) Detach(conn *websocket.Conn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.viewers, conn)
}

// LatestFrame returns the most recent frame, or nil before the first one.
func (v *VideoStream) LatestFrame() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest
}
