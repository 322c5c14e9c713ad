// SPDX-License-Identifier: MIT

/*
Package audio captures live microphone input through PortAudio and records
captured blocks to WAV.

Capture uses the PortAudio blocking API rather than a callback: each
ReadBlock fills a pre-allocated int16 buffer of exactly one block and
returns a fresh float64 copy in int16 full-scale units, which the detectors
take ownership of.
*/
package audio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dronewatch/internal/errs"
	"dronewatch/internal/log"

	"github.com/gordonklaus/portaudio"
)

// CaptureConfig selects the device and block geometry.
type CaptureConfig struct {
	DeviceID   int     // DefaultDeviceID for the host default
	SampleRate float64 // Hz
	BlockSize  int     // Samples per ReadBlock
	LowLatency bool    // Use the device's low input latency
}

// blockingStream is the subset of *portaudio.Stream used by Capture.
type blockingStream interface {
	Start() error
	Read() error
	Stop() error
	Close() error
}

// openStream is replaced in tests.
var openStream = func(params portaudio.StreamParameters, buf []int16) (blockingStream, error) {
	return portaudio.OpenStream(params, buf)
}

// Capture is a live mono input Source.
type Capture struct {
	cfg     CaptureConfig
	device  *portaudio.DeviceInfo
	latency time.Duration
	stream  blockingStream
	buffer  []int16
}

// NewCapture opens and starts a mono input stream. PortAudio must already
// be initialized.
func NewCapture(cfg CaptureConfig) (*Capture, error) {
	if cfg.BlockSize <= 0 || !(cfg.SampleRate > 0) {
		return nil, fmt.Errorf("capture: block size %d at %v Hz: %w", cfg.BlockSize, cfg.SampleRate, errs.ErrInvalidConfig)
	}

	device, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}

	c := &Capture{
		cfg:    cfg,
		device: device,
		buffer: make([]int16, cfg.BlockSize),
	}
	if cfg.LowLatency {
		c.latency = device.DefaultLowInputLatency
	} else {
		c.latency = device.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 1,
			Device:   device,
			Latency:  c.latency,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: 0, // No output device
			Device:   nil,
		},
		FramesPerBuffer: cfg.BlockSize,
		SampleRate:      cfg.SampleRate,
	}

	stream, err := openStream(params, c.buffer)
	if err != nil {
		return nil, fmt.Errorf("capture: open stream on %q: %w", device.Name, err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("capture: start stream on %q: %w", device.Name, err)
	}
	c.stream = stream

	log.Infof("Capture: Listening on %q at %.0f Hz, %d samples per block (latency %s)",
		device.Name, cfg.SampleRate, cfg.BlockSize, c.latency)
	return c, nil
}

// ReadBlock blocks until one full block has been captured.
func (c *Capture) ReadBlock(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.stream == nil {
		return nil, fmt.Errorf("capture: stream closed: %w", errs.ErrAcquisition)
	}

	if err := c.stream.Read(); err != nil {
		if errors.Is(err, portaudio.InputOverflowed) {
			return nil, fmt.Errorf("capture: input overflowed, samples lost: %w", errs.ErrAcquisition)
		}
		return nil, fmt.Errorf("capture: %w: %w", errs.ErrAcquisition, err)
	}

	block := make([]float64, len(c.buffer))
	for i, s := range c.buffer {
		block[i] = float64(s)
	}
	return block, nil
}

// SampleRate implements engine.Source.
func (c *Capture) SampleRate() float64 {
	return c.cfg.SampleRate
}

// DeviceName returns the name of the capturing device.
func (c *Capture) DeviceName() string {
	return c.device.Name
}

// Close stops and releases the stream. It is safe to call more than once.
func (c *Capture) Close() error {
	if c.stream == nil {
		return nil
	}
	stream := c.stream
	c.stream = nil

	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("capture: stop stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("capture: close stream: %w", err)
	}
	return nil
}
