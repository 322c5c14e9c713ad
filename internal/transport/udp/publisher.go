// SPDX-License-Identifier: MIT

// Package udp publishes detection status records as compact binary UDP
// packets for embedded listeners and plotting tools.
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	"dronewatch/internal/detect"
	applog "dronewatch/internal/log"
)

// PacketSize is the encoded length of one status packet.
const PacketSize = 4 + 8 + 8 + 1 + 1 + 1 + 1 + 4 + 4 + 4 + 4

// Strategy codes carried in the packet.
const (
	StrategyPeak  uint8 = 0
	StrategySpike uint8 = 1
)

// Flag bits carried in the packet.
const (
	FlagDetected uint8 = 1 << iota
	FlagSpike
	FlagWarming
)

// Packet is the decoded form of one status packet.
type Packet struct {
	Sequence   uint32 // Publisher packet counter
	Timestamp  int64  // Nanoseconds since epoch
	StatusSeq  uint64 // Loop status sequence
	Version    uint8
	Strategy   uint8
	Flags      uint8
	Reserved   uint8
	PeakFreq   float32 // Hz
	MaxDiff    float32
	Confidence float32 // 0..1
	LatencyUS  uint32  // Microseconds
}

// PacketVersion identifies the layout below.
const PacketVersion = 1

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Monotonically increasing|
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Status Sequence   | uint64         | 8            | Loop status number      |
| Version           | uint8          | 1            | PacketVersion           |
| Strategy          | uint8          | 1            | 0 peak, 1 spike         |
| Flags             | uint8          | 1            | detected, spike, warming|
| Reserved          | uint8          | 1            | Zero                    |
| Peak Frequency    | float32        | 4            | Hz                      |
| Max Diff          | float32        | 4            | Magnitude units         |
| Confidence        | float32        | 4            | Match ratio 0..1        |
| Latency           | uint32         | 4            | Microseconds            |
+-----------------------------------------------------------------------------+
*/

// Encode appends the packet to buf.
func (p Packet) Encode(buf *bytes.Buffer) error {
	return binary.Write(buf, binary.BigEndian, p)
}

// DecodePacket parses one packet.
func DecodePacket(data []byte) (Packet, error) {
	var p Packet
	if len(data) != PacketSize {
		return p, fmt.Errorf("packet is %d bytes, want %d", len(data), PacketSize)
	}
	if err := binary.Read(bytes.NewReader(data), binary.BigEndian, &p); err != nil {
		return p, err
	}
	if p.Version != PacketVersion {
		return p, fmt.Errorf("unknown packet version %d", p.Version)
	}
	return p, nil
}

// Sender transmits one encoded packet.
type Sender interface {
	Send(data []byte) error
	io.Closer
}

// UDPPublisher encodes each status and sends it through a Sender. With a
// positive interval, scanning statuses are rate limited to one per interval;
// detections are always sent.
type UDPPublisher struct {
	sender   Sender
	interval time.Duration
	now      func() time.Time

	mu           sync.Mutex
	sequenceNum  uint32
	lastSent     time.Time
	packetBuffer *bytes.Buffer // Reusable buffer for constructing the binary packet.
	skipped      uint64
}

// NewUDPPublisher wraps sender. A zero interval sends every status.
func NewUDPPublisher(interval time.Duration, sender Sender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, errors.New("UDPPublisher: UDP sender cannot be nil")
	}
	if interval < 0 {
		return nil, fmt.Errorf("UDPPublisher: negative interval %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s, Packet: %d bytes)", interval, PacketSize)
	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		now:          time.Now,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Report implements transport.Transport.
func (p *UDPPublisher) Report(status detect.Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if p.interval > 0 && !status.Detected() && !p.lastSent.IsZero() && now.Sub(p.lastSent) < p.interval {
		p.skipped++
		return nil
	}

	p.sequenceNum++
	pkt := PacketFromStatus(status)
	pkt.Sequence = p.sequenceNum
	pkt.Timestamp = now.UnixNano()

	p.packetBuffer.Reset()
	if err := pkt.Encode(p.packetBuffer); err != nil {
		return fmt.Errorf("UDPPublisher: packing status %d: %w", status.Sequence, err)
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	p.lastSent = now
	applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, p.packetBuffer.Len())
	return nil
}

// Skipped returns the number of statuses withheld by the rate limit.
func (p *UDPPublisher) Skipped() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.skipped
}

// Close closes the sender.
func (p *UDPPublisher) Close() error {
	applog.Debugf("UDPPublisher: Close called, closing sender...")
	return p.sender.Close()
}

// PacketFromStatus maps a status onto the wire layout. Sequence and
// Timestamp are left for the publisher.
func PacketFromStatus(status detect.Status) Packet {
	pkt := Packet{
		StatusSeq:  status.Sequence,
		Version:    PacketVersion,
		PeakFreq:   float32(status.PeakFreq),
		MaxDiff:    float32(status.MaxDiff),
		Confidence: float32(status.Confidence),
		LatencyUS:  uint32(min(status.Latency.Microseconds(), math.MaxUint32)),
	}
	if status.Strategy == detect.StrategySpike {
		pkt.Strategy = StrategySpike
	}
	if status.Detected() {
		pkt.Flags |= FlagDetected
	}
	if status.Spike {
		pkt.Flags |= FlagSpike
	}
	if status.Warming {
		pkt.Flags |= FlagWarming
	}
	return pkt
}
