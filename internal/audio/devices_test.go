// SPDX-License-Identifier: MIT
package audio

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/gordonklaus/portaudio"
)

// fakeHost replaces the PortAudio device queries for one test.
func fakeHost(t *testing.T, infos []*portaudio.DeviceInfo, defaultIdx int) {
	t.Helper()
	origDevices, origDefault := paDevicesFunc, paDefaultInputFunc
	t.Cleanup(func() {
		paDevicesFunc, paDefaultInputFunc = origDevices, origDefault
	})

	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) { return infos, nil }
	paDefaultInputFunc = func() (*portaudio.DeviceInfo, error) {
		if defaultIdx < 0 {
			return nil, fmt.Errorf("mock default input error")
		}
		return infos[defaultIdx], nil
	}
}

func testInfos() []*portaudio.DeviceInfo {
	return []*portaudio.DeviceInfo{
		{Name: "Built-in Output", MaxOutputChannels: 2, DefaultSampleRate: 48000},
		{
			Name:                    "USB Microphone",
			MaxInputChannels:        1,
			DefaultSampleRate:       44100,
			DefaultLowInputLatency:  5 * time.Millisecond,
			DefaultHighInputLatency: 20 * time.Millisecond,
		},
		{Name: "Headset", MaxInputChannels: 1, MaxOutputChannels: 2, DefaultSampleRate: 16000},
	}
}

func TestHostDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)

	devices, err := HostDevices()
	if err != nil {
		t.Fatalf("HostDevices error: %v", err)
	}
	if len(devices) != 3 {
		t.Fatalf("got %d devices, want 3", len(devices))
	}
	for i, d := range devices {
		if d.ID != i {
			t.Errorf("Device ID mismatch: got %d, want %d", d.ID, i)
		}
	}
	wantKinds := []string{"Output", "Input", "Input/Output"}
	for i, want := range wantKinds {
		if got := devices[i].Kind(); got != want {
			t.Errorf("device %d Kind() = %q, want %q", i, got, want)
		}
	}
	if devices[1].HighInputLatency != 20*time.Millisecond {
		t.Errorf("latency not carried over: %v", devices[1].HighInputLatency)
	}
}

func TestHostDevices_paDevicesError(t *testing.T) {
	orig := paDevicesFunc
	defer func() { paDevicesFunc = orig }()
	paDevicesFunc = func() ([]*portaudio.DeviceInfo, error) {
		return nil, fmt.Errorf("mock error")
	}

	_, err := HostDevices()
	if err == nil || !strings.Contains(err.Error(), "mock error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestInputDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)

	inputs, err := InputDevices()
	if err != nil {
		t.Fatalf("InputDevices error: %v", err)
	}
	if len(inputs) != 2 || inputs[0].ID != 1 || inputs[1].ID != 2 {
		t.Errorf("InputDevices() = %+v, want IDs 1 and 2", inputs)
	}
}

func TestInputDevice(t *testing.T) {
	infos := testInfos()
	fakeHost(t, infos, 1)

	dev, err := InputDevice(DefaultDeviceID)
	if err != nil || dev.Name != "USB Microphone" {
		t.Fatalf("InputDevice(default) = %v, %v", dev, err)
	}
	if dev, err := InputDevice(2); err != nil || dev.Name != "Headset" {
		t.Errorf("InputDevice(2) = %v, %v", dev, err)
	}

	tests := []struct {
		name   string
		id     int
		substr string
	}{
		{"Negative ID", -2, "invalid device ID"},
		{"Too high ID", len(infos) + 10, "invalid device ID"},
		{"Non-input device", 0, "no input channels"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InputDevice(tt.id)
			if err == nil {
				t.Errorf("Expected error for ID %d", tt.id)
			} else if !strings.Contains(err.Error(), tt.substr) {
				t.Errorf("Error = %q, want substring %q", err.Error(), tt.substr)
			}
		})
	}
}

func TestInputDevice_paDefaultInputDeviceError(t *testing.T) {
	fakeHost(t, testInfos(), -1)

	_, err := InputDevice(DefaultDeviceID)
	if err == nil || !strings.Contains(err.Error(), "mock default input error") {
		t.Errorf("expected mock error, got %v", err)
	}
}

func TestErrorInitialize(t *testing.T) {
	orig := paLibInitialize
	defer func() { paLibInitialize = orig }()

	paLibInitialize = func() error { return nil }
	if err := Initialize(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibInitialize = func() error { return fmt.Errorf("mock init error") }
	if err := Initialize(); err == nil || !strings.Contains(err.Error(), "mock init error") {
		t.Errorf("expected mock init error, got %v", err)
	}
}

func TestErrorTerminate(t *testing.T) {
	orig := paLibTerminate
	defer func() { paLibTerminate = orig }()

	paLibTerminate = func() error { return nil }
	if err := Terminate(); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	paLibTerminate = func() error { return fmt.Errorf("mock term error") }
	if err := Terminate(); err == nil || !strings.Contains(err.Error(), "mock term error") {
		t.Errorf("expected mock term error, got %v", err)
	}
}

func TestListDevices(t *testing.T) {
	fakeHost(t, testInfos(), 1)

	var buf bytes.Buffer
	if err := ListDevices(&buf); err != nil {
		t.Fatalf("ListDevices: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"[1] USB Microphone (Input)",
		"Default sample rate: 44100 Hz",
		"Latency: Low=5.00ms, High=20.00ms",
		"[2] Headset (Input/Output)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
