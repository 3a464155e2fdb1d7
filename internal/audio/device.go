// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"

	"specmon/internal/config"

	"github.com/gordonklaus/portaudio"
)

// DeviceError reports that an audio input device could not be opened or
// resolved (busy, missing, unsupported format). The pipeline remains Idle
// when Start fails with a DeviceError.
type DeviceError struct {
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("audio device %q: %v", e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Initialize sets up the PortAudio subsystem.
// This must be called before any audio operations and paired with Terminate.
func Initialize() error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return nil
}

// Terminate cleanly shuts down the PortAudio subsystem.
// This should be deferred immediately after Initialize.
func Terminate() error {
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

// InputDevice retrieves the audio input device for the given device ID.
// If deviceID is config.MinDeviceID (-1), returns the system default input
// device. Failures are reported as DeviceError.
func InputDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == config.MinDeviceID {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, &DeviceError{Device: "default", Err: err}
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, &DeviceError{Device: fmt.Sprintf("%d", deviceID), Err: err}
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, &DeviceError{
			Device: fmt.Sprintf("%d", deviceID),
			Err:    fmt.Errorf("no such device (have %d)", len(devices)),
		}
	}
	return devices[deviceID], nil
}

// ListDevices prints information about all available audio devices:
// ID, name, direction, channel counts, default sample rate and latency range.
func ListDevices() error {
	devices, err := portaudio.Devices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Audio Devices\n\n")

	for i, device := range devices {
		deviceType := ""
		switch {
		case device.MaxInputChannels > 0 && device.MaxOutputChannels > 0:
			deviceType = "Input/Output"
		case device.MaxInputChannels > 0:
			deviceType = "Input"
		case device.MaxOutputChannels > 0:
			deviceType = "Output"
		}

		fmt.Printf("[%d] %s (%s)\n", i, device.Name, deviceType)
		fmt.Printf("    Input channels: %d, Output channels: %d\n",
			device.MaxInputChannels, device.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Printf("    Latency: Low=%.2fms, High=%.2fms\n",
			device.DefaultLowInputLatency.Seconds()*1000,
			device.DefaultHighInputLatency.Seconds()*1000)
		fmt.Println()
	}

	return nil
}
