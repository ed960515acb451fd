package audio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device describes a PortAudio device for --list-audio-devices.
type Device struct {
	Name            string
	HostAPI         string
	MaxInput        int
	MaxOutput       int
	DefaultSampleHz float64
	LowInputLatency time.Duration
	IsDefaultInput  bool
	IsDefaultOutput bool
}

// ListDevices returns all devices across host APIs sorted by host and name.
func ListDevices() ([]Device, error) {
	hosts, err := portaudio.HostApis()
	if err != nil {
		return nil, fmt.Errorf("host apis: %w", err)
	}

	defaultInput := -1
	if def, err := portaudio.DefaultInputDevice(); err == nil && def != nil {
		defaultInput = def.Index
	}
	defaultOutput := -1
	if def, err := portaudio.DefaultOutputDevice(); err == nil && def != nil {
		defaultOutput = def.Index
	}

	devices := make([]Device, 0, len(hosts)*4)
	for _, host := range hosts {
		for _, d := range host.Devices {
			devices = append(devices, Device{
				Name:            d.Name,
				HostAPI:         host.Name,
				MaxInput:        d.MaxInputChannels,
				MaxOutput:       d.MaxOutputChannels,
				DefaultSampleHz: d.DefaultSampleRate,
				LowInputLatency: d.DefaultLowInputLatency,
				IsDefaultInput:  d.Index == defaultInput,
				IsDefaultOutput: d.Index == defaultOutput,
			})
		}
	}

	sort.Slice(devices, func(i, j int) bool {
		if devices[i].HostAPI == devices[j].HostAPI {
			return devices[i].Name < devices[j].Name
		}
		return devices[i].HostAPI < devices[j].HostAPI
	})
	return devices, nil
}

// AutoDetectDevice returns the input device an empty --audio-device picks.
func AutoDetectDevice() (*portaudio.DeviceInfo, error) {
	return findInputDevice("")
}

func findInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name, func(d *portaudio.DeviceInfo) bool { return d.MaxInputChannels > 0 })
	}
	if dev, err := portaudio.DefaultInputDevice(); err == nil && dev != nil && dev.MaxInputChannels > 0 {
		return dev, nil
	}
	if host, err := portaudio.DefaultHostApi(); err == nil && host != nil {
		if host.DefaultInputDevice != nil && host.DefaultInputDevice.MaxInputChannels > 0 {
			return host.DefaultInputDevice, nil
		}
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	if dev := pickInstrumentInput(devices); dev != nil {
		return dev, nil
	}
	return nil, fmt.Errorf("no suitable audio input device found")
}

func findOutputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name != "" {
		return findDeviceByName(name, func(d *portaudio.DeviceInfo) bool { return d.MaxOutputChannels > 0 })
	}
	dev, err := portaudio.DefaultOutputDevice()
	if err != nil {
		return nil, fmt.Errorf("default output device: %w", err)
	}
	if dev == nil || dev.MaxOutputChannels == 0 {
		return nil, fmt.Errorf("no audio output device found")
	}
	return dev, nil
}

func findDeviceByName(name string, usable func(*portaudio.DeviceInfo) bool) (*portaudio.DeviceInfo, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	name = strings.ToLower(name)
	for _, d := range devices {
		if d == nil || !usable(d) {
			continue
		}
		if strings.Contains(strings.ToLower(d.Name), name) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("audio device %q not found", name)
}

// pickInstrumentInput prefers interfaces that look like a guitar input over
// loopback and monitor sources.
func pickInstrumentInput(devices []*portaudio.DeviceInfo) *portaudio.DeviceInfo {
	type scored struct {
		dev   *portaudio.DeviceInfo
		score int
	}

	var (
		results    []scored
		preferred  = []string{"usb", "interface", "guitar", "line", "inst", "mic"}
		discounted = []string{"monitor", "loopback", "stereo mix", "what u hear"}
	)
	for _, d := range devices {
		if d == nil || d.MaxInputChannels <= 0 {
			continue
		}
		score := 10
		lower := strings.ToLower(d.Name)
		for _, kw := range preferred {
			if strings.Contains(lower, kw) {
				score += 20
				break
			}
		}
		for _, kw := range discounted {
			if strings.Contains(lower, kw) {
				score -= 30
				break
			}
		}
		if d.DefaultLowInputLatency > 0 && d.DefaultLowInputLatency < 10*time.Millisecond {
			score += 5
		}
		results = append(results, scored{dev: d, score: score})
	}
	if len(results) == 0 {
		return nil
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score == results[j].score {
			return strings.ToLower(results[i].dev.Name) < strings.ToLower(results[j].dev.Name)
		}
		return results[i].score > results[j].score
	})
	return results[0].dev
}
