package malgo

import (
	"encoding/hex"
	"runtime"
	"strings"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/audiopulse/internal/audiocore"
	"github.com/tphakala/audiopulse/internal/errors"
)

// candidate is the subset of malgo.DeviceInfo used for device selection
type candidate struct {
	index     int
	name      string
	id        string
	isDefault bool
}

// getBackendForPlatform returns the appropriate malgo backend for the current platform
func getBackendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, errors.New(nil).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("error", "unsupported operating system").
			Context("os", runtime.GOOS).
			Build()
	}
}

// initContext creates a malgo context for the platform backend
func initContext() (*malgo.AllocatedContext, error) {
	backend, err := getBackendForPlatform()
	if err != nil {
		return nil, err
	}

	ctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("resource", "capture_device").
			Context("operation", "init_context").
			Context("backend", runtime.GOOS).
			Build()
	}
	return ctx, nil
}

// EnumerateDevices returns a list of available audio capture devices
func EnumerateDevices() ([]audiocore.DeviceInfo, error) {
	ctx, err := initContext()
	if err != nil {
		return nil, err
	}
	defer func() { _ = ctx.Uninit() }()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component(audiocore.ComponentAudioCore).
			Category(errors.CategoryAudioSource).
			Context("operation", "enumerate_devices").
			Build()
	}

	cands := toCandidates(infos)
	devices := make([]audiocore.DeviceInfo, 0, len(cands))
	for _, c := range cands {
		devices = append(devices, audiocore.DeviceInfo{
			ID:        c.id,
			Name:      c.name,
			IsDefault: c.isDefault,
		})
	}

	return devices, nil
}

// toCandidates decodes malgo device infos, skipping the null device
func toCandidates(infos []malgo.DeviceInfo) []candidate {
	cands := make([]candidate, 0, len(infos))
	for i := range infos {
		name := infos[i].Name()
		if strings.Contains(name, "Discard all samples") {
			continue
		}

		rawID := infos[i].ID.String()
		decodedID, err := hexToASCII(rawID)
		if err != nil {
			decodedID = rawID
		}

		cands = append(cands, candidate{
			index:     i,
			name:      name,
			id:        decodedID,
			isDefault: infos[i].IsDefault == 1,
		})
	}
	return cands
}

// selectDevice finds a device matching the given name or ID and returns its
// position in the malgo device list.
func selectDevice(cands []candidate, deviceName string) (int, error) {
	if deviceName == "" || deviceName == "default" || deviceName == "sysdefault" {
		for _, c := range cands {
			if c.isDefault {
				return c.index, nil
			}
		}
		// No default found, use first device
		if len(cands) > 0 {
			return cands[0].index, nil
		}
	}

	// Exact name, then decoded ID, then partial name
	for _, c := range cands {
		if c.name == deviceName {
			return c.index, nil
		}
	}
	for _, c := range cands {
		if c.id == deviceName {
			return c.index, nil
		}
	}
	for _, c := range cands {
		if strings.Contains(c.name, deviceName) {
			return c.index, nil
		}
	}

	return -1, errors.New(nil).
		Component(audiocore.ComponentAudioCore).
		Category(errors.CategoryNotFound).
		Context("resource", "capture_device").
		Context("device_name", deviceName).
		Context("available_devices", len(cands)).
		Context("error", "no matching audio device found").
		Build()
}

// hexToASCII converts a hexadecimal string to an ASCII string
func hexToASCII(hexStr string) (string, error) {
	bytes, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(bytes), "\x00"), nil
}
