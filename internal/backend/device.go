package backend

import (
	"fmt"
	"os"

	"reconstructd/internal/common/fsutil"
)

// Device is the execution device models run on.
type Device string

const (
	DeviceCPU  Device = "cpu"
	DeviceCUDA Device = "cuda"
)

// ResolveDevice resolves the requested device once per process. "auto" (or
// empty) prefers an accelerator when one is present. Requesting cuda on a
// machine without one is a configuration error; callers treat it as fatal
// at startup.
func ResolveDevice(requested string) (Device, error) {
	switch requested {
	case "", "auto":
		if cudaAvailable() {
			return DeviceCUDA, nil
		}
		return DeviceCPU, nil
	case "cpu":
		return DeviceCPU, nil
	case "cuda":
		if !cudaAvailable() {
			return "", fmt.Errorf("cuda requested but no accelerator present")
		}
		return DeviceCUDA, nil
	default:
		return "", fmt.Errorf("unknown device %q (want auto, cpu or cuda)", requested)
	}
}

func cudaAvailable() bool {
	if os.Getenv("CUDA_VISIBLE_DEVICES") != "" {
		return true
	}
	return fsutil.PathExists("/dev/nvidia0")
}
