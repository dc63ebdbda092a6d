package compute

import (
	"errors"
	"fmt"
	"strings"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
)

var (
	ErrNotInitialized = errors.New("compute: kernel not initialised")
	ErrNoBuffer       = errors.New("compute: nil phase buffer")
	ErrUnknownBackend = errors.New("compute: unknown backend")
)

// Kernel is the integration kernel contract the simulation controller drives.
type Kernel interface {
	Name() string
	Init(buf *phase.Buffer, u config.KernelUniforms) error
	SetUniforms(u config.KernelUniforms)
	Step() error
	Release() error
}

type Backend string

const (
	BackendCPU Backend = "cpu"
	BackendGL  Backend = "gl"
)

// softening keeps close encounters finite in both kernels.
const softening = 0.5

func ParseBackend(s string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu", "barneshut":
		return BackendCPU, nil
	case "gl", "gpu", "opengl":
		return BackendGL, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownBackend, s)
}

// NewKernel builds the kernel for b.
func NewKernel(b Backend, workers int) (Kernel, error) {
	switch b {
	case BackendCPU:
		return NewCPUKernel(workers), nil
	case BackendGL:
		return NewGLKernel(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, b)
}

// AutoSelect prefers the GL kernel when the caller owns a GL context.
func AutoSelect(haveContext bool, workers int) Kernel {
	if haveContext {
		return NewGLKernel()
	}
	return NewCPUKernel(workers)
}
