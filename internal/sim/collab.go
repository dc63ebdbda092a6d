package sim

import (
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
)

// Kernel advances a phase-space buffer in place. The buffer passed to Init is
// borrowed until Release and must not be retained afterwards.
type Kernel interface {
	Init(buf *phase.Buffer, u config.KernelUniforms) error
	// SetUniforms replaces every uniform at once; the next Step sees them.
	SetUniforms(u config.KernelUniforms)
	Step() error
	Release() error
}

// Renderer attaches render-side resources to a freshly generated buffer.
type Renderer interface {
	Attach(buf *phase.Buffer, cam config.Camera) (Epoch, error)
}

// Epoch is the render state bound to one buffer, valid until Dispose.
type Epoch interface {
	Draw(u config.RenderUniforms) error
	SetCameraConstant(c float64)
	Dispose() error
}
