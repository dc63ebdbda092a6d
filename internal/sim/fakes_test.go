package sim_test

import (
	"errors"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
)

// journal records collaborator calls in order across kernel and renderer.
type journal struct {
	calls []string
}

func (j *journal) add(s string) { j.calls = append(j.calls, s) }

type recordingKernel struct {
	log      *journal
	buf      *phase.Buffer
	uniforms []config.KernelUniforms
	steps    int
	initErr  error
	released int
}

func (k *recordingKernel) Init(buf *phase.Buffer, u config.KernelUniforms) error {
	k.log.add("kernel.init")
	if k.initErr != nil {
		return k.initErr
	}
	k.buf = buf
	k.uniforms = append(k.uniforms, u)
	return nil
}

func (k *recordingKernel) SetUniforms(u config.KernelUniforms) {
	k.log.add("kernel.uniforms")
	k.uniforms = append(k.uniforms, u)
}

func (k *recordingKernel) Step() error {
	if k.buf == nil {
		return errors.New("step without buffer")
	}
	k.steps++
	return nil
}

func (k *recordingKernel) Release() error {
	k.log.add("kernel.release")
	k.buf = nil
	k.released++
	return nil
}

func (k *recordingKernel) last() config.KernelUniforms {
	return k.uniforms[len(k.uniforms)-1]
}

type recordingRenderer struct {
	log       *journal
	epochs    []*recordingEpoch
	attachErr error
}

func (r *recordingRenderer) Attach(buf *phase.Buffer, cam config.Camera) (sim.Epoch, error) {
	r.log.add("render.attach")
	if r.attachErr != nil {
		return nil, r.attachErr
	}
	e := &recordingEpoch{log: r.log, buf: buf, cam: cam}
	r.epochs = append(r.epochs, e)
	return e, nil
}

func (r *recordingRenderer) current() *recordingEpoch {
	return r.epochs[len(r.epochs)-1]
}

type recordingEpoch struct {
	log      *journal
	buf      *phase.Buffer
	cam      config.Camera
	constant float64
	draws    []config.RenderUniforms
	disposed bool
}

func (e *recordingEpoch) Draw(u config.RenderUniforms) error {
	if e.disposed {
		return errors.New("draw after dispose")
	}
	e.draws = append(e.draws, u)
	return nil
}

func (e *recordingEpoch) SetCameraConstant(c float64) { e.constant = c }

func (e *recordingEpoch) Dispose() error {
	e.log.add("render.dispose")
	e.disposed = true
	e.buf = nil
	return nil
}
