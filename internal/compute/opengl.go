package compute

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/go-gl/gl/v4.3-core/gl"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/phase"
)

var (
	//go:embed shaders/velocity.comp
	velocitySource string

	//go:embed shaders/position.comp
	positionSource string
)

const workGroupSize = 256

// GLKernel runs the velocity and position passes as OpenGL 4.3 compute
// shaders over one shader storage buffer holding interleaved position and
// velocity vec4s. After every step the storage buffer is read back into the
// phase buffer so renderers and snapshots see current data.
//
// All methods must be called on the thread that owns the GL context.
type GLKernel struct {
	velocity uint32
	position uint32
	ssbo     uint32

	buf     *phase.Buffer
	u       config.KernelUniforms
	count   int32
	scratch []float32
	loaded  bool
	steps   int
}

func NewGLKernel() *GLKernel {
	return &GLKernel{}
}

func (k *GLKernel) Name() string { return string(BackendGL) }

func (k *GLKernel) Init(buf *phase.Buffer, u config.KernelUniforms) error {
	if buf == nil {
		return ErrNoBuffer
	}
	if !k.loaded {
		if err := gl.Init(); err != nil {
			return fmt.Errorf("compute: init opengl: %w", err)
		}
		k.loaded = true
	}

	var err error
	if k.velocity, err = createComputeProgram(velocitySource); err != nil {
		return fmt.Errorf("compute: velocity program: %w", err)
	}
	if k.position, err = createComputeProgram(positionSource); err != nil {
		gl.DeleteProgram(k.velocity)
		k.velocity = 0
		return fmt.Errorf("compute: position program: %w", err)
	}

	k.scratch = buf.Interleaved()
	k.count = int32(buf.Capacity())

	gl.GenBuffers(1, &k.ssbo)
	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, k.ssbo)
	gl.BufferData(gl.SHADER_STORAGE_BUFFER, len(k.scratch)*4, gl.Ptr(k.scratch), gl.DYNAMIC_COPY)
	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 0, k.ssbo)

	k.buf = buf
	k.u = u
	k.steps = 0
	return nil
}

func (k *GLKernel) SetUniforms(u config.KernelUniforms) { k.u = u }

func (k *GLKernel) Step() error {
	if k.buf == nil {
		return ErrNotInitialized
	}
	groups := uint32((k.count + workGroupSize - 1) / workGroupSize)

	gl.BindBufferBase(gl.SHADER_STORAGE_BUFFER, 0, k.ssbo)

	gl.UseProgram(k.velocity)
	k.upload(k.velocity)
	gl.DispatchCompute(groups, 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT)

	gl.UseProgram(k.position)
	k.upload(k.position)
	gl.DispatchCompute(groups, 1, 1)
	gl.MemoryBarrier(gl.SHADER_STORAGE_BARRIER_BIT | gl.BUFFER_UPDATE_BARRIER_BIT)

	gl.BindBuffer(gl.SHADER_STORAGE_BUFFER, k.ssbo)
	gl.GetBufferSubData(gl.SHADER_STORAGE_BUFFER, 0, len(k.scratch)*4, gl.Ptr(k.scratch))
	if err := k.buf.Deinterleave(k.scratch); err != nil {
		return err
	}

	k.steps++
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("compute: gl error 0x%x after step %d", code, k.steps)
	}
	return nil
}

// upload sends every uniform by name; names a program does not declare are
// skipped by GL.
func (k *GLKernel) upload(program uint32) {
	for name, v := range k.u.Named() {
		gl.Uniform1f(gl.GetUniformLocation(program, gl.Str(name+"\x00")), v)
	}
	gl.Uniform1f(gl.GetUniformLocation(program, gl.Str("softening\x00")), softening)
	gl.Uniform1i(gl.GetUniformLocation(program, gl.Str("count\x00")), k.count)
}

func (k *GLKernel) Release() error {
	if k.ssbo != 0 {
		gl.DeleteBuffers(1, &k.ssbo)
		k.ssbo = 0
	}
	if k.velocity != 0 {
		gl.DeleteProgram(k.velocity)
		k.velocity = 0
	}
	if k.position != 0 {
		gl.DeleteProgram(k.position)
		k.position = 0
	}
	k.buf = nil
	k.scratch = nil
	return nil
}

func createComputeProgram(source string) (uint32, error) {
	shader := gl.CreateShader(gl.COMPUTE_SHADER)
	csources, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csources, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := strings.Repeat("\x00", int(logLength+1))
		gl.GetShaderInfoLog(shader, logLength, nil, gl.Str(log))
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("failed to compile compute shader: %v", log)
	}

	program := gl.CreateProgram()
	gl.AttachShader(program, shader)
	gl.LinkProgram(program)
	gl.DeleteShader(shader)

	gl.GetProgramiv(program, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		gl.DeleteProgram(program)
		return 0, fmt.Errorf("failed to link compute program")
	}
	return program, nil
}
