// Package compute provides the integration kernels that advance a phase-space
// buffer between frames.
//
//   - CPU: Barnes–Hut force evaluation (gonum spatial/barneshut), fanned out
//     with [ParallelFor]
//   - GL: a velocity/position compute-shader pair on an OpenGL 4.3 context
//
// Both read the same six uniforms (gravity, interactionRate, timeStep,
// blackHoleForce, luminosity, colorScaleMax) and integrate with a
// semi-implicit Euler step: velocity first, then position from the new
// velocity. Slot 0 is the central body: it attracts every other slot with
// mass blackHoleForce and is never moved.
//
// # Selecting a kernel
//
//	k, err := compute.NewKernel(compute.BackendCPU, workers)
//
// The GL kernel needs a current OpenGL context on the calling thread, so
// only the window front end selects it.
package compute
