// Package sim implements the simulation controller: the state machine that
// decides when a running simulation is torn down and re-seeded and when only
// its numeric parameters are hot-swapped.
//
//   - [Controller]: owns the parameter set and the phase-space buffer
//   - [Kernel]: advances the buffer one step per frame
//   - [Renderer] and [Epoch]: draw the buffer between two regenerations
//
// # Lifecycle
//
//	Uninitialized -> Regenerating -> Running <-> Paused
//	Running/Paused -> Regenerating -> Running   (Restart, SwitchScenario)
//	any -> Terminated                           (Shutdown)
//
// A regeneration always tears the previous epoch down before allocating
// anything: the epoch is disposed, then the kernel released, then the buffer
// dropped. Only a fully generated and initialised buffer is ever published.
//
// # Example
//
//	ctrl := sim.New(compute.NewCPUKernel(0), nil, sim.WithSeed(1))
//	if err := ctrl.Start(config.TierCompact, config.KindGalaxy); err != nil {
//		return err
//	}
//	for i := 0; i < 100; i++ {
//		_ = ctrl.Frame()
//	}
//	ctrl.Shutdown()
//
// # Thread Safety
//
// All Controller methods may be called from any goroutine; transitions are
// serialised and a second caller blocks until the first finishes. Kernels and
// epochs are only ever called with the controller's lock held.
package sim
