package sim_test

import (
	"errors"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/sim"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

var small = config.Edit{Field: config.Count, Value: 400}

var _ = Describe("Controller", func() {
	var (
		log      *journal
		kernel   *recordingKernel
		renderer *recordingRenderer
		ctrl     *sim.Controller
	)

	BeforeEach(func() {
		log = &journal{}
		kernel = &recordingKernel{log: log}
		renderer = &recordingRenderer{log: log}
		ctrl = sim.New(kernel, renderer, sim.WithLogger(quiet), sim.WithSeed(7), sim.WithWorkers(2))
	})

	Describe("Start", func() {
		It("generates the first epoch and runs", func() {
			Expect(ctrl.State()).To(Equal(sim.Uninitialized))
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())

			Expect(ctrl.State()).To(Equal(sim.Running))
			Expect(ctrl.Generation()).To(Equal(1))
			Expect(log.calls).To(Equal([]string{"kernel.init", "render.attach"}))

			buf := ctrl.Buffer()
			Expect(buf).NotTo(BeNil())
			Expect(buf.Capacity()).To(Equal(400))
			Expect(kernel.buf).To(BeIdenticalTo(buf))
			Expect(renderer.current().buf).To(BeIdenticalTo(buf))

			cam := ctrl.Params().Camera()
			Expect(renderer.current().cam).To(Equal(cam))
			Expect(renderer.current().constant).To(BeNumerically("~", cam.Constant(config.DefaultHeight), 1e-9))
		})

		It("rejects a second start", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())

			err := ctrl.Start(config.TierCompact, config.KindGalaxy, small)
			Expect(err).To(MatchError(sim.ErrInvalidTransition))

			var te *sim.TransitionError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.From).To(Equal(sim.Running))
		})

		It("rejects invalid selectors and edits without touching collaborators", func() {
			Expect(ctrl.Start(config.Tier(9), config.KindGalaxy)).To(MatchError(config.ErrUnknownTier))
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, config.Edit{Field: config.Count, Value: 1})).
				To(MatchError(config.ErrOutOfRange))
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, config.Edit{Field: config.KindField, Value: 2})).
				To(MatchError(config.ErrOutOfRange))

			Expect(log.calls).To(BeEmpty())
			Expect(ctrl.State()).To(Equal(sim.Uninitialized))
		})

		It("runs headless without a renderer", func() {
			headless := sim.New(kernel, nil, sim.WithLogger(quiet))
			Expect(headless.Start(config.TierCompact, config.KindUniverse, small)).To(Succeed())
			Expect(headless.Frame()).To(Succeed())
			Expect(kernel.steps).To(Equal(1))
			Expect(log.calls).To(Equal([]string{"kernel.init"}))
		})
	})

	Describe("end to end", func() {
		It("builds a compact single galaxy and hot-swaps gravity only", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy)).To(Succeed())

			buf := ctrl.Buffer()
			Expect(ctrl.Params().Count).To(Equal(10000))
			Expect(buf.Capacity()).To(Equal(10000))
			Expect(buf.Side).To(Equal(100))

			x, y, z := buf.Position(0)
			Expect([]float32{x, y, z}).To(Equal([]float32{0, 0, 0}))

			obscured := 0
			for i := 0; i < buf.Capacity(); i++ {
				if buf.Obscured(i) {
					obscured++
				}
			}
			Expect(obscured).To(BeNumerically(">=", 1))

			before := kernel.last()
			Expect(ctrl.SetLiveParam(config.Gravity, 50)).To(Succeed())

			want := before
			want.Gravity = 50
			Expect(kernel.last()).To(Equal(want))
			Expect(ctrl.Buffer()).To(BeIdenticalTo(buf))
		})
	})

	Describe("Restart", func() {
		BeforeEach(func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
		})

		It("tears down before rebuilding", func() {
			old := ctrl.Buffer()
			oldEpoch := renderer.current()
			log.calls = nil

			Expect(ctrl.Restart()).To(Succeed())

			Expect(log.calls).To(Equal([]string{
				"render.dispose",
				"kernel.release",
				"kernel.init",
				"render.attach",
			}))
			Expect(oldEpoch.disposed).To(BeTrue())
			Expect(oldEpoch.buf).To(BeNil())
			Expect(ctrl.Buffer()).NotTo(BeIdenticalTo(old))
			Expect(kernel.buf).To(BeIdenticalTo(ctrl.Buffer()))
			Expect(ctrl.Generation()).To(Equal(2))
		})

		It("can be paused straight after", func() {
			Expect(ctrl.Restart()).To(Succeed())
			Expect(ctrl.Pause()).To(Succeed())

			Expect(ctrl.State()).To(Equal(sim.Paused))
			Expect(ctrl.Buffer()).NotTo(BeNil())
		})

		It("works from paused", func() {
			Expect(ctrl.Pause()).To(Succeed())
			Expect(ctrl.Restart()).To(Succeed())
			Expect(ctrl.State()).To(Equal(sim.Running))
		})

		It("is rejected before start", func() {
			fresh := sim.New(kernel, renderer, sim.WithLogger(quiet))
			Expect(fresh.Restart()).To(MatchError(sim.ErrInvalidTransition))
		})

		It("applies staged structural edits", func() {
			Expect(ctrl.SetStructuralParam(config.Radius, 10)).To(Succeed())
			Expect(ctrl.SetStructuralParam(config.Radius, 12)).To(Succeed())
			Expect(ctrl.SetStructuralParam(config.Count, 900)).To(Succeed())

			Expect(ctrl.Params().Radius).To(Equal(50.0))
			Expect(ctrl.Staged()).To(HaveLen(2))
			Expect(ctrl.Buffer().Capacity()).To(Equal(400))

			Expect(ctrl.Restart()).To(Succeed())

			Expect(ctrl.Params().Radius).To(Equal(12.0))
			Expect(ctrl.Staged()).To(BeEmpty())
			buf := ctrl.Buffer()
			Expect(buf.Capacity()).To(Equal(900))
			for i := 1; i < buf.Capacity(); i++ {
				x, _, z := buf.Position(i)
				Expect(float64(x*x + z*z)).To(BeNumerically("<=", 12*12+1e-3))
			}
		})
	})

	Describe("SwitchScenario", func() {
		BeforeEach(func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
		})

		It("re-samples when switching to the same kind", func() {
			Expect(ctrl.SetLiveParam(config.Gravity, 33)).To(Succeed())

			Expect(ctrl.SwitchScenario(config.KindGalaxy)).To(Succeed())
			Expect(ctrl.Params()).To(Equal(config.MustPreset(config.TierCompact, config.KindGalaxy)))
			first := append([]float32(nil), ctrl.Buffer().Positions...)

			Expect(ctrl.SwitchScenario(config.KindGalaxy)).To(Succeed())
			second := ctrl.Buffer().Positions

			Expect(second).To(HaveLen(len(first)))
			Expect(second).NotTo(Equal(first))
			Expect(second[:4]).To(Equal(first[:4]))
		})

		It("loads the preset of the current tier and drops staged edits", func() {
			Expect(ctrl.SetStructuralParam(config.Radius, 10)).To(Succeed())
			Expect(ctrl.SwitchScenario(config.KindCollision)).To(Succeed())

			p := ctrl.Params()
			Expect(p.Tier).To(Equal(config.TierCompact))
			Expect(p.Kind).To(Equal(config.KindCollision))
			Expect(p.Gravity).To(Equal(40.0))
			Expect(ctrl.Staged()).To(BeEmpty())
			Expect(renderer.current().cam.Position).To(Equal([3]float64{15, 456, 504}))
		})

		It("resets parameters to the preset", func() {
			Expect(ctrl.SetLiveParam(config.Luminosity, 0.5)).To(Succeed())
			Expect(ctrl.ResetParameters()).To(Succeed())
			Expect(ctrl.Params().Luminosity).To(Equal(1.0))
			Expect(ctrl.Params().Count).To(Equal(10000))
		})
	})

	Describe("live parameters", func() {
		BeforeEach(func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
		})

		It("keeps the buffer while paused", func() {
			Expect(ctrl.Pause()).To(Succeed())
			buf := ctrl.Buffer()
			snapshot := append([]float32(nil), buf.Positions...)

			Expect(ctrl.SetLiveParam(config.TimeStep, 0.002)).To(Succeed())

			Expect(ctrl.Params().TimeStep).To(Equal(0.002))
			Expect(ctrl.Buffer()).To(BeIdenticalTo(buf))
			Expect(buf.Positions).To(Equal(snapshot))
			Expect(kernel.last().TimeStep).To(Equal(float32(0.002)))
		})

		It("resends every uniform", func() {
			Expect(ctrl.SetLiveParam(config.ColorScalePercent, 2)).To(Succeed())
			Expect(kernel.last()).To(Equal(ctrl.Params().KernelUniforms()))
			Expect(kernel.last().ColorScaleMax).To(Equal(float32(20)))
		})

		It("rejects structural and unknown fields", func() {
			buf := ctrl.Buffer()
			Expect(ctrl.SetLiveParam(config.Radius, 10)).To(MatchError(sim.ErrNotLive))
			Expect(ctrl.SetLiveParam(config.Field("spin"), 1)).To(MatchError(config.ErrUnknownField))
			Expect(ctrl.SetLiveParam(config.Gravity, -1)).To(MatchError(config.ErrOutOfRange))
			Expect(ctrl.Buffer()).To(BeIdenticalTo(buf))
			Expect(ctrl.Params().Radius).To(Equal(50.0))
		})

		It("accepts edits before start without a kernel sync", func() {
			fresh := sim.New(kernel, renderer, sim.WithLogger(quiet))
			before := len(kernel.uniforms)
			Expect(fresh.SetLiveParam(config.Gravity, 5)).To(Succeed())
			Expect(kernel.uniforms).To(HaveLen(before))
		})

		It("stages only structural fields", func() {
			Expect(ctrl.SetStructuralParam(config.Gravity, 1)).To(MatchError(sim.ErrNotStructural))
			Expect(ctrl.SetStructuralParam(config.KindField, 2)).To(MatchError(sim.ErrInvalidTransition))
			Expect(ctrl.SetStructuralParam(config.Radius, 0)).To(MatchError(config.ErrOutOfRange))
			Expect(ctrl.Staged()).To(BeEmpty())
		})
	})

	Describe("panel edits", func() {
		BeforeEach(func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
		})

		It("shows staged values over active ones", func() {
			v, staged := ctrl.Value(config.Radius)
			Expect(v).To(Equal(50.0))
			Expect(staged).To(BeFalse())

			Expect(ctrl.Apply(config.Radius, 12)).To(Succeed())
			v, staged = ctrl.Value(config.Radius)
			Expect(v).To(Equal(12.0))
			Expect(staged).To(BeTrue())
			Expect(ctrl.Params().Radius).To(Equal(50.0))
		})

		It("routes live fields and scenario kinds", func() {
			Expect(ctrl.Apply(config.Gravity, 30)).To(Succeed())
			Expect(ctrl.Params().Gravity).To(Equal(30.0))
			Expect(ctrl.Staged()).To(BeEmpty())

			Expect(ctrl.Apply(config.KindField, float64(config.KindCollision))).To(Succeed())
			Expect(ctrl.Params().Kind).To(Equal(config.KindCollision))
			Expect(ctrl.Generation()).To(Equal(2))

			Expect(ctrl.Apply(config.KindField, 9)).To(MatchError(config.ErrOutOfRange))
		})

		It("nudges within bounds", func() {
			Expect(ctrl.Nudge(config.Gravity, 2)).To(Succeed())
			Expect(ctrl.Params().Gravity).To(BeNumerically("~", 20.1, 1e-9))

			Expect(ctrl.Nudge(config.InteractionRate, 1000)).To(Succeed())
			Expect(ctrl.Params().InteractionRate).To(Equal(1.0))

			Expect(ctrl.Nudge(config.Count, -1)).To(Succeed())
			v, staged := ctrl.Value(config.Count)
			Expect(v).To(Equal(399.0))
			Expect(staged).To(BeTrue())

			Expect(ctrl.Nudge(config.Field("spin"), 1)).To(MatchError(config.ErrUnknownField))
		})
	})

	Describe("Frame", func() {
		It("steps while running and only draws while paused", func() {
			Expect(ctrl.Frame()).To(MatchError(sim.ErrNotStarted))
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())

			Expect(ctrl.Frame()).To(Succeed())
			Expect(kernel.steps).To(Equal(1))

			state, err := ctrl.TogglePause()
			Expect(err).NotTo(HaveOccurred())
			Expect(state).To(Equal(sim.Paused))

			Expect(ctrl.Frame()).To(Succeed())
			Expect(kernel.steps).To(Equal(1))
			Expect(renderer.current().draws).To(HaveLen(2))
			Expect(ctrl.Frames()).To(Equal(uint64(1)))

			Expect(ctrl.Resume()).To(Succeed())
			Expect(ctrl.Frame()).To(Succeed())
			Expect(kernel.steps).To(Equal(2))
		})

		It("draws with the current render uniforms", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
			Expect(ctrl.SetLiveParam(config.HideObscured, 1)).To(Succeed())
			Expect(ctrl.Frame()).To(Succeed())

			draws := renderer.current().draws
			Expect(draws[len(draws)-1].HideObscured).To(BeTrue())
		})
	})

	Describe("Resize", func() {
		It("pushes a new camera constant", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
			Expect(ctrl.Resize(800, 600)).To(Succeed())

			want := ctrl.Params().Camera().Constant(600)
			Expect(renderer.current().constant).To(BeNumerically("~", want, 1e-9))
			Expect(ctrl.Resize(0, 600)).To(MatchError(config.ErrOutOfRange))
		})

		It("applies the stored viewport to the next epoch", func() {
			Expect(ctrl.Resize(640, 480)).To(Succeed())
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())

			want := ctrl.Params().Camera().Constant(480)
			Expect(renderer.current().constant).To(BeNumerically("~", want, 1e-9))
		})
	})

	Describe("failures", func() {
		It("surfaces kernel init failure and holds no buffer", func() {
			boom := errors.New("no device")
			kernel.initErr = boom

			err := ctrl.Start(config.TierCompact, config.KindGalaxy, small)
			Expect(err).To(MatchError(boom))

			var te *sim.TransitionError
			Expect(errors.As(err, &te)).To(BeTrue())
			Expect(te.Op).To(Equal("start"))
			Expect(ctrl.State()).To(Equal(sim.Uninitialized))
			Expect(ctrl.Buffer()).To(BeNil())
			Expect(renderer.epochs).To(BeEmpty())

			kernel.initErr = nil
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
		})

		It("releases the previous epoch when a restart fails", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
			kernel.initErr = errors.New("lost context")
			log.calls = nil

			err := ctrl.Restart()
			Expect(err).To(HaveOccurred())
			Expect(log.calls).To(Equal([]string{"render.dispose", "kernel.release", "kernel.init"}))
			Expect(ctrl.State()).To(Equal(sim.Uninitialized))
			Expect(ctrl.Buffer()).To(BeNil())
			Expect(ctrl.Frame()).To(MatchError(sim.ErrNotStarted))
		})

		It("releases the kernel when the renderer cannot attach", func() {
			renderer.attachErr = errors.New("no window")

			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(MatchError(renderer.attachErr))
			Expect(log.calls).To(Equal([]string{"kernel.init", "render.attach", "kernel.release"}))
			Expect(kernel.buf).To(BeNil())
			Expect(ctrl.Buffer()).To(BeNil())
		})
	})

	Describe("Shutdown", func() {
		It("releases everything and refuses further work", func() {
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy, small)).To(Succeed())
			epoch := renderer.current()
			log.calls = nil

			Expect(ctrl.Shutdown()).To(Succeed())
			Expect(log.calls).To(Equal([]string{"render.dispose", "kernel.release"}))
			Expect(epoch.disposed).To(BeTrue())
			Expect(ctrl.State()).To(Equal(sim.Terminated))
			Expect(ctrl.Buffer()).To(BeNil())

			Expect(ctrl.Restart()).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.SwitchScenario(config.KindUniverse)).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.SetLiveParam(config.Gravity, 1)).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.Pause()).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.Frame()).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.Start(config.TierCompact, config.KindGalaxy)).To(MatchError(sim.ErrTerminated))
			Expect(ctrl.Shutdown()).To(Succeed())
		})

		It("is valid before start", func() {
			Expect(ctrl.Shutdown()).To(Succeed())
			Expect(log.calls).To(BeEmpty())
		})
	})

	Describe("seeding", func() {
		It("reproduces buffers from the same seed", func() {
			other := sim.New(&recordingKernel{log: &journal{}}, nil, sim.WithLogger(quiet), sim.WithSeed(7), sim.WithWorkers(5))

			Expect(ctrl.Start(config.TierCompact, config.KindCollision, small)).To(Succeed())
			Expect(other.Start(config.TierCompact, config.KindCollision, small)).To(Succeed())

			Expect(other.Seed()).To(Equal(ctrl.Seed()))
			Expect(other.Buffer().Positions).To(Equal(ctrl.Buffer().Positions))
		})
	})

	It("names its states", func() {
		Expect(sim.Paused.String()).To(Equal("paused"))
		Expect(sim.State(42).String()).To(Equal("unknown"))
		Expect(sim.Running.Live()).To(BeTrue())
		Expect(sim.Regenerating.Live()).To(BeFalse())
	})
})
