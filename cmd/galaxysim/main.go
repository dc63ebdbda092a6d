package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/galaxysim/internal/analysis"
	"github.com/san-kum/galaxysim/internal/compute"
	"github.com/san-kum/galaxysim/internal/config"
	"github.com/san-kum/galaxysim/internal/gui"
	"github.com/san-kum/galaxysim/internal/phase"
	"github.com/san-kum/galaxysim/internal/sim"
	"github.com/san-kum/galaxysim/internal/store"
	"github.com/san-kum/galaxysim/internal/viz"
	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configFile string
	tierName   string
	kindName   string
	seed       int64
	workers    int
	sets       []string
	backend    string
	logLevel   string

	frames    int
	save      bool
	frameRate int
	plane     string
	bins      int
	jsonOut   bool
	outFile   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:               "galaxysim",
		Short:             "interactive galaxy particle simulation",
		SilenceUsage:      true,
		PersistentPreRunE: setupLogging,
		RunE:              runGUI,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".galaxysim", "snapshot directory")
	pf.StringVar(&configFile, "config", "", "run file (yaml, or gcfg/ini)")
	pf.StringVar(&tierName, "tier", config.DefaultTier, "preset tier: compact or full")
	pf.StringVar(&kindName, "kind", config.DefaultKind, "scenario: single-galaxy, universe or collision")
	pf.Int64Var(&seed, "seed", 0, "random seed, 0 for time based")
	pf.IntVar(&workers, "workers", config.DefaultWorkers, "generation and cpu kernel workers")
	pf.StringArrayVar(&sets, "set", nil, "parameter override field=value, repeatable")
	pf.StringVar(&backend, "backend", "", "integration kernel: cpu, gl, or empty for auto")
	pf.StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")

	guiCmd := &cobra.Command{
		Use:   "gui",
		Short: "open the simulation window",
		Args:  cobra.NoArgs,
		RunE:  runGUI,
	}

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run the simulation in the terminal",
		Args:  cobra.NoArgs,
		RunE:  runLive,
	}
	liveCmd.Flags().IntVar(&frameRate, "fps", 30, "frame rate")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "step the simulation headless and print a summary",
		Args:  cobra.NoArgs,
		RunE:  runHeadless,
	}
	runCmd.Flags().IntVar(&frames, "frames", 100, "frames to step")
	runCmd.Flags().BoolVar(&save, "save", false, "save a snapshot when done")

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "generate a scenario and save it as a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			frames, save = 0, true
			return runHeadless(cmd, args)
		},
	}

	profileCmd := &cobra.Command{
		Use:   "profile [run_id]",
		Short: "plot the rotation curve of a snapshot, or of a fresh scenario",
		Args:  cobra.MaximumNArgs(1),
		RunE:  profileRun,
	}
	profileCmd.Flags().StringVar(&plane, "plane", "", "xz, xy or sphere (default by scenario)")
	profileCmd.Flags().IntVar(&bins, "bins", 32, "radial shells")
	profileCmd.Flags().BoolVar(&jsonOut, "json", false, "print the report as JSON")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "write a snapshot report to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVarP(&outFile, "out", "o", "report.json", "output path")
	exportCmd.Flags().IntVar(&bins, "bins", 32, "radial shells")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list snapshots",
		Args:  cobra.NoArgs,
		RunE:  listRuns,
	}

	benchCmd := &cobra.Command{
		Use:   "bench",
		Short: "benchmark the cpu kernel",
		Args:  cobra.NoArgs,
		RunE:  benchKernel,
	}
	benchCmd.Flags().IntVar(&frames, "frames", 10, "frames per size")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list presets",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range config.ListPresets() {
				fmt.Println(name)
			}
		},
	}

	initCmd := &cobra.Command{
		Use:   "init-config [path]",
		Short: "write a run file from the current flags",
		Args:  cobra.ExactArgs(1),
		RunE:  initConfig,
	}

	rootCmd.AddCommand(guiCmd, liveCmd, runCmd, generateCmd, profileCmd, exportCmd, listCmd, benchCmd, presetsCmd, initCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command, args []string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("bad --log-level: %w", err)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}

// settings is the run file merged with the command line; flags win.
type settings struct {
	file  *config.File
	tier  config.Tier
	kind  config.Kind
	edits []config.Edit
}

func resolve(cmd *cobra.Command) (*settings, error) {
	f := config.DefaultFile()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		f = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("tier") || configFile == "" {
		f.Tier = tierName
	}
	if flags.Changed("kind") || configFile == "" {
		f.Kind = kindName
	}
	if flags.Changed("seed") || f.Seed == 0 {
		f.Seed = seed
	}
	if flags.Changed("workers") || f.Workers <= 0 {
		f.Workers = workers
	}

	tier, kind, err := f.Selectors()
	if err != nil {
		return nil, err
	}
	edits, err := f.Edits()
	if err != nil {
		return nil, err
	}
	for _, s := range sets {
		e, err := config.ParseEdit(s)
		if err != nil {
			return nil, err
		}
		edits = append(edits, e)
		if f.Overrides == nil {
			f.Overrides = map[string]float64{}
		}
		f.Overrides[string(e.Field)] = e.Value
	}
	return &settings{file: f, tier: tier, kind: kind, edits: edits}, nil
}

func (s *settings) options(log *slog.Logger) []sim.Option {
	opts := []sim.Option{
		sim.WithLogger(log),
		sim.WithWorkers(s.file.Workers),
		sim.WithViewport(s.file.Width, s.file.Height),
	}
	if s.file.Seed != 0 {
		opts = append(opts, sim.WithSeed(s.file.Seed))
	}
	return opts
}

// windowless builds a kernel for commands that own no GL context.
func windowless(workers int) (compute.Kernel, error) {
	b, err := compute.ParseBackend(backend)
	if err != nil {
		return nil, err
	}
	if b == compute.BackendGL {
		return nil, errors.New("the gl kernel needs a window; use the gui command")
	}
	return compute.NewKernel(b, workers)
}

func runGUI(cmd *cobra.Command, args []string) error {
	s, err := resolve(cmd)
	if err != nil {
		return err
	}
	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	return gui.Run(gui.Config{
		Tier:    s.tier,
		Kind:    s.kind,
		Edits:   s.edits,
		Backend: backend,
		Workers: s.file.Workers,
		Seed:    s.file.Seed,
		Width:   s.file.Width,
		Height:  s.file.Height,
		Store:   st,
		Logger:  slog.Default(),
	})
}

func runLive(cmd *cobra.Command, args []string) error {
	s, err := resolve(cmd)
	if err != nil {
		return err
	}
	kernel, err := windowless(s.file.Workers)
	if err != nil {
		return err
	}

	// the terminal belongs to the panel; logs go to a file when DEBUG is set
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if os.Getenv("DEBUG") != "" {
		f, err := tea.LogToFile("debug.log", "galaxysim")
		if err != nil {
			return err
		}
		defer f.Close()
		log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	r := viz.NewRenderer(80, 30)
	ctrl := sim.New(kernel, r, s.options(log)...)
	if err := ctrl.Start(s.tier, s.kind, s.edits...); err != nil {
		return err
	}
	defer ctrl.Shutdown()

	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	m := viz.NewModel(ctrl, r, viz.Options{Store: st, Kernel: kernel.Name(), FPS: frameRate})
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func runHeadless(cmd *cobra.Command, args []string) error {
	s, err := resolve(cmd)
	if err != nil {
		return err
	}
	kernel, err := windowless(s.file.Workers)
	if err != nil {
		return err
	}

	ctrl := sim.New(kernel, nil, s.options(slog.Default())...)
	if err := ctrl.Start(s.tier, s.kind, s.edits...); err != nil {
		return err
	}
	defer ctrl.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	p := ctrl.Params()
	fmt.Printf("running %s/%s, %d particles, %d frames...\n", p.Tier, p.Kind, p.Count, frames)
	start := time.Now()
	done := 0
	for ; done < frames && ctx.Err() == nil; done++ {
		if err := ctrl.Frame(); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)
	fmt.Printf("completed %d frames in %v\n", done, elapsed)

	var sum analysis.Summary
	if err := ctrl.Inspect(func(_ config.Params, buf *phase.Buffer) error {
		sum = analysis.Summarize(buf)
		return nil
	}); err != nil {
		return err
	}
	printSummary(sum)

	if !save {
		return nil
	}
	st := store.New(dataDir)
	if err := st.Init(); err != nil {
		return err
	}
	meta := store.Metadata{
		Seed:       ctrl.Seed(),
		Generation: ctrl.Generation(),
		Frames:     ctrl.Frames(),
		Kernel:     kernel.Name(),
	}
	var id string
	if err := ctrl.Inspect(func(p config.Params, buf *phase.Buffer) error {
		meta.Params = p
		id, err = st.Save(meta, buf)
		return err
	}); err != nil {
		return err
	}
	fmt.Printf("run id: %s\n", id)
	return nil
}

func printSummary(s analysis.Summary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "slots\t%d (%d obscured)\n", s.Slots, s.Obscured)
	fmt.Fprintf(w, "center of mass\t%.3f %.3f %.3f\n", s.CenterOfMass[0], s.CenterOfMass[1], s.CenterOfMass[2])
	fmt.Fprintf(w, "speed\tmean %.3f  std %.3f  max %.3f\n", s.MeanSpeed, s.StdSpeed, s.MaxSpeed)
	fmt.Fprintf(w, "radius\tmean %.3f  median %.3f  rms %.3f\n", s.MeanRadius, s.MedianRadius, s.RMSRadius)
	fmt.Fprintf(w, "kinetic energy\t%.4g\n", s.KineticEnergy)
	w.Flush()
}

func parsePlane(s string, kind config.Kind) (analysis.Plane, error) {
	switch s {
	case "":
		if kind == config.KindUniverse {
			return analysis.Sphere, nil
		}
		return analysis.PlaneXZ, nil
	case "xz":
		return analysis.PlaneXZ, nil
	case "xy":
		return analysis.PlaneXY, nil
	case "sphere", "3d":
		return analysis.Sphere, nil
	}
	return 0, fmt.Errorf("unknown plane %q", s)
}

// snapshot loads a saved run, or generates a fresh one from the flags when
// no id is given.
func snapshot(cmd *cobra.Command, args []string) (store.Metadata, *phase.Buffer, error) {
	if len(args) == 1 {
		meta, buf, err := store.New(dataDir).Restore(args[0])
		if err != nil {
			return store.Metadata{}, nil, err
		}
		return *meta, buf, nil
	}

	s, err := resolve(cmd)
	if err != nil {
		return store.Metadata{}, nil, err
	}
	ctrl := sim.New(compute.NewCPUKernel(s.file.Workers), nil, s.options(slog.Default())...)
	if err := ctrl.Start(s.tier, s.kind, s.edits...); err != nil {
		return store.Metadata{}, nil, err
	}
	defer ctrl.Shutdown()

	meta := store.Metadata{Seed: ctrl.Seed(), Generation: ctrl.Generation()}
	var out *phase.Buffer
	err = ctrl.Inspect(func(p config.Params, buf *phase.Buffer) error {
		meta.Params = p
		out = buf
		return nil
	})
	return meta, out, err
}

func profileRun(cmd *cobra.Command, args []string) error {
	meta, buf, err := snapshot(cmd, args)
	if err != nil {
		return err
	}
	pl, err := parsePlane(plane, meta.Params.Kind)
	if err != nil {
		return err
	}

	if jsonOut {
		return store.WriteJSON(os.Stdout, store.NewReport(meta, buf, pl, bins))
	}

	fmt.Printf("scenario: %s/%s\n", meta.Params.Tier, meta.Params.Kind)
	fmt.Printf("particles: %d (%d slots)\n\n", buf.Requested, buf.Capacity())

	curve := analysis.RotationCurve(buf, pl, bins)
	if len(curve.Speeds) < 2 {
		return errors.New("too few populated shells to plot")
	}
	fmt.Println(asciigraph.Plot(curve.Speeds,
		asciigraph.Height(10),
		asciigraph.Width(80),
		asciigraph.Caption(fmt.Sprintf("mean tangential speed, %s, r up to %.1f", pl, curve.Radii[len(curve.Radii)-1])),
	))
	fmt.Println()

	shells := analysis.RadialProfile(buf, pl, bins)
	density := make([]float64, len(shells))
	for i, sh := range shells {
		density[i] = sh.Density
	}
	fmt.Println(asciigraph.Plot(density,
		asciigraph.Height(8),
		asciigraph.Width(80),
		asciigraph.Caption("density by shell"),
	))
	fmt.Println()

	printSummary(analysis.Summarize(buf))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	meta, buf, err := store.New(dataDir).Restore(args[0])
	if err != nil {
		return err
	}
	pl, err := parsePlane("", meta.Params.Kind)
	if err != nil {
		return err
	}
	if err := store.ExportJSON(outFile, store.NewReport(*meta, buf, pl, bins)); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", outFile)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	runs, err := store.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no snapshots found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSCENARIO\tTIME\tPARTICLES\tFRAMES\tKERNEL\tSEED")
	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d\t%d\t%s\t%d\n",
			run.ID,
			run.Params.Tier,
			run.Params.Kind,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.Requested,
			run.Frames,
			run.Kernel,
			run.Seed,
		)
	}
	return w.Flush()
}

func benchKernel(cmd *cobra.Command, args []string) error {
	s, err := resolve(cmd)
	if err != nil {
		return err
	}
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	fmt.Printf("benchmarking cpu kernel on %s/%s\n\n", s.tier, s.kind)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PARTICLES\tFRAMES\tGENERATE\tSTEP\tFRAMES/SEC")

	for _, n := range []int{1000, 10000, 100000} {
		ctrl := sim.New(compute.NewCPUKernel(s.file.Workers), nil, s.options(quiet)...)
		edits := append(append([]config.Edit(nil), s.edits...), config.Edit{Field: config.Count, Value: float64(n)})

		start := time.Now()
		if err := ctrl.Start(s.tier, s.kind, edits...); err != nil {
			return err
		}
		gen := time.Since(start)

		start = time.Now()
		for i := 0; i < frames; i++ {
			if err := ctrl.Frame(); err != nil {
				ctrl.Shutdown()
				return err
			}
		}
		step := time.Since(start)
		ctrl.Shutdown()

		fmt.Fprintf(w, "%d\t%d\t%v\t%v\t%.1f\n", n, frames, gen.Round(time.Millisecond), step.Round(time.Millisecond), float64(frames)/step.Seconds())
	}
	return w.Flush()
}

func initConfig(cmd *cobra.Command, args []string) error {
	s, err := resolve(cmd)
	if err != nil {
		return err
	}
	if err := config.Save(args[0], s.file); err != nil {
		return err
	}
	fmt.Printf("wrote %s\n", args[0])
	return nil
}
