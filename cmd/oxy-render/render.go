package main

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine"
	"github.com/Carmen-Shannon/oxy-render/engine/compute"
	"github.com/Carmen-Shannon/oxy-render/engine/loader"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// Render the cube grid until the window closes.
func renderCubes(ctx *cli.Context) error {
	setupLogging(ctx)

	if ctx.Int("cubes") <= 0 {
		return errors.New("cubes must be positive")
	}
	if ctx.Int("drawlists") < 1 {
		return errors.New("at least one drawlist is required")
	}
	if ctx.Int("workers") == 0 {
		logger.Notice("no workers requested; the window will stay empty")
	}

	var model *loader.Model
	if path := ctx.String("model"); path != "" {
		m, err := loader.NewLoader().Load(path)
		if err != nil {
			return err
		}
		model = &m
	}

	cubes, err := newGridScene(ctx.Int("cubes"), float32(ctx.Float64("spacing")), model)
	if err != nil {
		return err
	}

	win := window.NewWindow(
		window.WithTitle("oxy-render"),
		window.WithWidth(ctx.Int("width")),
		window.WithHeight(ctx.Int("height")),
	)
	defer win.Close()

	backendOpts := []renderer.BackendBuilderOption{
		renderer.WithPresentMode(renderer.PresentModeUncapped),
		renderer.WithForceSoftwareRenderer(ctx.Bool("software")),
	}
	if ctx.Bool("vsync") {
		backendOpts = append(backendOpts, renderer.WithPresentMode(renderer.PresentModeVSync))
	}
	if ctx.Bool("msaa") {
		backendOpts = append(backendOpts, renderer.WithMSAA(renderer.MSAA4x))
	}
	backend := renderer.NewWGPUBackend(win, backendOpts...)
	defer backend.Release()

	managerOpts := []renderer.ManagerBuilderOption{
		renderer.WithWorkers(ctx.Int("workers")),
		renderer.WithDrawlists(ctx.Int("drawlists")),
		renderer.WithFrameTimer(profiler.NewFrameTimer()),
	}
	if ctx.Bool("compute") {
		managerOpts = append(managerOpts, renderer.WithComputeProvider(compute.NewWGPUProvider(
			compute.WithForceFallbackAdapter(ctx.Bool("software")),
		)))
	}
	mgr := renderer.NewManager(cubes.snapshot(), backend, pipeline.NewForward(backend), managerOpts...)

	eng := engine.NewEngine(mgr,
		engine.WithWindow(win),
		engine.WithTickRate(ctx.Float64("tick-rate")),
		engine.WithTickCallback(cubes.tick),
	)

	logger.Noticef("rendering %d cells with %d worker(s) and %d drawlist(s)", len(cubes.cubes), ctx.Int("workers"), ctx.Int("drawlists"))
	start := time.Now()
	err = eng.Run()

	displayFrameStats(mgr.Stats(), eng.Ticks(), time.Since(start))
	return err
}

// Print the final coordinator statistics.
func displayFrameStats(stats renderer.Stats, ticks uint64, elapsed time.Duration) {
	avgFPS := 0.0
	if elapsed > 0 {
		avgFPS = float64(stats.Frames) / elapsed.Seconds()
	}

	var buf bytes.Buffer
	table := tablewriter.NewWriter(&buf)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader([]string{"State", "Live workers", "Drawlists", "Ticks", "Updates", "Frames", "Avg FPS", "Last FPS", "Last frame"})
	table.Append([]string{
		stats.State.String(),
		fmt.Sprintf("%d", stats.Workers),
		fmt.Sprintf("%d", stats.PoolSize),
		fmt.Sprintf("%d", ticks),
		fmt.Sprintf("%d", stats.Updates),
		fmt.Sprintf("%d", stats.Frames),
		fmt.Sprintf("%.1f", avgFPS),
		fmt.Sprintf("%.1f", stats.FPS),
		stats.LastFrame.String(),
	})
	table.SetFooter([]string{"", "", "", "", "", "", "", "TOTAL", elapsed.Round(time.Millisecond).String()})

	table.Render()
	logger.Noticef("frame statistics\n%s", buf.String())
}
