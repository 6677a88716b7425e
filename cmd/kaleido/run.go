package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Carmen-Shannon/kaleido-go/common"
	"github.com/Carmen-Shannon/kaleido-go/engine"
	"github.com/Carmen-Shannon/kaleido-go/engine/command"
	"github.com/Carmen-Shannon/kaleido-go/engine/config"
	"github.com/Carmen-Shannon/kaleido-go/engine/export"
	"github.com/Carmen-Shannon/kaleido-go/engine/frame"
	"github.com/Carmen-Shannon/kaleido-go/engine/params"
	"github.com/Carmen-Shannon/kaleido-go/engine/renderer"
	"github.com/Carmen-Shannon/kaleido-go/engine/source"
	"github.com/Carmen-Shannon/kaleido-go/engine/window"
	"github.com/spf13/cobra"
)

type runFlags struct {
	source   string
	fit      string
	preset   string
	width    int
	height   int
	vsync    bool
	software bool
	headless bool
	profile  bool
	limit    float64
	frames   uint64
	output   string
}

func newRunCommand(loadConfig func() (config.Config, error)) *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Open the output window and start rendering",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyRunFlags(cmd, &cfg, f)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Renderer.Headless && f.frames == 0 {
				return fmt.Errorf("--headless needs --frames")
			}
			return run(cmd.Context(), cfg, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVarP(&f.source, "source", "s", "", "initial source image")
	fl.StringVar(&f.fit, "fit", "", "source fit mode: cover, contain or stretch")
	fl.StringVarP(&f.preset, "preset", "p", "", "preset applied at startup")
	fl.IntVar(&f.width, "width", 0, "output width in pixels")
	fl.IntVar(&f.height, "height", 0, "output height in pixels")
	fl.BoolVar(&f.vsync, "vsync", true, "wait for vertical blank when presenting")
	fl.BoolVar(&f.software, "software", false, "request the fallback (CPU) GPU adapter")
	fl.BoolVar(&f.headless, "headless", false, "render with the Go kernels and no window")
	fl.BoolVar(&f.profile, "profile", false, "log frame statistics every second")
	fl.Float64Var(&f.limit, "fps", 0, "frame rate cap (0 = uncapped)")
	fl.Uint64Var(&f.frames, "frames", 0, "stop after this many frames (0 = until closed)")
	fl.StringVarP(&f.output, "output", "o", "", "save the last frame to this file (.png or .exr) on exit")
	return cmd
}

// applyRunFlags overrides config values with the flags the user actually set.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config, f runFlags) {
	changed := cmd.Flags().Changed
	if changed("source") {
		cfg.Source.Image = f.source
	}
	if changed("fit") {
		cfg.Source.Fit = f.fit
	}
	if changed("preset") {
		cfg.Presets.Startup = f.preset
	}
	if changed("width") {
		cfg.Window.Width = f.width
	}
	if changed("height") {
		cfg.Window.Height = f.height
	}
	if changed("vsync") {
		cfg.Window.VSync = f.vsync
	}
	if changed("software") {
		cfg.Renderer.Software = f.software
	}
	if changed("headless") {
		cfg.Renderer.Headless = f.headless
	}
	if changed("profile") {
		cfg.Engine.Profiling = f.profile
	}
	if changed("fps") {
		cfg.Engine.FrameLimit = f.limit
	}
}

func run(ctx context.Context, cfg config.Config, f runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := params.NewStore()
	presets, err := openPresets(cfg.Presets.File)
	if err != nil {
		return err
	}
	startup := common.Coalesce(cfg.Presets.Startup, presets.Startup())
	if startup != "" {
		if err := presets.Apply(startup, store); err != nil {
			return fmt.Errorf("startup preset: %w", err)
		}
	}

	format, _ := cfg.ExportFormat()
	fit, _ := cfg.FitMode()
	exporter := export.NewExporter(export.WithDirectory(cfg.Export.Directory), export.WithFormat(format))

	var win window.Window
	var r renderer.Renderer
	if cfg.Renderer.Headless {
		r, err = renderer.NewRenderer(renderer.BackendTypeSoftware, nil, renderer.WithWorkers(cfg.Renderer.Workers))
	} else {
		win, err = window.NewWindow(window.WithTitle(cfg.Window.Title), window.WithSize(cfg.Window.Width, cfg.Window.Height))
		if err != nil {
			return err
		}
		defer win.Close()
		mode := renderer.PresentModeVSync
		if !cfg.Window.VSync {
			mode = renderer.PresentModeUncapped
		}
		r, err = renderer.NewRenderer(renderer.BackendTypeWGPU, win,
			renderer.WithPresentMode(mode),
			renderer.WithForceSoftwareRenderer(cfg.Renderer.Software))
	}
	if err != nil {
		return fmt.Errorf("create renderer: %w", err)
	}
	defer r.Release()

	o := frame.NewOrchestrator(r,
		frame.WithStore(store),
		frame.WithPresets(presets),
		frame.WithPresetFile(cfg.Presets.File),
		frame.WithExporter(exporter))
	defer o.Release()

	if cfg.Renderer.Headless {
		o.Queue().Push(command.Resize{Width: cfg.Window.Width, Height: cfg.Window.Height})
	}
	if cfg.Source.Image != "" {
		src, err := source.LoadImage(cfg.Source.Image, source.WithFit(fit))
		if err != nil {
			return err
		}
		o.Queue().Push(command.SetSource{Source: src})
	}

	options := []engine.EngineBuilderOption{
		engine.WithOrchestrator(o),
		engine.WithProfiling(cfg.Engine.Profiling),
		engine.WithRenderFrameLimit(cfg.Engine.FrameLimit),
		engine.WithMaxFrames(f.frames),
		engine.WithSourceFit(fit),
	}
	if win != nil {
		options = append(options, engine.WithWindow(win))
	}
	if cfg.Presets.Watch && cfg.Presets.File != "" {
		options = append(options, engine.WithPresetWatch(cfg.Presets.File))
	}
	e := engine.NewEngine(options...)

	go func() {
		<-ctx.Done()
		e.Quit()
	}()
	if err := e.Run(); err != nil {
		return err
	}

	if f.output != "" {
		pix, w, h, err := r.Capture()
		if err != nil {
			return fmt.Errorf("capture last frame: %w", err)
		}
		if _, err := exporter.Save(pix, w, h, f.output); err != nil {
			return err
		}
	}
	return nil
}

// openPresets loads the user preset file and persists every later library change back to it.
func openPresets(path string) (params.PresetLibrary, error) {
	doc, err := params.LoadPresetFile(path)
	if err != nil {
		return nil, err
	}
	return params.NewPresetLibrary(
		params.WithDocument(doc),
		params.WithOnChange(func(d params.PresetDocument) {
			if path == "" {
				return
			}
			if err := params.SavePresetFile(path, d); err != nil {
				log.Printf("[Presets] save failed: %v", err)
			}
		}),
	), nil
}
