package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"mu-client/internal/batch"
	"mu-client/internal/bmd"
	"mu-client/internal/camera"
	"mu-client/internal/config"
	"mu-client/internal/crypto"
	"mu-client/internal/logging"
	"mu-client/internal/mathutil"
	"mu-client/internal/meshcache"
	"mu-client/internal/modellist"
	"mu-client/internal/raster"
	"mu-client/internal/skeleton"
	"mu-client/internal/terrain"
	"mu-client/internal/texture"
	"mu-client/internal/world"
)

// snapshotLight lights objects when no terrain lightmap is configured. With
// the default object bias it adds up to full brightness.
var snapshotLight = terrain.Uniform{0.7, 0.7, 0.7}

func main() {
	// CLI flags
	configFile := flag.String("config", "", "Path to config.toml file")
	testN := flag.Int("test", 0, "Render only the first N jobs for testing")
	only := flag.Int("type", -1, "Render only objects of this model type")
	scene := flag.Bool("scene", false, "Render all configured objects together as one scene")
	watch := flag.Bool("watch", false, "Keep running and re-render when textures change")
	workers := flag.Int("workers", 0, "Number of worker goroutines (default: NumCPU)")
	dataDir := flag.String("data", "", "Path to client base directory (default: auto-detect)")
	outputDir := flag.String("output", "", "Output directory (default: Data/Snapshots)")
	frames := flag.Int("frames", 0, "Frames per job (default: 1)")
	logLevel := flag.String("log", "", "Log level: debug, info, warn, error")

	flag.Parse()

	// Load config
	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}

	// CLI flags override config file
	cfg.Resolve(config.Flags{
		DataDir:   *dataDir,
		OutputDir: *outputDir,
		Workers:   *workers,
		Frames:    *frames,
		LogLevel:  *logLevel,
	})

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Prefix: "render"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if cfg.BaseDir == "" {
		logger.Fatal("cannot find Data directory; use -data or a config file")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Model registry
	defs, err := modellist.Parse(cfg.ModelList)
	if err != nil {
		logger.Fatal("load model list", "err", err)
	}
	registry := world.NewRegistry()
	if err := registry.RegisterModelList(defs); err != nil {
		logger.Fatal("register model list", "err", err)
	}

	decoder := bmd.Decoder{}
	if cfg.LEAKey != "" {
		key, err := crypto.ParseLEAKey(cfg.LEAKey)
		if err != nil {
			logger.Fatal("bmd_lea_key", "err", err)
		}
		decoder.LEAKey = &key
	}
	models := bmd.NewLoader(cfg.DataDir, decoder)

	// Textures. Raster textures are plain images, so one cache serves every
	// job's device.
	texIndex, err := texture.BuildIndex(cfg.DataDir)
	if err != nil {
		logger.Warn("texture index", "err", err)
	}
	texCache := texture.NewCache(texIndex, raster.NewDevice(1, 1))
	defer texCache.Close()

	var light meshcache.LightSampler = snapshotLight
	if cfg.TerrainLight != "" {
		lm, err := terrain.LoadLightmap(cfg.TerrainLight)
		if err != nil {
			logger.Fatal("terrain light", "err", err)
		}
		light = lm
	}

	jobs := buildJobs(cfg, defs, *only, *scene)
	if *testN > 0 && *testN < len(jobs) {
		jobs = jobs[:*testN]
	}
	if len(jobs) == 0 {
		logger.Info("nothing to render")
		return
	}

	bcfg := batch.Config{
		Registry:    registry,
		Models:      models,
		Textures:    texCache,
		Terrain:     light,
		Camera:      cameraSettings(cfg),
		Clock:       skeleton.Clock{Speed: cfg.AnimationSpeed},
		Logger:      logger,
		OutputDir:   cfg.OutputDir,
		Width:       cfg.RenderWidth,
		Height:      cfg.RenderHeight,
		Supersample: cfg.Supersample,
		Workers:     cfg.Workers,
		Background:  color.NRGBA{cfg.Background[0], cfg.Background[1], cfg.Background[2], cfg.Background[3]},
		Frames:      cfg.Frames,
		FrameStep:   time.Duration(cfg.FrameStepMS) * time.Millisecond,
	}

	logger.Info("MU Online world snapshots", "jobs", len(jobs), "models", len(defs),
		"textures", texIndex.Len(), "workers", cfg.Workers, "output", cfg.OutputDir)

	failed := render(ctx, logger, bcfg, jobs)
	if !*watch {
		if failed > 0 {
			os.Exit(1)
		}
		return
	}

	w, err := texture.Watch(cfg.DataDir, texCache, logger)
	if err != nil {
		logger.Fatal("watch textures", "err", err)
	}
	defer w.Close()
	logger.Info("watching textures", "dir", cfg.DataDir)
	for {
		select {
		case <-ctx.Done():
			return
		case file := <-w.Changes():
			logger.Info("texture changed", "file", file)
			settle(w.Changes(), 200*time.Millisecond)
			render(ctx, logger, bcfg, jobs)
		}
	}
}

// render runs the batch, reports failures and writes the manifest. It
// returns the number of failed jobs.
func render(ctx context.Context, logger *log.Logger, bcfg batch.Config, jobs []batch.Job) int {
	start := time.Now()
	results := batch.Run(ctx, bcfg, jobs)

	failed := 0
	for _, r := range results {
		if r.Success {
			continue
		}
		failed++
		if failed <= 20 {
			logger.Error("job failed", "job", r.Name, "err", r.Error)
		}
	}
	logger.Info("done", "rendered", len(results)-failed, "jobs", len(results),
		"elapsed", time.Since(start).Round(100*time.Millisecond))

	// Write manifest
	manifestPath := filepath.Join(bcfg.OutputDir, "manifest.json")
	if err := os.MkdirAll(bcfg.OutputDir, 0755); err != nil {
		logger.Warn("manifest", "err", err)
	} else if err := batch.WriteManifest(manifestPath, results); err != nil {
		logger.Warn("manifest", "err", err)
	} else {
		logger.Info("manifest", "path", manifestPath)
	}
	return failed
}

// settle drains ch until it stays quiet for d.
func settle(ch <-chan string, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	for {
		select {
		case <-ch:
			t.Reset(d)
		case <-t.C:
			return
		}
	}
}

// buildJobs turns the configured placements into jobs, one per object or a
// single scene. Without placements every model list entry is rendered alone.
func buildJobs(cfg config.Config, defs []modellist.ModelDef, only int, scene bool) []batch.Job {
	placements := cfg.Objects
	if len(placements) == 0 {
		for _, d := range defs {
			placements = append(placements, config.Placement{Type: d.Type, Scale: 1, Alpha: 1})
		}
	}
	if only >= 0 {
		var filtered []config.Placement
		for _, p := range placements {
			if int(p.Type) == only {
				filtered = append(filtered, p)
			}
		}
		placements = filtered
	}
	if len(placements) == 0 {
		return nil
	}
	if scene {
		return []batch.Job{{Name: "scene", Objects: placements}}
	}

	jobs := make([]batch.Job, len(placements))
	for i, p := range placements {
		jobs[i] = batch.Job{
			Name:    fmt.Sprintf("%03d-%d", i, p.Type),
			Objects: []config.Placement{p},
		}
	}
	return jobs
}

func cameraSettings(cfg config.Config) camera.Settings {
	s := camera.DefaultSettings()
	c := cfg.Camera
	if c.Position != ([3]float32{}) {
		s.Position = mathutil.Vec3(c.Position)
	}
	s.Target = mathutil.Vec3(c.Target)
	if c.FOV > 0 {
		s.FOV = c.FOV
	}
	if c.Near > 0 {
		s.Near = c.Near
	}
	if c.Far > 0 {
		s.Far = c.Far
	}
	s.Aspect = float32(cfg.RenderWidth) / float32(cfg.RenderHeight)
	return s
}
