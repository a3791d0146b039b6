// Package batch renders snapshot sequences of placed world objects with a
// worker pool. Every job owns its objects, camera and software device.
package batch

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HugoSmits86/nativewebp"
	"github.com/charmbracelet/log"

	"mu-client/internal/camera"
	"mu-client/internal/config"
	"mu-client/internal/logging"
	"mu-client/internal/mathutil"
	"mu-client/internal/meshcache"
	"mu-client/internal/postprocess"
	"mu-client/internal/raster"
	"mu-client/internal/skeleton"
	"mu-client/internal/world"
)

// Config holds all shared resources for a batch run.
type Config struct {
	Registry *world.Registry
	Models   world.ModelSource
	// Textures must hand out raster textures; nil draws vertex colors only.
	Textures meshcache.TextureResolver
	Terrain  meshcache.LightSampler
	Camera   camera.Settings
	Clock    skeleton.Clock
	Logger   *log.Logger

	OutputDir   string
	Width       int
	Height      int
	Supersample int
	Workers     int
	Background  color.NRGBA
	Frames      int
	FrameStep   time.Duration
}

// Job is one snapshot sequence: the objects placed in a scene.
type Job struct {
	Name    string
	Objects []config.Placement
}

// Frame describes one written image.
type Frame struct {
	Index   int    `json:"index"`
	Elapsed int64  `json:"elapsed_ms"`
	Image   string `json:"image"`
	Bounds  [4]int `json:"bounds"` // x0, y0, x1, y1 of non-background pixels
	Visible int    `json:"visible"`
}

// Result holds the outcome of processing one job.
type Result struct {
	Name    string
	Objects []string
	Frames  []Frame
	Success bool
	Error   string
}

// Run processes all jobs using a worker pool.
func Run(ctx context.Context, cfg Config, jobs []Job) []Result {
	logger := logging.OrDiscard(cfg.Logger)
	total := len(jobs)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				p := processed.Load()
				if p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					logger.Info("progress", "done", p, "total", total, "jobs/sec", fmt.Sprintf("%.1f", rate))
				}
			}
		}
	}()

	// Worker pool
	workers := max(cfg.Workers, 1)
	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				results[idx] = processJob(ctx, cfg, jobs[idx])
				processed.Add(1)
			}
		}()
	}

	// Send work
	for i := range jobs {
		jobChan <- i
	}
	close(jobChan)

	wg.Wait()
	close(done)

	return results
}

func processJob(ctx context.Context, cfg Config, job Job) Result {
	res := Result{Name: job.Name}
	fail := func(err error) Result {
		res.Error = err.Error()
		return res
	}

	ss := max(cfg.Supersample, 1)
	dev := raster.NewDevice(cfg.Width*ss, cfg.Height*ss)
	deps := world.Deps{
		Device:   dev,
		Textures: cfg.Textures,
		Terrain:  cfg.Terrain,
		Camera:   camera.New(cfg.Camera),
		Logger:   cfg.Logger,
		Clock:    cfg.Clock,
	}

	objs := make([]*world.Object, 0, len(job.Objects))
	defer func() {
		for _, o := range objs {
			o.Dispose()
		}
	}()
	for _, p := range job.Objects {
		o, err := cfg.Registry.Spawn(ctx, p.Type, deps, cfg.Models)
		if err != nil {
			return fail(err)
		}
		objs = append(objs, o)
		res.Objects = append(res.Objects, o.Name)
		place(o, p)
	}
	for _, o := range objs {
		if err := o.Await(ctx); err != nil {
			return fail(err)
		}
	}

	dir := filepath.Join(cfg.OutputDir, job.Name)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fail(err)
	}

	for f := 0; f < max(cfg.Frames, 1); f++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		elapsed := time.Duration(f) * cfg.FrameStep
		dev.Clear(cfg.Background)

		visible := 0
		for _, o := range objs {
			if err := o.Update(elapsed); err != nil {
				return fail(err)
			}
			if o.Visible() {
				visible++
			}
		}
		for _, o := range objs {
			if err := o.Draw(); err != nil {
				return fail(err)
			}
		}

		img := dev.Image()
		if ss > 1 {
			img = postprocess.Downsample(img, cfg.Width, cfg.Height)
		}
		name := fmt.Sprintf("%03d.webp", f)
		if err := writeWebP(filepath.Join(dir, name), img); err != nil {
			return fail(err)
		}
		b := postprocess.CoverageBounds(img, cfg.Background)
		res.Frames = append(res.Frames, Frame{
			Index:   f,
			Elapsed: elapsed.Milliseconds(),
			Image:   path.Join(job.Name, name),
			Bounds:  [4]int{b.Min.X, b.Min.Y, b.Max.X, b.Max.Y},
			Visible: visible,
		})
	}

	res.Success = true
	return res
}

// place applies a placement on top of the registry configuration. The
// placement scale multiplies the model list scale.
func place(o *world.Object, p config.Placement) {
	o.SetPosition(mathutil.Vec3(p.Position))
	o.SetAngle(mathutil.Vec3{
		mathutil.Deg2Rad(p.Angle[0]),
		mathutil.Deg2Rad(p.Angle[1]),
		mathutil.Deg2Rad(p.Angle[2]),
	})
	if p.Scale > 0 {
		o.SetScale(o.Scale() * p.Scale)
	}
	if p.Alpha > 0 {
		o.Alpha = p.Alpha
	}
	o.PlayAction(p.Action)
}

func writeWebP(file string, img image.Image) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err := nativewebp.Encode(f, img, nil); err != nil {
		f.Close()
		return fmt.Errorf("batch: webp encode %s: %w", file, err)
	}
	return f.Close()
}
