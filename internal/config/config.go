package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all configurable paths, render settings and the scene to
// snapshot.
type Config struct {
	// Paths
	BaseDir      string `toml:"base_dir"`
	DataDir      string `toml:"data_dir"`
	ModelList    string `toml:"model_list"`
	TerrainLight string `toml:"terrain_light"`
	OutputDir    string `toml:"output_dir"`

	// Render settings
	RenderWidth  int      `toml:"render_width"`
	RenderHeight int      `toml:"render_height"`
	Supersample  int      `toml:"supersample"`
	Workers      int      `toml:"workers"`
	Background   [4]uint8 `toml:"background"`

	// Animation
	AnimationSpeed float64 `toml:"animation_speed"`
	Frames         int     `toml:"frames"`
	FrameStepMS    int     `toml:"frame_step_ms"`

	LogLevel      string `toml:"log_level"`
	WatchTextures bool   `toml:"watch_textures"`
	// LEAKey is the hex BMD v15 key. Without it v15 models fail to load.
	LEAKey string `toml:"bmd_lea_key"`

	Camera  Camera      `toml:"camera"`
	Objects []Placement `toml:"objects"`
}

// Camera places the snapshot camera. Zero fields take the camera defaults.
type Camera struct {
	Position [3]float32 `toml:"position"`
	Target   [3]float32 `toml:"target"`
	FOV      float32    `toml:"fov"`
	Near     float32    `toml:"near"`
	Far      float32    `toml:"far"`
}

// Placement is one object in the snapshot scene.
type Placement struct {
	Type     uint16     `toml:"type"`
	Position [3]float32 `toml:"position"`
	Angle    [3]float32 `toml:"angle"` // degrees
	Scale    float32    `toml:"scale"`
	Action   int        `toml:"action"`
	Alpha    float32    `toml:"alpha"`
}

// Load reads a TOML config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in any empty fields with auto-detected defaults.
// CLI flags take priority when non-zero/non-empty.
func (c *Config) Resolve(flags Flags) {
	// CLI flags override config file
	if flags.DataDir != "" {
		c.BaseDir = flags.DataDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.Frames > 0 {
		c.Frames = flags.Frames
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	// Auto-detect base dir if still empty
	if c.BaseDir == "" {
		c.BaseDir = detectBaseDir()
	}

	// Resolve relative paths against base dir
	if c.BaseDir != "" {
		c.DataDir = c.resolvePath(c.DataDir, filepath.Join(c.BaseDir, "Data"))
		if c.ModelList == "" {
			c.ModelList = findModelList(c.BaseDir)
		} else {
			c.ModelList = c.resolvePath(c.ModelList, "")
		}
		if c.TerrainLight != "" {
			c.TerrainLight = c.resolvePath(c.TerrainLight, "")
		}
		c.OutputDir = c.resolvePath(c.OutputDir, filepath.Join(c.BaseDir, "Data", "Snapshots"))
	}

	// Defaults for render settings
	if c.RenderWidth <= 0 {
		c.RenderWidth = 256
	}
	if c.RenderHeight <= 0 {
		c.RenderHeight = c.RenderWidth
	}
	if c.Supersample <= 0 {
		c.Supersample = 2
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.AnimationSpeed <= 0 {
		c.AnimationSpeed = 3
	}
	if c.Frames <= 0 {
		c.Frames = 1
	}
	if c.FrameStepMS <= 0 {
		c.FrameStepMS = 100
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	for i := range c.Objects {
		if c.Objects[i].Scale <= 0 {
			c.Objects[i].Scale = 1
		}
		if c.Objects[i].Alpha <= 0 {
			c.Objects[i].Alpha = 1
		}
	}
}

// resolvePath joins a relative path onto the base dir; empty takes def.
func (c *Config) resolvePath(p, def string) string {
	switch {
	case p == "":
		return def
	case filepath.IsAbs(p):
		return p
	default:
		return filepath.Join(c.BaseDir, p)
	}
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	DataDir   string
	OutputDir string
	Workers   int
	Frames    int
	LogLevel  string
}

func detectBaseDir() string {
	// Try relative to executable
	exe, _ := os.Executable()
	if exe != "" {
		dir := filepath.Dir(exe)
		for _, base := range []string{dir, filepath.Dir(dir), filepath.Join(dir, "..", "..")} {
			if isClientDir(base) {
				return base
			}
		}
	}

	// Try current working directory and its parent
	cwd, _ := os.Getwd()
	if isClientDir(cwd) {
		return cwd
	}
	if parent := filepath.Dir(cwd); isClientDir(parent) {
		return parent
	}

	return ""
}

func isClientDir(base string) bool {
	fi, err := os.Stat(filepath.Join(base, "Data"))
	return err == nil && fi.IsDir()
}

func findModelList(baseDir string) string {
	candidates := []string{
		filepath.Join(baseDir, "ModelList.xml"),
		filepath.Join(baseDir, "Data", "Xml", "ModelList.xml"),
		filepath.Join(baseDir, "Data", "xml", "ModelList.xml"),
	}
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	return candidates[0]
}
