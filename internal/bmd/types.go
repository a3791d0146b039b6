package bmd

import (
	"path"
	"strings"

	"mu-client/internal/mathutil"
)

// Triangle holds polygon type and index triples into vertex/normal/texcoord arrays.
// Polygon == 4 means quad (two triangles: 0-1-2 and 0-2-3).
type Triangle struct {
	Polygon int
	VI      [4]int16
	NI      [4]int16
	TI      [4]int16
}

// Mesh holds parsed geometry for one sub-mesh within a BMD file.
type Mesh struct {
	Verts   []mathutil.Vec3 // bind-space vertex positions
	Nodes   []int16         // bone index per vertex
	Normals []mathutil.Vec3
	UVs     [][2]float32
	Tris    []Triangle
	TexPath string // texture reference from BMD (e.g. "sword04.jpg")
}

// Action is one animation clip shared by every bone of the skeleton.
type Action struct {
	NumAnimationKeys int
	// LockPositions pins the root bone's horizontal translation while the
	// action plays.
	LockPositions bool
	Positions     []mathutil.Vec3 // per-key root positions, only when locked
}

// BoneMatrix is one bone's keyframe track for a single action.
type BoneMatrix struct {
	Position   []mathutil.Vec3
	Rotation   []mathutil.Vec3 // Euler XYZ radians, as stored on disk
	Quaternion []mathutil.Quat // Rotation converted at load time
}

// Bone is a node in the skeleton hierarchy.
type Bone struct {
	Name     string
	Parent   int // -1 for root
	IsDummy  bool
	Matrixes []BoneMatrix // indexed by action
}

// Dummy is the sentinel stored in unused bone slots.
var Dummy = Bone{Parent: -1, IsDummy: true}

// Model is a parsed BMD file. It is shared read-only between every object
// that uses it and must not be mutated after load.
type Model struct {
	Name    string
	Path    string // slash-separated path the model was loaded from
	Version byte
	Meshes  []Mesh
	Bones   []Bone
	Actions []Action
}

// TexturePath returns the texture reference of a mesh relative to the
// directory of the model file, which is where MU ships model textures.
func (m *Model) TexturePath(mesh int) string {
	if mesh < 0 || mesh >= len(m.Meshes) {
		return ""
	}
	tex := strings.ReplaceAll(m.Meshes[mesh].TexPath, "\\", "/")
	if m.Path == "" {
		return tex
	}
	return path.Join(path.Dir(m.Path), tex)
}

// Track returns the keyframe track of bone for action, or nil when the bone
// has no data for it.
func (b *Bone) Track(action int) *BoneMatrix {
	if action < 0 || action >= len(b.Matrixes) {
		return nil
	}
	return &b.Matrixes[action]
}
