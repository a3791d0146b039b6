package bmd

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"mu-client/internal/crypto"
	"mu-client/internal/mathutil"
)

var (
	ErrInvalidHeader = errors.New("bmd: invalid header")
	ErrMissingKey    = errors.New("bmd: v15 model needs an LEA key")
)

// Sanity limits; real client models stay far below them.
const (
	maxMeshes  = 100
	maxBones   = 1000
	maxActions = 1000
)

// Decoder parses BMD files. Versions 10 (unencrypted), 12 (XOR) and 15
// (LEA-256 ECB) are supported; v15 requires LEAKey.
type Decoder struct {
	LEAKey *[32]byte
}

// Parse reads a BMD file with a Decoder that has no LEA key.
func Parse(path string) (*Model, error) {
	return Decoder{}.ParseFile(path)
}

// ParseFile reads and decodes a BMD file.
func (d Decoder) ParseFile(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("bmd: read %s: %w", path, err)
	}
	m, err := d.Decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w in %s", err, path)
	}
	m.Path = filepath.ToSlash(path)
	return m, nil
}

// Decode parses an in-memory BMD file.
func (d Decoder) Decode(raw []byte) (*Model, error) {
	if len(raw) < 4 || string(raw[:3]) != "BMD" {
		return nil, ErrInvalidHeader
	}

	version := raw[3]
	var data []byte

	switch version {
	case 12, 15:
		if len(raw) < 8 {
			return nil, fmt.Errorf("bmd: truncated v%d header", version)
		}
		size := binary.LittleEndian.Uint32(raw[4:8])
		if 8+int(size) > len(raw) {
			return nil, fmt.Errorf("bmd: truncated v%d data", version)
		}
		payload := raw[8 : 8+size]
		if version == 12 {
			data = crypto.DecryptXOR(payload)
			break
		}
		if d.LEAKey == nil {
			return nil, ErrMissingKey
		}
		data = crypto.DecryptLEA(payload, *d.LEAKey)
	default:
		data = raw[4:]
	}

	r := &reader{data: data}
	m, err := r.parse()
	if err != nil {
		return nil, err
	}
	m.Version = version
	return m, nil
}

type reader struct {
	data  []byte
	off   int
	short bool // a read ran past the end of data
}

func (r *reader) readStr(n int) string {
	if r.off+n > len(r.data) {
		r.off = len(r.data)
		r.short = true
		return ""
	}
	s := r.data[r.off : r.off+n]
	r.off += n
	// Find null terminator
	for i, b := range s {
		if b == 0 {
			return string(s[:i])
		}
	}
	return string(s)
}

func (r *reader) readI16() int16 {
	if r.off+2 > len(r.data) {
		r.off = len(r.data)
		r.short = true
		return 0
	}
	v := int16(binary.LittleEndian.Uint16(r.data[r.off:]))
	r.off += 2
	return v
}

func (r *reader) readU16() uint16 {
	if r.off+2 > len(r.data) {
		r.off = len(r.data)
		r.short = true
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

func (r *reader) readF32() float32 {
	if r.off+4 > len(r.data) {
		r.off = len(r.data)
		r.short = true
		return 0
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(r.data[r.off:]))
	r.off += 4
	return v
}

func (r *reader) readVec3() mathutil.Vec3 {
	return mathutil.Vec3{r.readF32(), r.readF32(), r.readF32()}
}

func (r *reader) readByte() byte {
	if r.off >= len(r.data) {
		r.short = true
		return 0
	}
	b := r.data[r.off]
	r.off++
	return b
}

func (r *reader) parse() (*Model, error) {
	m := &Model{Name: r.readStr(32)}
	meshCount := int(r.readU16())
	boneCount := int(r.readU16())
	actionCount := int(r.readU16())

	if meshCount > maxMeshes {
		return nil, fmt.Errorf("bmd: invalid mesh count %d", meshCount)
	}
	if boneCount > maxBones || actionCount > maxActions {
		return nil, fmt.Errorf("bmd: invalid skeleton size %d bones, %d actions", boneCount, actionCount)
	}

	m.Meshes = make([]Mesh, 0, meshCount)
	for i := 0; i < meshCount; i++ {
		m.Meshes = append(m.Meshes, r.parseMesh())
	}

	m.Actions = make([]Action, actionCount)
	for a := range m.Actions {
		act := &m.Actions[a]
		act.NumAnimationKeys = max(int(r.readI16()), 0)
		act.LockPositions = r.readByte() > 0
		if act.LockPositions {
			act.Positions = make([]mathutil.Vec3, act.NumAnimationKeys)
			for k := range act.Positions {
				act.Positions[k] = r.readVec3()
			}
		}
	}

	m.Bones = make([]Bone, 0, boneCount)
	for b := 0; b < boneCount; b++ {
		if r.readByte() > 0 {
			m.Bones = append(m.Bones, Dummy)
			continue
		}

		bone := Bone{
			Name:     r.readStr(32),
			Parent:   int(r.readI16()),
			Matrixes: make([]BoneMatrix, actionCount),
		}
		for a, act := range m.Actions {
			n := act.NumAnimationKeys
			bm := &bone.Matrixes[a]
			bm.Position = make([]mathutil.Vec3, n)
			bm.Rotation = make([]mathutil.Vec3, n)
			bm.Quaternion = make([]mathutil.Quat, n)
			for k := 0; k < n; k++ {
				bm.Position[k] = r.readVec3()
			}
			for k := 0; k < n; k++ {
				rot := r.readVec3()
				bm.Rotation[k] = rot
				bm.Quaternion[k] = mathutil.EulerToQuat(rot[0], rot[1], rot[2])
			}
		}
		m.Bones = append(m.Bones, bone)
	}

	if r.short {
		return nil, fmt.Errorf("bmd: truncated model %q", m.Name)
	}
	return m, nil
}

func (r *reader) parseMesh() Mesh {
	nv := max(int(r.readI16()), 0)
	nn := max(int(r.readI16()), 0)
	ntc := max(int(r.readI16()), 0)
	nt := max(int(r.readI16()), 0)
	_ = r.readI16() // texture index

	// Vertices: 16 bytes each (node:i16, pad:i16, x:f32, y:f32, z:f32)
	verts := make([]mathutil.Vec3, nv)
	nodes := make([]int16, nv)
	for j := 0; j < nv; j++ {
		nodes[j] = r.readI16()
		_ = r.readI16() // padding
		verts[j] = r.readVec3()
	}

	// Normals: 20 bytes each (node:i16, pad:i16, nx:f32, ny:f32, nz:f32, bind:i16, pad:i16)
	normals := make([]mathutil.Vec3, nn)
	for j := 0; j < nn; j++ {
		_ = r.readI16() // node
		_ = r.readI16() // padding
		normals[j] = r.readVec3()
		_ = r.readI16() // bindVertex
		_ = r.readI16() // padding
	}

	// TexCoords: 8 bytes each (u:f32, v:f32)
	uvs := make([][2]float32, ntc)
	for j := 0; j < ntc; j++ {
		uvs[j][0] = r.readF32()
		uvs[j][1] = r.readF32()
	}

	// Triangles: 64 bytes each
	tris := make([]Triangle, 0, nt)
	for j := 0; j < nt; j++ {
		base := r.off
		if base+64 > len(r.data) {
			r.off = len(r.data)
			r.short = true
			break
		}
		var vi, ni, ti [4]int16
		for k := 0; k < 4; k++ {
			vi[k] = int16(binary.LittleEndian.Uint16(r.data[base+2+k*2:]))
			ni[k] = int16(binary.LittleEndian.Uint16(r.data[base+10+k*2:]))
			ti[k] = int16(binary.LittleEndian.Uint16(r.data[base+18+k*2:]))
		}
		tris = append(tris, Triangle{Polygon: int(r.data[base]), VI: vi, NI: ni, TI: ti})
		r.off += 64
	}

	texPath := strings.ReplaceAll(r.readStr(32), "\\", "/")

	return Mesh{
		Verts:   verts,
		Nodes:   nodes,
		Normals: normals,
		UVs:     uvs,
		Tris:    tris,
		TexPath: texPath,
	}
}
