package skeleton

import (
	"mu-client/internal/bmd"
	"mu-client/internal/mathutil"
)

// BindPose computes the object-space transform of each bone at action 0,
// frame 0. Dummy bones and bones without keyframes keep the identity.
func BindPose(bones []bmd.Bone) []mathutil.Mat4 {
	worlds := make([]mathutil.Mat4, len(bones))
	for i := range worlds {
		worlds[i] = mathutil.Mat4Identity()
	}

	for i, bone := range bones {
		if bone.IsDummy {
			continue
		}
		track := bone.Track(0)
		if track == nil || len(track.Quaternion) == 0 || len(track.Position) == 0 {
			continue
		}

		local := track.Quaternion[0].Mat4()
		local.SetTranslation(track.Position[0])

		// Chain with parent
		if bone.Parent >= 0 && bone.Parent < i {
			worlds[i] = mathutil.Mat4Mul(local, worlds[bone.Parent])
		} else {
			worlds[i] = local
		}
	}

	return worlds
}

// BoundingSphere returns the object-space sphere enclosing every mesh vertex
// in bind pose. Vertices bound to an unknown bone are used untransformed.
func BoundingSphere(model *bmd.Model) mathutil.Sphere {
	worlds := BindPose(model.Bones)

	var pts []mathutil.Vec3
	for mi := range model.Meshes {
		mesh := &model.Meshes[mi]
		for vi, v := range mesh.Verts {
			if vi < len(mesh.Nodes) {
				if node := int(mesh.Nodes[vi]); node >= 0 && node < len(worlds) {
					v = worlds[node].MulPoint(v)
				}
			}
			pts = append(pts, v)
		}
	}
	return mathutil.SphereFromPoints(pts)
}
