package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mu-client/internal/bmd"
	"mu-client/internal/crypto"
	"mu-client/internal/mathutil"
	"mu-client/internal/skeleton"
)

func main() {
	action := flag.Int("action", 0, "Action to evaluate")
	at := flag.Duration("time", 0, "Elapsed time to evaluate the action at")
	speed := flag.Float64("speed", skeleton.DefaultAnimationSpeed, "Animation speed in keys per second")
	leaKey := flag.String("lea", "", "Hex LEA-256 key for v15 models")
	flag.Parse()

	decoder := bmd.Decoder{}
	if *leaKey != "" {
		key, err := crypto.ParseLEAKey(*leaKey)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		decoder.LEAKey = &key
	}

	for _, arg := range flag.Args() {
		model, err := decoder.ParseFile(arg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Parse error %s: %v\n", arg, err)
			continue
		}
		fmt.Printf("\n=== %s %q (meshes=%d bones=%d actions=%d) ===\n",
			arg, model.Name, len(model.Meshes), len(model.Bones), len(model.Actions))
		printMeshes(model)
		printActions(model)
		printSkeleton(model)
		printPose(model, *action, *at, *speed)
	}
}

func printMeshes(model *bmd.Model) {
	fmt.Println("--- MESHES ---")
	for i, m := range model.Meshes {
		tex := model.TexturePath(i)
		stem := strings.TrimSuffix(filepath.Base(tex), filepath.Ext(tex))
		fmt.Printf("  Mesh[%d]: v=%d t=%d tex=%q\n", i, len(m.Verts), len(m.Tris), stem)
	}
	s := skeleton.BoundingSphere(model)
	fmt.Printf("  bounds: center=(%.1f,%.1f,%.1f) radius=%.1f\n", s.Center[0], s.Center[1], s.Center[2], s.Radius)
}

func printActions(model *bmd.Model) {
	fmt.Println("--- ACTIONS ---")
	for i, a := range model.Actions {
		lock := ""
		if a.LockPositions {
			lock = " [LOCK]"
		}
		fmt.Printf("  Action[%d]: keys=%d%s\n", i, a.NumAnimationKeys, lock)
	}
}

func printSkeleton(model *bmd.Model) {
	fmt.Println("--- SKELETON ---")
	for i, b := range model.Bones {
		if b.IsDummy {
			fmt.Printf("  Bone[%d]: (dummy)\n", i)
			continue
		}
		fmt.Printf("  Bone[%d]: %q parent=%d\n", i, b.Name, b.Parent)
	}
}

func printPose(model *bmd.Model, action int, at time.Duration, speed float64) {
	a := skeleton.NewAnimator(model)
	a.PlayAction(action)
	a.PriorAction = a.CurrentAction
	a.Advance(skeleton.Clock{Speed: speed}, at, mathutil.Mat4Identity())

	fmt.Printf("--- POSE action=%d t=%s ---\n", a.CurrentAction, at)
	for i, m := range a.Matrices() {
		if model.Bones[i].IsDummy {
			continue
		}
		p := m.Translation()
		fmt.Printf("  Bone[%d]: (%.2f, %.2f, %.2f)\n", i, p[0], p[1], p[2])
	}
	if len(a.Matrices()) > 0 {
		fmt.Println("  root matrix:")
		m := a.Matrices()[0]
		for r := 0; r < 4; r++ {
			fmt.Printf("    %8.3f %8.3f %8.3f %8.3f\n", m[r*4], m[r*4+1], m[r*4+2], m[r*4+3])
		}
	}
}
