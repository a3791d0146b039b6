package modellist

import (
	"fmt"
	"strings"
)

// ModelDef holds one model type range parsed from ModelList.xml.
type ModelDef struct {
	Section      string
	Type         uint16 // first type id of the range
	MaxType      uint16 // last type id, inclusive
	Name         string
	File         string // data-relative, e.g. "Object1/HouseEtc%02d.bmd"
	LightEnabled bool
	BodyHeight   float32
	Scale        float32
}

// ModelPath returns the model file of typ. A verb in File is filled with
// the 1-based position of typ within the range.
func (d ModelDef) ModelPath(typ uint16) string {
	if !strings.Contains(d.File, "%") {
		return d.File
	}
	return fmt.Sprintf(d.File, int(typ)-int(d.Type)+1)
}
