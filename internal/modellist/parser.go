package modellist

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// xmlModelList matches the ModelList.xml schema.
type xmlModelList struct {
	Sections []xmlSection `xml:"Section"`
}

type xmlSection struct {
	Name   string     `xml:"Name,attr"`
	Models []xmlModel `xml:"Model"`
}

type xmlModel struct {
	Type         string `xml:"Type,attr"`
	MaxType      string `xml:"MaxType,attr"`
	Name         string `xml:"Name,attr"`
	File         string `xml:"File,attr"`
	LightEnabled string `xml:"LightEnabled,attr"`
	BodyHeight   string `xml:"BodyHeight,attr"`
	Scale        string `xml:"Scale,attr"`
}

// Parse reads ModelList.xml.
func Parse(xmlPath string) ([]ModelDef, error) {
	f, err := os.Open(xmlPath)
	if err != nil {
		return nil, fmt.Errorf("modellist: read %s: %w", xmlPath, err)
	}
	defer f.Close()

	defs, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("modellist: parse %s: %w", xmlPath, err)
	}
	return defs, nil
}

// Decode parses a model list document. Entries without a file or with an
// unparseable type are skipped, as are malformed optional attributes.
func Decode(r io.Reader) ([]ModelDef, error) {
	var list xmlModelList
	if err := xml.NewDecoder(r).Decode(&list); err != nil {
		return nil, err
	}

	var defs []ModelDef
	for _, sec := range list.Sections {
		for _, m := range sec.Models {
			if m.File == "" {
				continue
			}
			typ, err := strconv.ParseUint(m.Type, 10, 16)
			if err != nil {
				continue
			}
			def := ModelDef{
				Section:      sec.Name,
				Type:         uint16(typ),
				MaxType:      uint16(typ),
				Name:         m.Name,
				File:         strings.ReplaceAll(m.File, "\\", "/"),
				LightEnabled: true,
				Scale:        1,
			}
			if v, err := strconv.ParseUint(m.MaxType, 10, 16); err == nil && uint16(v) >= def.Type {
				def.MaxType = uint16(v)
			}
			if v, err := strconv.ParseBool(m.LightEnabled); err == nil {
				def.LightEnabled = v
			}
			if v, err := strconv.ParseFloat(m.BodyHeight, 32); err == nil {
				def.BodyHeight = float32(v)
			}
			if v, err := strconv.ParseFloat(m.Scale, 32); err == nil && v > 0 {
				def.Scale = float32(v)
			}
			defs = append(defs, def)
		}
	}
	return defs, nil
}
