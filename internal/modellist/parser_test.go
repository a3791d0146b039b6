package modellist

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<?xml version="1.0"?>
<ModelList>
  <Section Name="Objects">
    <Model Type="75" MaxType="77" Name="HouseEtc" File="Object1\HouseEtc%02d.bmd" LightEnabled="false"/>
    <Model Type="80" Name="SteelDoor" File="Object1/SteelDoor01.bmd" LightEnabled="false"/>
    <Model Type="81" Name="TreasureDrum" File="Object1/TreasureDrum01.bmd" Scale="1.5"/>
    <Model Type="bogus" Name="Broken" File="x.bmd"/>
    <Model Type="90" Name="NoFile"/>
  </Section>
  <Section Name="Monsters">
    <Model Type="120" Name="RedHandOfMaya" File="Monster/Monster120.bmd" BodyHeight="40"/>
  </Section>
</ModelList>`

func TestDecode(t *testing.T) {
	defs, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)
	require.Len(t, defs, 4)

	house := defs[0]
	assert.Equal(t, "Objects", house.Section)
	assert.Equal(t, uint16(75), house.Type)
	assert.Equal(t, uint16(77), house.MaxType)
	assert.False(t, house.LightEnabled)
	assert.Equal(t, "Object1/HouseEtc%02d.bmd", house.File)

	assert.Equal(t, uint16(80), defs[1].MaxType)
	assert.True(t, defs[2].LightEnabled)
	assert.Equal(t, float32(1.5), defs[2].Scale)
	assert.Equal(t, float32(1), defs[1].Scale)
	assert.Equal(t, float32(40), defs[3].BodyHeight)
	assert.Equal(t, "Monsters", defs[3].Section)
}

func TestModelPath(t *testing.T) {
	defs, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "Object1/HouseEtc01.bmd", defs[0].ModelPath(75))
	assert.Equal(t, "Object1/HouseEtc03.bmd", defs[0].ModelPath(77))
	assert.Equal(t, "Object1/SteelDoor01.bmd", defs[1].ModelPath(80))
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ModelList.xml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	defs, err := Parse(path)
	require.NoError(t, err)
	assert.Len(t, defs, 4)

	_, err = Parse(filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.xml")
	require.NoError(t, os.WriteFile(bad, []byte("<ModelList><Section>"), 0o644))
	_, err = Parse(bad)
	assert.ErrorContains(t, err, "modellist: parse")
}
