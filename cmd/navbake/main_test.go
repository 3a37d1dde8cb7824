package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorustyt/navbake/common/message"
	"github.com/gorustyt/navbake/navmesh"
)

const agentHjson = `{
  # fine grid for a small test plane
  cellSize: 0.3
  cellHeight: 0.2
  characterRadius: 0.3
  characterHeight: 1.8
  characterClimb: 0.3
}`

func writeFixtures(t *testing.T) (mesh, config string) {
	t.Helper()
	dir := t.TempDir()
	mesh = filepath.Join(dir, "plane.obj")
	config = filepath.Join(dir, "agent.hjson")
	require.NoError(t, os.WriteFile(mesh, []byte("v 0 0 0\nv 10 0 0\nv 10 0 10\nv 0 0 10\nf 1 4 3 2\n"), 0o644))
	require.NoError(t, os.WriteFile(config, []byte(agentHjson), 0o644))
	return mesh, config
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestLoadAgentConfig(t *testing.T) {
	_, config := writeFixtures(t)
	agent, err := loadAgentConfig(config)
	require.NoError(t, err)
	want := navmesh.DefaultAgentConfig()
	want.CellSize, want.CellHeight = 0.3, 0.2
	want.CharacterRadius, want.CharacterHeight, want.CharacterClimb = 0.3, 1.8, 0.3
	assert.Equal(t, want, agent)

	agent, err = loadAgentConfig("")
	require.NoError(t, err)
	assert.Equal(t, navmesh.DefaultAgentConfig(), agent)

	bad := filepath.Join(t.TempDir(), "bad.hjson")
	require.NoError(t, os.WriteFile(bad, []byte("{cellSize: [1"), 0o644))
	_, err = loadAgentConfig(bad)
	assert.Error(t, err)
}

func TestParseVec3(t *testing.T) {
	v, err := parseVec3("1, -2.5,3")
	require.NoError(t, err)
	assert.Equal(t, mgl32.Vec3{1, -2.5, 3}, v)

	for _, s := range []string{"", "1,2", "1,2,3,4", "a,b,c"} {
		_, err := parseVec3(s)
		assert.Error(t, err, s)
	}
}

func TestBuildPathInspect(t *testing.T) {
	mesh, config := writeFixtures(t)

	out, err := run(t, "build", "--mesh", mesh, "--config", config)
	require.NoError(t, err)
	assert.Contains(t, out, "polygons:")
	_, err = os.Stat(navmesh.CachePath(mesh))
	require.NoError(t, err)

	pathFile := filepath.Join(t.TempDir(), "path.bin")
	out, err = run(t, "path", "--mesh", mesh, "--config", config,
		"--from", "1,0,1", "--to", "9,0,9", "--out", pathFile)
	require.NoError(t, err)
	assert.NotContains(t, out, "no path")

	data, err := os.ReadFile(pathFile)
	require.NoError(t, err)
	corners, status, err := message.DecodePath(data)
	require.NoError(t, err)
	assert.Equal(t, message.StatusOK, status)
	assert.GreaterOrEqual(t, len(corners), 2)

	out, err = run(t, "inspect", "--nav", navmesh.CachePath(mesh))
	require.NoError(t, err)
	assert.Contains(t, out, `"cellSize": 0.3`)
	assert.Contains(t, out, "tile version 7")
}

func TestCommandErrors(t *testing.T) {
	mesh, _ := writeFixtures(t)
	_, err := run(t, "build")
	assert.Error(t, err)
	_, err = run(t, "path", "--mesh", mesh, "--from", "1,0", "--to", "9,0,9")
	assert.Error(t, err)
	_, err = run(t, "inspect", "--nav", mesh)
	assert.Error(t, err)
}
