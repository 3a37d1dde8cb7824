package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/hjson/hjson-go/v4"

	"github.com/gorustyt/navbake/navmesh"
)

// loadAgentConfig reads an Hjson agent file over the defaults. An empty path
// returns the defaults.
func loadAgentConfig(path string) (navmesh.AgentConfig, error) {
	agent := navmesh.DefaultAgentConfig()
	if path == "" {
		return agent, nil
	}
	fileData, err := os.ReadFile(path)
	if err != nil {
		return agent, err
	}
	if err := hjson.Unmarshal(fileData, &agent); err != nil {
		return agent, fmt.Errorf("parse %s: %w", path, err)
	}
	return agent, nil
}

// parseVec3 accepts "x,y,z".
func parseVec3(s string) (mgl32.Vec3, error) {
	var v mgl32.Vec3
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return v, fmt.Errorf("point %q: want x,y,z", s)
	}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return v, fmt.Errorf("point %q: %w", s, err)
		}
		v[i] = float32(f)
	}
	return v, nil
}
