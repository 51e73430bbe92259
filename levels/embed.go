// Package levels loads tile map levels and turns them into physics worlds.
package levels

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/milk9111/motiongraph/common"
	"github.com/milk9111/motiongraph/physics"
)

//go:embed *.json
var LevelsFS embed.FS

// Level is a row-major tile map. Row 0 is the top of the map; the physics
// world is built with +Y up.
type Level struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	TileSize float64 `json:"tile_size"`
	// Layers are flat arrays of Width*Height tiles. Non-zero is filled.
	Layers    [][]int     `json:"layers"`
	LayerMeta []LayerMeta `json:"layer_meta,omitempty"`
	Entities  []Entity    `json:"entities,omitempty"`
}

type LayerMeta struct {
	Physics bool   `json:"physics"`
	Water   bool   `json:"water"`
	Surface string `json:"surface,omitempty"`
	// CastLayers are the shape cast layers of the layer's solids.
	CastLayers uint32 `json:"cast_layers,omitempty"`
}

type Entity struct {
	Type  string                 `json:"type"`
	X     int                    `json:"x"`
	Y     int                    `json:"y"`
	Props map[string]interface{} `json:"props,omitempty"`
}

func LoadLevelFromFS(name string) (*Level, error) {
	data, err := fs.ReadFile(LevelsFS, name)
	if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	return parse(data)
}

// LoadLevel reads a level from disk, falling back to the embedded set when
// path does not exist.
func LoadLevel(path string) (*Level, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return LoadLevelFromFS(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read level: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Level, error) {
	var lvl Level
	if err := json.Unmarshal(data, &lvl); err != nil {
		return nil, fmt.Errorf("unmarshal level: %w", err)
	}
	if lvl.Width <= 0 || lvl.Height <= 0 {
		return nil, fmt.Errorf("invalid level dimensions: %dx%d", lvl.Width, lvl.Height)
	}
	if lvl.TileSize <= 0 {
		lvl.TileSize = 1
	}
	for i, layer := range lvl.Layers {
		if len(layer) != lvl.Width*lvl.Height {
			return nil, fmt.Errorf("layer %d has %d tiles, want %d", i, len(layer), lvl.Width*lvl.Height)
		}
	}
	return &lvl, nil
}

func (l *Level) meta(layer int) LayerMeta {
	if layer < len(l.LayerMeta) {
		return l.LayerMeta[layer]
	}
	return LayerMeta{}
}

// tileMin is the world position of the bottom left corner of tile x,y.
func (l *Level) tileMin(x, y int) common.Vec3 {
	return common.V3(float64(x)*l.TileSize, float64(l.Height-1-y)*l.TileSize, 0)
}

// Bounds is the world size of the level.
func (l *Level) Bounds() common.Vec3 {
	return common.V3(float64(l.Width)*l.TileSize, float64(l.Height)*l.TileSize, 0)
}

// Spawn returns the feet position of the first spawn entity, or the centre
// of the top left tile.
func (l *Level) Spawn() common.Vec3 {
	for _, e := range l.Entities {
		if e.Type == "spawn" {
			return l.tileMin(e.X, e.Y).Add(common.V3(l.TileSize/2, 0, 0))
		}
	}
	return l.tileMin(0, 0).Add(common.V3(l.TileSize/2, 0, 0))
}

// Build adds the level's physics and water layers to w. Each horizontal run
// of filled tiles becomes one box, so agents slide along floors without
// catching on tile seams. Runs are numbered as entities from 1.
func (l *Level) Build(w *physics.World) {
	var entity common.EntityRef
	for i, layer := range l.Layers {
		meta := l.meta(i)
		if !meta.Physics && !meta.Water {
			continue
		}
		for y := 0; y < l.Height; y++ {
			for x := 0; x < l.Width; {
				if layer[y*l.Width+x] == 0 {
					x++
					continue
				}
				start := x
				for x < l.Width && layer[y*l.Width+x] != 0 {
					x++
				}
				lo := l.tileMin(start, y)
				hi := l.tileMin(x, y).Add(common.V3(0, l.TileSize, 0))
				if meta.Water {
					w.AddWater(lo, hi)
					continue
				}
				entity++
				w.AddSolid(physics.Solid{
					Entity:  entity,
					Min:     lo,
					Max:     hi,
					Surface: meta.Surface,
					Layers:  meta.CastLayers,
				})
			}
		}
	}
}
