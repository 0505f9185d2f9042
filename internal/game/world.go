package game

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sync"
)

// Tile types used by map generation and the client renderer.
const (
	TileGrass = "grass"
	TileWater = "water"
	TileSand  = "sand"
	TileStone = "stone"
	TilePath  = "path"
)

// Bounds is the playable size of a map in tiles.
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Obstacle blocks the tile it sits on.
type Obstacle struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Type string `json:"type"` // "tree" or "rock"
}

// MapData is a fully generated map: row-major tiles plus obstacle list.
type MapData struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Width     int        `json:"width"`
	Height    int        `json:"height"`
	Tiles     []string   `json:"tiles"`
	Obstacles []Obstacle `json:"obstacles"`
}

// MapService is the collaborator the simulation loop asks for map geometry.
type MapService interface {
	Bounds(mapID string) (Bounds, error)
	Obstacles(mapID string) ([]Obstacle, error)
}

const (
	demoMapWidth  = 50
	demoMapHeight = 50
)

// DemoMapService procedurally generates maps on first request and caches
// them. Generation is seeded by the map id, so every process that asks for
// "starter" sees the same terrain and the same obstacles.
type DemoMapService struct {
	mu   sync.Mutex
	maps map[string]*MapData
}

func NewDemoMapService() *DemoMapService {
	return &DemoMapService{maps: make(map[string]*MapData)}
}

// Map returns the full map data, generating it if needed.
func (s *DemoMapService) Map(mapID string) (*MapData, error) {
	if mapID == "" {
		return nil, fmt.Errorf("game: empty map id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.maps[mapID]; ok {
		return m, nil
	}
	m := generateMap(mapID)
	s.maps[mapID] = m
	return m, nil
}

func (s *DemoMapService) Bounds(mapID string) (Bounds, error) {
	m, err := s.Map(mapID)
	if err != nil {
		return Bounds{}, err
	}
	return Bounds{Width: m.Width, Height: m.Height}, nil
}

func (s *DemoMapService) Obstacles(mapID string) ([]Obstacle, error) {
	m, err := s.Map(mapID)
	if err != nil {
		return nil, err
	}
	return m.Obstacles, nil
}

func mapSeed(mapID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(mapID))
	return int64(h.Sum64())
}

// generateMap builds scattered terrain with tree/rock obstacles and carves a
// sine-wave path through the middle, clearing any obstacle the path crosses.
func generateMap(mapID string) *MapData {
	rng := rand.New(rand.NewSource(mapSeed(mapID)))
	width, height := demoMapWidth, demoMapHeight

	tiles := make([]string, 0, width*height)
	obstacles := make([]Obstacle, 0)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			tile := TileGrass
			roll := rng.Float64()
			switch {
			case roll < 0.05:
				tile = TileWater
			case roll < 0.10:
				tile = TileSand
			case roll < 0.15:
				tile = TileStone
			}
			tiles = append(tiles, tile)

			if roll < 0.03 {
				kind := "rock"
				if roll < 0.015 {
					kind = "tree"
				}
				obstacles = append(obstacles, Obstacle{X: x, Y: y, Type: kind})
			}
		}
	}

	for x := 10; x < width-10; x++ {
		y := height/2 + int(math.Sin(float64(x)*0.2)*3)
		if y < 0 || y >= height {
			continue
		}
		tiles[y*width+x] = TilePath
		for i, o := range obstacles {
			if o.X == x && o.Y == y {
				obstacles = append(obstacles[:i], obstacles[i+1:]...)
				break
			}
		}
	}

	return &MapData{
		ID:        mapID,
		Name:      fmt.Sprintf("Field %s", mapID),
		Width:     width,
		Height:    height,
		Tiles:     tiles,
		Obstacles: obstacles,
	}
}
