package game

import "testing"

func TestMapGenerationIsDeterministic(t *testing.T) {
	a, err := NewDemoMapService().Map("starter")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, err := NewDemoMapService().Map("starter")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if a.Width != b.Width || a.Height != b.Height {
		t.Fatal("same map id must produce the same size")
	}
	if len(a.Tiles) != len(b.Tiles) {
		t.Fatal("same map id must produce the same tile count")
	}
	for i := range a.Tiles {
		if a.Tiles[i] != b.Tiles[i] {
			t.Fatalf("tile %d differs between generations", i)
		}
	}
	if len(a.Obstacles) != len(b.Obstacles) {
		t.Fatal("same map id must produce the same obstacles")
	}
}

func TestDifferentMapsDiffer(t *testing.T) {
	s := NewDemoMapService()
	a, _ := s.Map("starter")
	b, _ := s.Map("dungeon1")

	same := len(a.Tiles) == len(b.Tiles)
	if same {
		for i := range a.Tiles {
			if a.Tiles[i] != b.Tiles[i] {
				same = false
				break
			}
		}
	}
	if same {
		t.Fatal("distinct map ids should generate distinct terrain")
	}
}

func TestMapGeometryIsWellFormed(t *testing.T) {
	s := NewDemoMapService()
	m, err := s.Map("starter")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if len(m.Tiles) != m.Width*m.Height {
		t.Fatalf("tile grid %d does not cover %dx%d", len(m.Tiles), m.Width, m.Height)
	}
	blocked := make(map[[2]int]bool)
	for _, o := range m.Obstacles {
		if o.X < 0 || o.X >= m.Width || o.Y < 0 || o.Y >= m.Height {
			t.Fatalf("obstacle out of bounds: %+v", o)
		}
		if o.Type != "tree" && o.Type != "rock" {
			t.Fatalf("unknown obstacle type %q", o.Type)
		}
		blocked[[2]int{o.X, o.Y}] = true
	}

	// The carved path must stay walkable.
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			if m.Tiles[y*m.Width+x] == TilePath && blocked[[2]int{x, y}] {
				t.Fatalf("path tile (%d,%d) is blocked by an obstacle", x, y)
			}
		}
	}
}

func TestMapServiceAccessors(t *testing.T) {
	s := NewDemoMapService()

	b, err := s.Bounds("starter")
	if err != nil {
		t.Fatalf("bounds: %v", err)
	}
	if b.Width != demoMapWidth || b.Height != demoMapHeight {
		t.Fatalf("unexpected bounds %+v", b)
	}

	if _, err := s.Obstacles("starter"); err != nil {
		t.Fatalf("obstacles: %v", err)
	}
	if _, err := s.Bounds(""); err == nil {
		t.Fatal("empty map id must be rejected")
	}
}
