package client

import (
	"image/color"
	"strings"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"fieldpump/internal/game"
	"fieldpump/internal/protocol"
)

const (
	ScreenWidth  = 900
	ScreenHeight = 600
	TileSize     = 32
)

var tileColors = map[string]color.RGBA{
	game.TileGrass: {96, 160, 64, 255},
	game.TileWater: {48, 96, 192, 255},
	game.TileSand:  {208, 192, 128, 255},
	game.TileStone: {128, 128, 128, 255},
	game.TilePath:  {176, 144, 96, 255},
}

var classColors = map[string]color.RGBA{
	"warrior": {192, 48, 48, 255},
	"mage":    {96, 48, 192, 255},
	"archer":  {48, 160, 96, 255},
}

// Renderer draws the visible map region and every player, camera centered on
// the local player. It only reads pull-based state: the remote store snapshot
// and the animation machine's current frames.
type Renderer struct {
	maps  *game.DemoMapService
	anims *game.Animations
}

func NewRenderer(maps *game.DemoMapService, anims *game.Animations) *Renderer {
	return &Renderer{maps: maps, anims: anims}
}

// Draw renders one frame around the local player.
func (r *Renderer) Draw(screen *ebiten.Image, local *protocol.PlayerState, remotes []protocol.PlayerState, connState State) {
	screen.Fill(color.RGBA{16, 16, 24, 255})

	m, err := r.maps.Map(local.Location.MapID)
	if err == nil {
		r.drawMap(screen, m, local.Location)
	}

	for i := range remotes {
		p := &remotes[i]
		if p.Location.MapID != local.Location.MapID {
			continue
		}
		r.drawPlayer(screen, p, local.Location, false)
	}
	r.drawPlayer(screen, local, local.Location, true)

	if connState != StateConnected {
		ebitenutil.DebugPrintAt(screen, "disconnected from game server ("+connState.String()+")", 8, 8)
	}
}

func (r *Renderer) drawMap(screen *ebiten.Image, m *game.MapData, cam protocol.Location) {
	tilesX := ScreenWidth/TileSize + 2
	tilesY := ScreenHeight/TileSize + 2
	startX := int(cam.X) - tilesX/2
	startY := int(cam.Y) - tilesY/2

	for y := 0; y <= tilesY; y++ {
		for x := 0; x <= tilesX; x++ {
			tileX := startX + x
			tileY := startY + y
			if tileX < 0 || tileX >= m.Width || tileY < 0 || tileY >= m.Height {
				continue
			}
			sx, sy := screenPos(float64(tileX), float64(tileY), cam)
			c, ok := tileColors[m.Tiles[tileY*m.Width+tileX]]
			if !ok {
				c = tileColors[game.TileGrass]
			}
			vector.DrawFilledRect(screen, sx, sy, TileSize, TileSize, c, false)
		}
	}

	for _, o := range m.Obstacles {
		sx, sy := screenPos(float64(o.X), float64(o.Y), cam)
		if sx < -TileSize || sx > ScreenWidth || sy < -TileSize || sy > ScreenHeight {
			continue
		}
		c := color.RGBA{64, 48, 32, 255} // rock
		if o.Type == "tree" {
			c = color.RGBA{32, 96, 32, 255}
		}
		vector.DrawFilledCircle(screen, sx+TileSize/2, sy+TileSize/2, TileSize/2-4, c, false)
	}
}

func (r *Renderer) drawPlayer(screen *ebiten.Image, p *protocol.PlayerState, cam protocol.Location, isLocal bool) {
	sx, sy := screenPos(p.Location.X, p.Location.Y, cam)
	c, ok := classColors[p.CharacterClass]
	if !ok {
		c = color.RGBA{224, 224, 224, 255}
	}

	// Walk frames alternate a slight brightness step so movement reads even
	// without real sprite art.
	if frame, ok := r.anims.CurrentFrame(p.ID); ok && strings.HasSuffix(frame.SpriteID, "_2") {
		c = brighten(c, 32)
	}

	vector.DrawFilledRect(screen, sx+4, sy+4, TileSize-8, TileSize-8, c, false)
	if isLocal {
		vector.StrokeRect(screen, sx+2, sy+2, TileSize-4, TileSize-4, 2, color.RGBA{0, 255, 255, 255}, false)
	}
	ebitenutil.DebugPrintAt(screen, p.Name, int(sx), int(sy)-14)

	for _, item := range p.Inventory {
		if item.IsNFT {
			vector.DrawFilledCircle(screen, sx+TileSize-4, sy, 4, color.RGBA{255, 0, 255, 255}, false)
			break
		}
	}
}

func screenPos(x, y float64, cam protocol.Location) (float32, float32) {
	sx := float64(ScreenWidth)/2 + (x-cam.X)*TileSize - TileSize/2
	sy := float64(ScreenHeight)/2 + (y-cam.Y)*TileSize - TileSize/2
	return float32(sx), float32(sy)
}

func brighten(c color.RGBA, by uint8) color.RGBA {
	add := func(v, d uint8) uint8 {
		if v > 255-d {
			return 255
		}
		return v + d
	}
	return color.RGBA{add(c.R, by), add(c.G, by), add(c.B, by), c.A}
}
