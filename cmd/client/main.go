package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"go.uber.org/zap"

	"fieldpump/internal/client"
	"fieldpump/internal/game"
	"fieldpump/internal/protocol"
)

const chatLogLines = 6

// Game drives the client: one ebiten Update per frame samples input, steps
// the local simulation, advances animations, and drains inbound messages
// into the remote store. Draw pulls from those stores only.
type Game struct {
	session  *client.Session
	sim      *game.Simulator
	store    *game.RemoteStore
	anims    *game.Animations
	renderer *client.Renderer
	local    *protocol.PlayerState
	log      *zap.SugaredLogger

	inbox     chan protocol.Message
	initOnNet chan struct{} // signals a fresh connection needing init
	lastTick  time.Time
	chatLog   []string
}

func NewGame(serverURL string, local *protocol.PlayerState, log *zap.SugaredLogger) (*Game, error) {
	maps := game.NewDemoMapService()
	if _, err := maps.Map(local.Location.MapID); err != nil {
		return nil, err
	}

	anims := game.NewAnimations(log)
	if err := game.RegisterDefaultAnimations(anims); err != nil {
		return nil, err
	}

	g := &Game{
		store:     game.NewRemoteStore(local.ID, log),
		anims:     anims,
		renderer:  client.NewRenderer(maps, anims),
		local:     local,
		log:       log,
		inbox:     make(chan protocol.Message, 256),
		initOnNet: make(chan struct{}, 1),
	}

	g.session = client.NewSession(serverURL, log)
	g.session.OnMessage(func(msg protocol.Message) {
		select {
		case g.inbox <- msg:
		default:
			log.Warnw("inbox full, dropping message", "type", msg.MessageType())
		}
	})
	g.session.OnStateChange(func(st client.State) {
		log.Infow("connection state changed", "state", st.String())
		if st == client.StateConnected {
			select {
			case g.initOnNet <- struct{}{}:
			default:
			}
		}
	})

	g.sim = game.NewSimulator(local, maps, anims, func(loc protocol.Location) {
		g.session.Send(protocol.NewPosition(local.ID, loc))
	}, log)

	g.session.Connect()
	return g, nil
}

func (g *Game) Update() error {
	now := time.Now()
	dt := 0.0
	if !g.lastTick.IsZero() {
		dt = now.Sub(g.lastTick).Seconds()
	}
	g.lastTick = now

	// A fresh connection (first or after reconnect) announces the player.
	select {
	case <-g.initOnNet:
		g.session.Send(protocol.NewInit(*g.local))
	default:
	}

	g.drainInbox()

	g.sim.Step(client.SampleInput(), dt)
	g.anims.Update(dt)

	// Remote players without a live clip fall back to their idle cycle.
	for _, p := range g.store.Snapshot() {
		if _, ok := g.anims.CurrentFrame(p.ID); !ok {
			g.anims.Play(p.ID, game.AnimationFor(p.CharacterClass, game.DirNone), nil)
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyT) {
		g.sendChat(fmt.Sprintf("hello from %s", g.local.Name))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyG) {
		g.sendChat(protocol.GlobalChatPrefix + "hello everyone")
	}

	if ebiten.IsKeyPressed(ebiten.KeyEscape) {
		g.session.Stop()
		return ebiten.Termination
	}
	return nil
}

func (g *Game) drainInbox() {
	for {
		select {
		case msg := <-g.inbox:
			g.apply(msg)
		default:
			return
		}
	}
}

func (g *Game) apply(msg protocol.Message) {
	switch m := msg.(type) {
	case *protocol.PlayersMessage:
		for _, p := range m.Players {
			g.store.ApplyJoined(p)
		}
	case *protocol.PlayerJoinedMessage:
		g.store.ApplyJoined(m.Player)
		if m.Player.ID != g.local.ID {
			g.pushChatLine(fmt.Sprintf("* %s joined the game", m.Player.Name))
		}
	case *protocol.PlayerLeftMessage:
		g.store.ApplyLeft(m.PlayerID)
		g.anims.Stop(m.PlayerID)
		g.pushChatLine(fmt.Sprintf("* %s left the game", m.PlayerName))
	case *protocol.PositionMessage:
		g.store.ApplyPosition(m.PlayerID, m.Location)
	case *protocol.ChatMessage:
		g.pushChatLine(fmt.Sprintf("[%s] %s", m.PlayerName, m.Content))
	case *protocol.NFTUpdateMessage:
		if m.PlayerID == g.local.ID {
			g.local.Inventory = append([]protocol.Item(nil), m.Inventory...)
		} else {
			g.store.ApplyInventory(m.PlayerID, m.Inventory)
		}
	default:
		g.log.Debugw("unexpected inbound message", "type", msg.MessageType())
	}
}

func (g *Game) sendChat(content string) {
	g.session.Send(protocol.NewChat(g.local.ID, g.local.Name, content, time.Now().UnixMilli()))
}

func (g *Game) pushChatLine(line string) {
	g.chatLog = append(g.chatLog, line)
	if len(g.chatLog) > chatLogLines {
		g.chatLog = g.chatLog[len(g.chatLog)-chatLogLines:]
	}
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.renderer.Draw(screen, g.local, g.store.Snapshot(), g.session.State())
	for i, line := range g.chatLog {
		ebitenutil.DebugPrintAt(screen, line, 8, client.ScreenHeight-16*(len(g.chatLog)-i)-8)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return client.ScreenWidth, client.ScreenHeight
}

func main() {
	var (
		serverURL = flag.String("server", "ws://localhost:8080/ws", "game server websocket url")
		name      = flag.String("name", "Player", "display name")
		class     = flag.String("class", "warrior", "character class (warrior, mage, archer)")
		mapID     = flag.String("map", "starter", "starting map id")
	)
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	log := logger.Sugar()
	defer log.Sync()

	// Identity normally comes from the account service; the standalone
	// client fabricates one per run.
	local := &protocol.PlayerState{
		ID:             uuid.NewString(),
		Name:           *name,
		CharacterClass: *class,
		Location:       protocol.Location{X: 25, Y: 25, MapID: *mapID},
		Inventory:      []protocol.Item{},
	}

	g, err := NewGame(*serverURL, local, log)
	if err != nil {
		log.Fatalw("failed to start game", "err", err)
	}

	ebiten.SetWindowSize(client.ScreenWidth, client.ScreenHeight)
	ebiten.SetWindowTitle("FieldPump")
	if err := ebiten.RunGame(g); err != nil {
		log.Fatalw("game exited", "err", err)
	}
	g.session.Stop()
}
