package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/ebitenui/ebitenui"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"go.uber.org/zap"
	"golang.org/x/image/colornames"

	"github.com/milk9111/motiongraph/assets"
	"github.com/milk9111/motiongraph/config"
	"github.com/milk9111/motiongraph/graphs"
	"github.com/milk9111/motiongraph/levels"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/obj"
	"github.com/milk9111/motiongraph/physics"
	"github.com/milk9111/motiongraph/save"
)

const (
	baseWidth  = 1280
	baseHeight = 720
	// pixels per metre
	zoom = 40

	quickSlot = "quick"
	gravity   = 25
)

type Game struct {
	frames int
	debug  bool
	paused bool
	quit   bool

	cfg    *config.Config
	logger *zap.Logger

	input  *obj.Input
	cam    *obj.Camera
	clock  *obj.Clock
	layers *obj.Layers
	audio  *assets.Sink

	level *levels.Level
	world *physics.World
	agent *obj.Agent

	opts     motion.Options
	reloader *graphs.Reloader
	store    save.Store

	pauseUI *ebitenui.UI
	status  string
	// frames left to show status
	statusTimer int
}

func NewGame(cfg *config.Config, logger *zap.Logger, levelPath string, debug bool) (*Game, error) {
	lvl, err := levels.LoadLevel(levelPath)
	if err != nil {
		return nil, fmt.Errorf("load level %s: %w", levelPath, err)
	}
	world := physics.NewWorld(gravity)
	lvl.Build(world)

	def, err := graphs.Load(cfg.GraphDir, cfg.Graph)
	if err != nil {
		return nil, err
	}

	g := &Game{
		debug:  debug,
		cfg:    cfg,
		logger: logger,
		input:  obj.NewInput(),
		cam:    obj.NewCamera(baseWidth, baseHeight, zoom),
		clock:  obj.NewClock(),
		layers: obj.NewLayers(),
		audio:  assets.NewSink(audio.NewContext(assets.SampleRate), logger),
		level:  lvl,
		world:  world,
		opts:   motion.Options{Logger: logger, SideChannels: cfg.Policy()},
	}

	body := world.AddBody(lvl.Spawn(), 0.8, 1.8)
	in, err := def.NewInstance(g.services(body), g.opts)
	if err != nil {
		return nil, err
	}
	g.agent = obj.NewAgent(body, in, g.layers)
	g.cam.SetWorldBounds(lvl.Bounds())
	g.cam.SnapTo(body.Position())

	if cfg.HotReload {
		r, err := graphs.NewReloader(cfg.GraphDir, logger)
		if err != nil {
			logger.Warn("hot reload disabled", zap.Error(err))
		} else {
			r.Track(cfg.Graph, in, g.opts)
			g.reloader = r
		}
	}

	store, err := save.Open(context.Background(), cfg.Save.Backend, cfg.Save.Path)
	if err != nil {
		logger.Warn("saving disabled", zap.Error(err))
	} else {
		g.store = store
	}

	g.pauseUI = NewPauseUI(g)
	return g, nil
}

func (g *Game) services(body *physics.Body) motion.Services {
	return motion.Services{
		Physics:   g.world,
		Animation: g.layers,
		Audio:     g.audio,
		Body:      body,
		Time:      g.clock,
	}
}

func (g *Game) Close() {
	g.audio.Close()
	if g.reloader != nil {
		_ = g.reloader.Close()
	}
	if g.store != nil {
		_ = g.store.Close()
	}
}

func (g *Game) setStatus(format string, args ...any) {
	g.status = fmt.Sprintf(format, args...)
	g.statusTimer = 3 * g.cfg.TickRate
}

// swap moves the agent onto in. Loops started by the old instance would
// never get their exit, so they are stopped here.
func (g *Game) swap(in *motion.Instance) {
	g.audio.Close()
	g.agent.Instance = in
}

func (g *Game) pollReload() {
	if g.reloader == nil {
		return
	}
	for _, r := range g.reloader.Poll() {
		if r.Err != nil {
			g.setStatus("reload %s failed: %v", r.Name, r.Err)
			continue
		}
		if r.Old == g.agent.Instance {
			g.swap(r.New)
		}
		g.setStatus("reloaded %s (%s)", r.Name, r.Mode)
	}
}

func (g *Game) quickSave() {
	if g.store == nil {
		return
	}
	rec, err := save.Capture(g.agent.Instance, quickSlot)
	if err == nil {
		err = g.store.Save(context.Background(), rec)
	}
	if err != nil {
		g.logger.Warn("quick save failed", zap.Error(err))
		g.setStatus("save failed: %v", err)
		return
	}
	g.setStatus("saved")
}

func (g *Game) quickLoad() {
	if g.store == nil {
		return
	}
	err := func() error {
		rec, err := g.store.Load(context.Background(), quickSlot)
		if err != nil {
			return err
		}
		def, err := graphs.Load(g.cfg.GraphDir, rec.Graph)
		if err != nil {
			return err
		}
		in, err := def.NewInstance(g.services(g.agent.Body), g.opts)
		if err != nil {
			return err
		}
		if err := save.Apply(in, rec); err != nil {
			return err
		}
		if g.reloader != nil {
			g.reloader.Replace(g.agent.Instance, in)
		}
		g.swap(in)
		return nil
	}()
	if err != nil {
		g.logger.Warn("quick load failed", zap.Error(err))
		g.setStatus("load failed: %v", err)
		return
	}
	g.setStatus("loaded")
}

func (g *Game) Update() error {
	g.frames++
	if g.quit {
		return ebiten.Termination
	}

	g.input.Update()
	if g.input.PausePressed {
		g.paused = !g.paused
	}
	if g.paused {
		g.pauseUI.Update()
		return nil
	}
	if g.input.DebugPressed {
		g.debug = !g.debug
	}
	if g.input.QuickSavePressed {
		g.quickSave()
	}
	if g.input.QuickLoadPressed {
		g.quickLoad()
	}
	if g.statusTimer > 0 {
		g.statusTimer--
	}

	g.pollReload()

	dt := g.clock.Scaled(g.cfg.TickDuration())
	in := g.agent.Instance
	g.input.Apply(in.Params())
	in.Tick(dt)
	g.agent.Update(g.input)
	if dt > 0 {
		g.world.Step(dt)
	}
	g.cam.Update(g.agent.Body.Position())
	return nil
}

func (g *Game) drawLevel(screen *ebiten.Image) {
	for _, s := range g.world.Solids() {
		x, y := g.cam.ToScreen(s.Min.X, s.Max.Y)
		w := (s.Max.X - s.Min.X) * g.cam.Zoom()
		h := (s.Max.Y - s.Min.Y) * g.cam.Zoom()
		c := colornames.Slategray
		if s.Surface == "grass" {
			c = colornames.Forestgreen
		}
		vector.FillRect(screen, float32(x), float32(y), float32(w), float32(h), c, false)
	}
}

func (g *Game) hud() string {
	in := g.agent.Instance
	path := make([]string, 0, 2)
	for _, id := range in.ActivePath() {
		path = append(path, string(id))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.2f  %s: %s (%.2fs)  time x%.2f\n",
		ebiten.ActualFPS(), in.Graph().Name, strings.Join(path, "/"), in.StateTime(), g.clock.TimeScale())
	if g.debug {
		store := in.Params()
		for _, d := range store.Defs() {
			fmt.Fprintf(&b, "%-12s %s\n", d.Name, store.Peek(d.ID))
		}
	}
	if g.statusTimer > 0 {
		b.WriteString(g.status)
	}
	return b.String()
}

func (g *Game) Draw(screen *ebiten.Image) {
	screen.Fill(colornames.Midnightblue)
	g.drawLevel(screen)
	if g.debug {
		obj.DebugDraw(screen, g.world, g.cam)
	}
	g.agent.Draw(screen, g.cam)
	ebitenutil.DebugPrint(screen, g.hud())

	if g.paused {
		g.pauseUI.Draw(screen)
	}
}

func (g *Game) LayoutF(outsideWidth, outsideHeight float64) (float64, float64) {
	return baseWidth, baseHeight
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	panic("shouldn't use Layout")
}
