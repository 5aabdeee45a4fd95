// Package ebiten hosts an app in an Ebiten game loop with a Dear ImGui overlay.
package ebiten

import (
	ebitenbackend "github.com/AllenDang/cimgui-go/backend/ebiten-backend"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/kiln/app"
	"github.com/plus3/kiln/ecs"
)

// ImguiBackend wraps the Ebiten-specific Dear ImGui backend implementation. Game inserts
// it as a resource so systems can reach the backend.
type ImguiBackend struct {
	*ebitenbackend.EbitenBackend
}

// Game implements ebiten.Game. Each Ebiten tick runs one app frame inside an ImGui
// frame; the overlay is drawn after DrawWorld.
type Game struct {
	app     *app.App
	backend *ImguiBackend

	// DrawWorld draws the game content beneath the overlay. It may be nil.
	DrawWorld func(w *ecs.World, screen *ebiten.Image)
}

func NewGame(a *app.App, backend *ebitenbackend.EbitenBackend) *Game {
	g := &Game{app: a, backend: &ImguiBackend{EbitenBackend: backend}}
	a.InsertResource(g.backend)
	return g
}

func (g *Game) Update() error {
	g.backend.BeginFrame()
	err := g.app.Frame(1.0 / float64(ebiten.TPS()))
	g.backend.EndFrame()
	if err != nil {
		logger := g.app.Logger()
		logger.Error().Err(err).Msg("frame failed")
	}
	return err
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.DrawWorld != nil {
		g.DrawWorld(g.app.World(), screen)
	}
	g.backend.Draw(screen)
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.backend.Layout(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
