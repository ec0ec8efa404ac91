// Package main is a free-flying viewer for Quake 2 family BSP maps.
package main

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/quetoo-render/internal/config"
	"github.com/Faultbox/quetoo-render/internal/engine/camera"
	"github.com/Faultbox/quetoo-render/internal/engine/glbackend"
	"github.com/Faultbox/quetoo-render/internal/engine/picking"
	"github.com/Faultbox/quetoo-render/internal/engine/render"
	"github.com/Faultbox/quetoo-render/internal/engine/window"
	"github.com/Faultbox/quetoo-render/internal/logger"
)

const (
	statsPeriod = 1000 // milliseconds between title updates
	pickRange   = 4096
)

// axis maps a pair of held keys to -1, 0 or 1.
func axis(pos, neg sdl.Scancode) float32 {
	var v float32
	if window.KeyDown(pos) {
		v++
	}
	if window.KeyDown(neg) {
		v--
	}
	return v
}

func main() {
	config.ParseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Error("bspview failed", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("bspview closed normally")
}

func run(cfg *config.Config) error {
	win, err := window.New(window.Config{
		Title:      "bspview",
		Width:      cfg.Window.Width,
		Height:     cfg.Window.Height,
		Fullscreen: cfg.Window.Fullscreen,
		VSync:      cfg.Window.VSync,
	}, logger.Log)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := glbackend.New()
	if err != nil {
		return err
	}
	r, err := render.New(dev, cfg, logger.Log)
	if err != nil {
		return err
	}
	defer func() {
		if leaks := r.Shutdown(); leaks > 0 {
			logger.Warn("buffers leaked at shutdown", zap.Int("count", leaks))
		}
	}()

	cam := camera.NewFlyCamera()
	if cfg.Data.Map != "" {
		if err := r.LoadMap(cfg.Data.Map); err != nil {
			return err
		}
		world := &r.World.Submodels[0]
		cam.FitToBounds(world.Mins, world.Maxs)
		win.SetTitle("bspview - " + cfg.Data.Map)
	}

	var (
		last       = win.Ticks()
		lastReport = last
		frames     int
		stains     []render.Stain
	)
	for {
		in := win.Poll()
		if in.Quit || in.Pressed[sdl.K_ESCAPE] {
			return nil
		}
		now := win.Ticks()
		dt := float32(now-last) / 1000
		last = now

		cam.HandleDrag(float32(in.MouseDX), float32(in.MouseDY))
		cam.HandleMovement(
			axis(sdl.SCANCODE_W, sdl.SCANCODE_S),
			axis(sdl.SCANCODE_D, sdl.SCANCODE_A),
			axis(sdl.SCANCODE_SPACE, sdl.SCANCODE_LCTRL),
			dt)

		width, height := win.Size()
		viewport := image.Rect(0, 0, width, height)

		stains = stains[:0]
		if in.Pressed[sdl.K_f] && r.World != nil {
			if hit, ok := picking.PickSurface(r.World, picking.ViewRay(cam.Origin, cam.Angles), pickRange); ok {
				stains = append(stains, render.Stain{Origin: hit.Point, Radius: 48, Color: color.RGBA{R: 96, G: 16, B: 16, A: 192}})
			}
		}
		if in.Pressed[sdl.K_c] {
			r.ClearStains()
		}

		r.BeginFrame()
		r.DrawView(&render.View{
			Origin:   cam.Origin,
			Angles:   cam.Angles,
			FOV:      90,
			Viewport: viewport,
			Time:     float32(now) / 1000,
			Stains:   stains,
		})

		cx, cy := width/2, height/2
		white := color.RGBA{255, 255, 255, 255}
		r.Begin2D(width, height)
		r.DrawFill(image.Rect(cx-8, cy, cx+9, cy+1), white)
		r.DrawFill(image.Rect(cx, cy-8, cx+1, cy+9), white)
		r.End2D()
		r.EndFrame()

		if in.Pressed[sdl.K_F12] {
			r.Screenshot(viewport)
		}
		win.SwapBuffers()

		frames++
		if now-lastReport >= statsPeriod {
			s := r.Stats
			win.SetTitle(fmt.Sprintf("bspview - %s - %d fps - %d draws - %d surfaces - %d state changes",
				cfg.Data.Map, frames*1000/int(now-lastReport), s.DrawElements+s.DrawArrays, s.Surfaces, s.TotalStateChanges()))
			lastReport, frames = now, 0
		}
	}
}
