package bsp

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Faultbox/quetoo-render/internal/engine/gpu"
	"github.com/Faultbox/quetoo-render/internal/engine/gpu/gputest"
	"github.com/Faultbox/quetoo-render/internal/engine/texture"
)

func newTestMaterials(t *testing.T) (*Materials, *texture.Manager, string, *observer.ObservedLogs) {
	t.Helper()
	dev := gputest.New(4096)
	tm := texture.NewManager(dev, texture.NewUnits(dev, &gpu.Stats{}), nil)
	base := t.TempDir()
	core, logs := observer.New(zapcore.WarnLevel)
	return NewMaterials(base, tm, map[string]MaterialDef{"e1u1/floor": {Stages: true}}, zap.New(core)), tm, base, logs
}

func writePNG(t *testing.T, file string, w, h int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(file)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func TestMaterialsLoadImageSize(t *testing.T) {
	m, _, base, logs := newTestMaterials(t)
	writePNG(t, filepath.Join(base, "textures", "e1u1", "floor.png"), 64, 32)

	mat := m.Resolve("e1u1/floor")
	if mat.Width != 64 || mat.Height != 32 {
		t.Errorf("expected 64x32, got %dx%d", mat.Width, mat.Height)
	}
	if !mat.Stages {
		t.Error("expected definition applied")
	}
	if m.Resolve("e1u1/floor") != mat || m.Len() != 1 {
		t.Error("expected material cached by name")
	}
	if logs.Len() != 0 {
		t.Errorf("expected no warnings, got %d", logs.Len())
	}
}

func TestMaterialsFallbackNominalSize(t *testing.T) {
	m, tm, _, logs := newTestMaterials(t)

	mat := m.Resolve("e1u1/missing")
	if mat.Diffuse != tm.Null() {
		t.Error("expected null texture fallback")
	}
	if mat.Width != NullMaterialSize || mat.Height != NullMaterialSize {
		t.Errorf("expected %dx%d, got %dx%d", NullMaterialSize, NullMaterialSize, mat.Width, mat.Height)
	}
	entries := logs.FilterMessage("material image not loaded, using null texture").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(entries))
	}
	if w := entries[0].ContextMap()["width"]; w != int64(NullMaterialSize) {
		t.Errorf("expected logged width %d, got %v", NullMaterialSize, w)
	}
}
