package formats

import (
	"errors"
	"testing"
)

func TestParseEntities(t *testing.T) {
	src := `
// map header
{
"classname" "worldspawn"
"message" "The Edge { of } time"
"lightmap_scale" "0x8"
}
{
"classname" "info_player_start"
"origin" "0 0 24"
}
`
	ents, err := ParseEntities(src)
	if err != nil {
		t.Fatalf("ParseEntities failed: %v", err)
	}
	if len(ents) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(ents))
	}

	world := Worldspawn(ents)
	if world["message"] != "The Edge { of } time" {
		t.Errorf("expected quoted braces kept, got %q", world["message"])
	}
	if got := LuxelSize(world, 16); got != 8 {
		t.Errorf("expected luxel size 8 from hex scale, got %d", got)
	}
	if got := ents[1].ClassName(); got != "info_player_start" {
		t.Errorf("expected info_player_start, got %q", got)
	}
}

func TestLuxelSize(t *testing.T) {
	tests := []struct {
		name  string
		world Entity
		want  int
	}{
		{"default", Entity{}, 16},
		{"luxel size", Entity{"luxel_size": "4"}, 4},
		{"lightmap scale", Entity{"lightmap_scale": "8"}, 8},
		{"prefers luxel size", Entity{"luxel_size": "2", "lightmap_scale": "8"}, 2},
		{"invalid", Entity{"luxel_size": "big"}, 16},
		{"zero", Entity{"lightmap_scale": "0"}, 16},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LuxelSize(tt.world, 16); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestEntityFloat(t *testing.T) {
	e := Entity{"gravity": " 800.5 ", "bad": "x"}
	if got := e.Float("gravity", 0); got != 800.5 {
		t.Errorf("expected 800.5, got %v", got)
	}
	if got := e.Float("bad", 1); got != 1 {
		t.Errorf("expected default for invalid value, got %v", got)
	}
	if got := e.Float("missing", 2); got != 2 {
		t.Errorf("expected default for missing key, got %v", got)
	}
}

func TestParseEntities_Malformed(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unterminated entity", `{ "classname" "worldspawn"`},
		{"unterminated quote", `{ "classname" "worldspawn }`},
		{"nested", `{ { } }`},
		{"outside entity", `"classname" "worldspawn"`},
		{"dangling key", `{ "classname" }`},
		{"stray close", `}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEntities(tt.src); !errors.Is(err, ErrMalformedEntities) {
				t.Errorf("expected ErrMalformedEntities, got %v", err)
			}
		})
	}
}
