// lmcache inspects the lightmap packing caches written by the renderer.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Faultbox/quetoo-render/internal/engine/lightmap"
	"github.com/Faultbox/quetoo-render/pkg/formats"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "check":
		cmdCheck(args)
	case "list", "ls":
		cmdList(args)
	case "map":
		cmdMap(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`lmcache - lightmap packing cache utility

Usage:
  lmcache <command> [options]

Commands:
  info <file.lmcache>            Show cache header
  check <map.bsp> <cache dir>    Report whether the map's cache is reusable
  list <cache dir>               List caches in a directory
  map <map.bsp>                  Show the lightmap inputs of a map

Examples:
  lmcache info cache/edge.lmcache
  lmcache check default/maps/edge.bsp cache
  lmcache list cache`)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func readHeader(path string) (lightmap.CacheHeader, int64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lightmap.CacheHeader{}, 0, err
	}
	h, err := lightmap.ReadCacheHeader(data)
	return h, int64(len(data)), err
}

func cmdInfo(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lmcache info <file.lmcache>")
		os.Exit(1)
	}

	h, size, err := readHeader(args[0])
	if err != nil {
		fail(err)
	}
	fmt.Printf("Cache: %s\n", args[0])
	fmt.Printf("File size: %d bytes\n", size)
	fmt.Printf("Map size: %d bytes\n", h.Size)
	fmt.Printf("Map modified: %s\n", time.Unix(h.ModTime, 0).Format(time.RFC3339))
	fmt.Printf("Packers: %d\n", h.Packers)
}

func cmdCheck(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: lmcache check <map.bsp> <cache dir>")
		os.Exit(1)
	}

	mapPath, dir := args[0], args[1]
	name := strings.TrimSuffix(filepath.Base(mapPath), filepath.Ext(mapPath))
	src, err := lightmap.StatSource(mapPath, name, false)
	if err != nil {
		fail(err)
	}

	cache := lightmap.CachePath(dir, name)
	h, _, err := readHeader(cache)
	switch {
	case os.IsNotExist(err):
		fmt.Printf("%s: no cache\n", cache)
	case err != nil:
		fmt.Printf("%s: unusable: %v\n", cache, err)
	case h.Size != src.Size || h.ModTime != src.ModTime:
		fmt.Printf("%s: stale (map %d bytes at %d, cache %d bytes at %d)\n", cache, src.Size, src.ModTime, h.Size, h.ModTime)
	case h.Packers == ^uint32(0):
		fmt.Printf("%s: incomplete\n", cache)
	case h.Packers == 0:
		fmt.Printf("%s: empty\n", cache)
	default:
		fmt.Printf("%s: valid, %d packers\n", cache, h.Packers)
	}
}

func cmdList(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lmcache list <cache dir>")
		os.Exit(1)
	}

	files, err := filepath.Glob(filepath.Join(args[0], "*.lmcache"))
	if err != nil {
		fail(err)
	}
	sort.Strings(files)
	for _, f := range files {
		h, size, err := readHeader(f)
		if err != nil {
			fmt.Printf("%-40s invalid: %v\n", filepath.Base(f), err)
			continue
		}
		fmt.Printf("%-40s %10d bytes %3d packers\n", filepath.Base(f), size, h.Packers)
	}
	fmt.Printf("\nTotal: %d caches\n", len(files))
}

func cmdMap(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: lmcache map <map.bsp>")
		os.Exit(1)
	}

	b, err := formats.LoadBSP(args[0])
	if err != nil {
		fail(err)
	}
	ents, err := formats.ParseEntities(b.Entities)
	if err != nil {
		fail(err)
	}

	lit := 0
	for _, f := range b.Faces {
		if f.LightOffset >= 0 {
			lit++
		}
	}
	fmt.Printf("Map: %s\n", args[0])
	fmt.Printf("Version: %d (directional: %v)\n", b.Version, b.Directional())
	fmt.Printf("Faces: %d (%d lit)\n", len(b.Faces), lit)
	fmt.Printf("Lighting: %d bytes\n", len(b.Lighting))
	fmt.Printf("Luxel size: %d\n", formats.LuxelSize(formats.Worldspawn(ents), lightmap.DefaultLuxelSize))
}
