// Package scene loads a propagation scene description from YAML or TOML and
// turns it into the obstruction world, the sources and the receivers of a run.
package scene

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/ctessum/geom"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"gopkg.in/yaml.v3"

	"noiseprop/internal/boxworld"
	perrors "noiseprop/internal/errors"
	"noiseprop/internal/geo"
	"noiseprop/internal/path"
	"noiseprop/internal/source"
)

// domainMargin pads the derived domain when a file gives none, in m.
const domainMargin = 100.0

// File is the on-disk scene layout. Geometries are WKT strings and heights
// are measured above the terrain.
type File struct {
	Name      string         `yaml:"name" toml:"name"`
	Domain    *DomainSpec    `yaml:"domain" toml:"domain"`
	Terrain   TerrainSpec    `yaml:"terrain" toml:"terrain"`
	Buildings []BuildingSpec `yaml:"buildings" toml:"buildings"`
	Soils     []SoilSpec     `yaml:"soils" toml:"soils"`
	Sources   []SourceSpec   `yaml:"sources" toml:"sources"`
	Receivers []ReceiverSpec `yaml:"receivers" toml:"receivers"`
}

type DomainSpec struct {
	MinX float64 `yaml:"minX" toml:"minX"`
	MinY float64 `yaml:"minY" toml:"minY"`
	MaxX float64 `yaml:"maxX" toml:"maxX"`
	MaxY float64 `yaml:"maxY" toml:"maxY"`
}

type TerrainSpec struct {
	Z0     float64 `yaml:"z0" toml:"z0"`
	SlopeX float64 `yaml:"slopeX" toml:"slopeX"`
	SlopeY float64 `yaml:"slopeY" toml:"slopeY"`
}

type BuildingSpec struct {
	ID       int       `yaml:"id" toml:"id"`
	Geometry string    `yaml:"geometry" toml:"geometry"`
	Height   float64   `yaml:"height" toml:"height"`
	Alpha    []float64 `yaml:"alpha" toml:"alpha"`
}

type SoilSpec struct {
	G        float64 `yaml:"g" toml:"g"`
	Geometry string  `yaml:"geometry" toml:"geometry"`
}

type SourceSpec struct {
	ID       int64     `yaml:"id" toml:"id"`
	Geometry string    `yaml:"geometry" toml:"geometry"`
	Height   float64   `yaml:"height" toml:"height"`
	Power    []float64 `yaml:"power" toml:"power"`
}

type ReceiverSpec struct {
	ID     int64   `yaml:"id" toml:"id"`
	X      float64 `yaml:"x" toml:"x"`
	Y      float64 `yaml:"y" toml:"y"`
	Height float64 `yaml:"height" toml:"height"`
}

// Receiver is a receiver with its absolute position.
type Receiver struct {
	ID       int64
	Position geo.Coordinate
}

// Scene is a resolved scene, ready to be handed to the scheduler.
type Scene struct {
	Name      string
	World     *boxworld.World
	Sources   []source.Source
	Soils     []path.Soil
	Receivers []Receiver
}

// ReceiverIDs returns the external receiver ids in input order.
func (s *Scene) ReceiverIDs() []int64 {
	ids := make([]int64, len(s.Receivers))
	for i, r := range s.Receivers {
		ids[i] = r.ID
	}
	return ids
}

// Positions returns the absolute receiver positions in input order.
func (s *Scene) Positions() []geo.Coordinate {
	out := make([]geo.Coordinate, len(s.Receivers))
	for i, r := range s.Receivers {
		out[i] = r.Position
	}
	return out
}

// Load reads a scene file. The format follows the extension: .yaml, .yml or
// .toml.
func Load(filename string, bands int) (*Scene, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, perrors.New(perrors.InvalidScene, "cannot read scene file", err).
			WithDetails(map[string]any{"path": filename})
	}
	f, err := Parse(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), "."))
	if err != nil {
		return nil, err
	}
	if f.Name == "" {
		f.Name = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}
	return f.Build(bands)
}

// Parse decodes a scene document. Unknown keys are rejected.
func Parse(data []byte, format string) (*File, error) {
	var f File
	switch format {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return nil, perrors.New(perrors.InvalidScene, "parse yaml scene", err)
		}
	case "toml":
		md, err := toml.Decode(string(data), &f)
		if err != nil {
			return nil, perrors.New(perrors.InvalidScene, "parse toml scene", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, perrors.Newf(perrors.InvalidScene, "unknown scene key %q", undecoded[0].String())
		}
	default:
		return nil, perrors.Newf(perrors.InvalidScene, "unsupported scene format %q", format)
	}
	return &f, nil
}

// Build resolves the geometries, creates the world and absolizes receiver
// heights against its terrain. A NaN ground elevation counts as 0.
func (f *File) Build(bands int) (*Scene, error) {
	buildings := make([]boxworld.Building, 0, len(f.Buildings))
	for i, b := range f.Buildings {
		poly, err := polygon(b.Geometry)
		if err != nil {
			return nil, sceneError("building", i, err)
		}
		buildings = append(buildings, boxworld.Building{
			ID:        b.ID,
			Footprint: poly[0],
			Height:    b.Height,
			Alpha:     b.Alpha,
		})
	}

	soils := make([]path.Soil, 0, len(f.Soils))
	for i, s := range f.Soils {
		if s.G < 0 || s.G > 1 {
			return nil, sceneError("soil", i, fmt.Errorf("g = %v, want a value in [0,1]", s.G))
		}
		poly, err := polygon(s.Geometry)
		if err != nil {
			return nil, sceneError("soil", i, err)
		}
		soils = append(soils, path.Soil{G: s.G, Polygon: toGeomPolygon(poly)})
	}

	sources := make([]source.Source, 0, len(f.Sources))
	seen := make(map[int64]bool, len(f.Sources))
	for i, s := range f.Sources {
		if seen[s.ID] {
			return nil, sceneError("source", i, fmt.Errorf("duplicate id %d", s.ID))
		}
		seen[s.ID] = true
		g, err := wkt.Unmarshal(s.Geometry)
		if err != nil {
			return nil, sceneError("source", i, err)
		}
		sources = append(sources, source.Source{ID: s.ID, Geometry: g, Height: s.Height, Power: s.Power})
	}

	domain := f.domain(buildings, sources)
	world, err := boxworld.New(domain, boxworld.Terrain{Z0: f.Terrain.Z0, SlopeX: f.Terrain.SlopeX, SlopeY: f.Terrain.SlopeY}, buildings, bands)
	if err != nil {
		return nil, err
	}

	receivers := make([]Receiver, 0, len(f.Receivers))
	clear(seen)
	for i, r := range f.Receivers {
		if seen[r.ID] {
			return nil, sceneError("receiver", i, fmt.Errorf("duplicate id %d", r.ID))
		}
		seen[r.ID] = true
		p := geo.XY(r.X, r.Y)
		ground := world.HeightAt(p)
		if math.IsNaN(ground) {
			ground = 0
		}
		receivers = append(receivers, Receiver{ID: r.ID, Position: p.WithZ(ground + r.Height)})
	}

	return &Scene{
		Name:      f.Name,
		World:     world,
		Sources:   sources,
		Soils:     soils,
		Receivers: receivers,
	}, nil
}

// domain returns the declared domain, or the bound of every geometry and
// receiver padded by domainMargin.
func (f *File) domain(buildings []boxworld.Building, sources []source.Source) orb.Bound {
	if f.Domain != nil {
		return orb.Bound{Min: orb.Point{f.Domain.MinX, f.Domain.MinY}, Max: orb.Point{f.Domain.MaxX, f.Domain.MaxY}}
	}
	var (
		b     orb.Bound
		empty = true
	)
	extend := func(o orb.Bound) {
		if empty {
			b, empty = o, false
			return
		}
		b = b.Union(o)
	}
	for _, bd := range buildings {
		extend(bd.Footprint.Bound())
	}
	for _, s := range sources {
		extend(s.Geometry.Bound())
	}
	for _, r := range f.Receivers {
		extend(orb.Point{r.X, r.Y}.Bound())
	}
	if empty {
		return orb.Bound{}
	}
	return b.Pad(domainMargin)
}

func polygon(text string) (orb.Polygon, error) {
	g, err := wkt.Unmarshal(text)
	if err != nil {
		return nil, err
	}
	poly, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("geometry %s, want Polygon", g.GeoJSONType())
	}
	if len(poly) == 0 || len(poly[0]) < 4 {
		return nil, fmt.Errorf("polygon has no exterior ring")
	}
	return poly, nil
}

func toGeomPolygon(p orb.Polygon) geom.Polygon {
	out := make(geom.Polygon, len(p))
	for i, ring := range p {
		pts := make(geom.Path, len(ring))
		for j, pt := range ring {
			pts[j] = geom.Point{X: pt[0], Y: pt[1]}
		}
		out[i] = pts
	}
	return out
}

func sceneError(kind string, index int, err error) error {
	return perrors.New(perrors.InvalidScene, fmt.Sprintf("invalid %s #%d", kind, index), err).
		WithDetails(map[string]any{kind: index})
}
