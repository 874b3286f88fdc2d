package timezone

import (
	_ "embed"
	"fmt"
	"io"
	"math"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed zones.yaml
var embeddedZones []byte

// Box is a latitude/longitude bounding box.
type Box struct {
	MinLat float64 `yaml:"min_lat"`
	MaxLat float64 `yaml:"max_lat"`
	MinLng float64 `yaml:"min_lng"`
	MaxLng float64 `yaml:"max_lng"`
}

func (b Box) contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

func (b Box) area() float64 {
	return (b.MaxLat - b.MinLat) * (b.MaxLng - b.MinLng)
}

// Point is a reference location inside a zone used for nearest matching.
type Point struct {
	Lat float64 `yaml:"lat"`
	Lng float64 `yaml:"lng"`
}

// ZoneShape is one dataset entry.
type ZoneShape struct {
	Name   string  `yaml:"name"`
	Boxes  []Box   `yaml:"boxes"`
	Points []Point `yaml:"points"`
}

type zoneFile struct {
	Zones []ZoneShape `yaml:"zones"`
}

type indexedBox struct {
	zone string
	box  Box
}

// Dataset is a static coordinate to zone table. Lookups are pure.
type Dataset struct {
	boxes  []indexedBox
	points []indexedPoint
}

type indexedPoint struct {
	zone  string
	point Point
}

// DefaultDataset parses the embedded zone table.
func DefaultDataset() (*Dataset, error) {
	return parseDataset(embeddedZones)
}

// LoadDataset parses a zone table in the embedded YAML layout.
func LoadDataset(r io.Reader) (*Dataset, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("timezone: read dataset: %w", err)
	}
	return parseDataset(raw)
}

func parseDataset(raw []byte) (*Dataset, error) {
	var file zoneFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("timezone: decode dataset: %w", err)
	}
	return NewDataset(file.Zones)
}

// NewDataset indexes zone shapes. Smaller boxes are checked first so nested
// regions win over the zones that surround them.
func NewDataset(zones []ZoneShape) (*Dataset, error) {
	ds := &Dataset{}
	for _, zone := range zones {
		if zone.Name == "" {
			return nil, fmt.Errorf("timezone: dataset entry without name")
		}
		for _, box := range zone.Boxes {
			if box.MinLat > box.MaxLat || box.MinLng > box.MaxLng {
				return nil, fmt.Errorf("timezone: inverted box for %s", zone.Name)
			}
			ds.boxes = append(ds.boxes, indexedBox{zone: zone.Name, box: box})
		}
		for _, point := range zone.Points {
			ds.points = append(ds.points, indexedPoint{zone: zone.Name, point: point})
		}
	}
	sort.SliceStable(ds.boxes, func(i, j int) bool {
		return ds.boxes[i].box.area() < ds.boxes[j].box.area()
	})
	return ds, nil
}

// ZoneAt implements CoordinateLookup. Points outside every box, such as
// offshore venues, fall back to the nearest reference point.
func (d *Dataset) ZoneAt(lat, lng float64) (string, bool) {
	if d == nil || !(Coordinates{Latitude: lat, Longitude: lng}).Valid() {
		return "", false
	}
	for _, entry := range d.boxes {
		if entry.box.contains(lat, lng) {
			return entry.zone, true
		}
	}

	best := ""
	bestDistance := math.Inf(1)
	for _, entry := range d.points {
		distance := haversine(lat, lng, entry.point.Lat, entry.point.Lng)
		if distance < bestDistance {
			best = entry.zone
			bestDistance = distance
		}
	}
	return best, best != ""
}

const earthRadiusKm = 6371.0

func haversine(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }
	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(a)))
}
