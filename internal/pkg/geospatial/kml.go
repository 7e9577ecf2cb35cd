package geospatial

import (
	"fmt"
	"image/color"
	"io"
	"strconv"
	"strings"

	"github.com/twpayne/go-kml"

	"github.com/samirrijal/routekit/internal/core/domain"
)

// KMLRoute is one route rendered by WriteKML.
type KMLRoute struct {
	Name    string
	Code    string
	Color   string // #rrggbb, optional
	Raw     []domain.GeoPoint
	Snapped []domain.GeoPoint
}

// WriteKML writes r as a KML document with one placemark per path and one
// per waypoint.
func WriteKML(w io.Writer, r KMLRoute) error {
	lineColor := parseHexColor(r.Color, color.RGBA{R: 0x1e, G: 0x88, B: 0xe5, A: 0xff})

	children := []kml.Element{
		kml.Name(r.Name),
		kml.SharedStyle("raw",
			kml.LineStyle(kml.Color(lineColor), kml.Width(3)),
		),
		kml.SharedStyle("snapped",
			kml.LineStyle(kml.Color(lineColor), kml.Width(5)),
		),
	}
	if r.Code != "" {
		children = append(children, kml.Description("Route "+r.Code))
	}
	if len(r.Raw) >= domain.MinPathPoints {
		children = append(children, linePlacemark(r.Name, "#raw", r.Raw))
	}
	if len(r.Snapped) >= domain.MinPathPoints {
		children = append(children, linePlacemark(r.Name+" (road)", "#snapped", r.Snapped))
	}

	waypoints := []kml.Element{kml.Name("Waypoints")}
	for i, p := range r.Raw {
		waypoints = append(waypoints, kml.Placemark(
			kml.Name(strconv.Itoa(i+1)),
			kml.Point(kml.Coordinates(kml.Coordinate{Lon: p.Lon, Lat: p.Lat})),
		))
	}
	children = append(children, kml.Folder(waypoints...))

	if err := kml.KML(kml.Document(children...)).WriteIndent(w, "", "  "); err != nil {
		return fmt.Errorf("write kml: %w", err)
	}
	return nil
}

func linePlacemark(name, style string, points []domain.GeoPoint) kml.Element {
	coords := make([]kml.Coordinate, len(points))
	for i, p := range points {
		coords[i] = kml.Coordinate{Lon: p.Lon, Lat: p.Lat}
	}
	return kml.Placemark(
		kml.Name(name),
		kml.StyleURL(style),
		kml.LineString(
			kml.Tessellate(true),
			kml.Coordinates(coords...),
		),
	)
}

func parseHexColor(s string, fallback color.RGBA) color.RGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}
