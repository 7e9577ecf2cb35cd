package geospatial

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routekit/internal/core/domain"
)

func TestWriteKML(t *testing.T) {
	raw := []domain.GeoPoint{{Lat: 14.5995, Lon: 120.9842}, {Lat: 14.6091, Lon: 121.0223}}
	var buf bytes.Buffer

	err := WriteKML(&buf, KMLRoute{Name: "Quiapo - Cubao", Code: "QC-1", Color: "#ff0000", Raw: raw})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "<kml")
	assert.Contains(t, out, "Quiapo - Cubao")
	assert.Contains(t, out, "120.9842,14.5995")
	assert.Equal(t, 1, strings.Count(out, "<LineString>"), "no snapped path means one line")
	assert.Equal(t, 2, strings.Count(out, "<Point>"))
}

func TestWriteKML_Snapped(t *testing.T) {
	raw := []domain.GeoPoint{{Lat: 14.5995, Lon: 120.9842}, {Lat: 14.6091, Lon: 121.0223}}
	snapped := append([]domain.GeoPoint{raw[0], {Lat: 14.6010, Lon: 121.0000}}, raw[1])
	var buf bytes.Buffer

	require.NoError(t, WriteKML(&buf, KMLRoute{Name: "r", Raw: raw, Snapped: snapped}))
	assert.Equal(t, 2, strings.Count(buf.String(), "<LineString>"))
}

func TestParseHexColor(t *testing.T) {
	fallback := color.RGBA{A: 0xff}
	assert.Equal(t, color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}, parseHexColor("#123456", fallback))
	assert.Equal(t, fallback, parseHexColor("red", fallback))
	assert.Equal(t, fallback, parseHexColor("", fallback))
}
