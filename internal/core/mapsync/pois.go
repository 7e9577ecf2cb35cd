package mapsync

import (
	"errors"
	"sort"

	"github.com/samirrijal/routekit/internal/core/domain"
)

type pin struct {
	handle Handle
	poi    domain.POI
}

// POILayer mirrors persisted POIs into read-only markers keyed by POI id.
type POILayer struct {
	surface  Surface
	pins     map[string]pin
	disposed bool
}

// NewPOILayer creates an empty POI layer on surface.
func NewPOILayer(surface Surface) *POILayer {
	return &POILayer{surface: surface, pins: make(map[string]pin)}
}

func poiHandle(id string) Handle { return Handle("poi/" + id) }

func poiOptions(p domain.POI) MarkerOptions {
	return MarkerOptions{Kind: MarkerPOI, Label: p.Name, Category: p.Type}
}

// Sync makes the markers match pois: unknown ids are created, missing ids
// removed, and moved or renamed POIs updated in place.
func (l *POILayer) Sync(pois []domain.POI) error {
	if l.disposed {
		return ErrDisposed
	}
	var errs []error

	want := make(map[string]domain.POI, len(pois))
	for _, p := range pois {
		want[p.ID] = p
	}

	for _, id := range l.ids() {
		if _, keep := want[id]; keep {
			continue
		}
		if err := l.surface.RemoveMarker(l.pins[id].handle); err != nil {
			errs = append(errs, err)
			continue
		}
		delete(l.pins, id)
	}

	for _, p := range pois {
		cur, ok := l.pins[p.ID]
		if !ok {
			h := poiHandle(p.ID)
			if err := l.surface.CreateMarker(h, p.Location, poiOptions(p)); err != nil {
				errs = append(errs, err)
				continue
			}
			l.pins[p.ID] = pin{handle: h, poi: p}
			continue
		}
		if cur.poi.Location != p.Location {
			if err := l.surface.MoveMarker(cur.handle, p.Location); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		if poiOptions(cur.poi) != poiOptions(p) {
			if err := l.surface.StyleMarker(cur.handle, poiOptions(p)); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		l.pins[p.ID] = pin{handle: cur.handle, poi: p}
	}
	return errors.Join(errs...)
}

// Len returns the number of POI markers on the surface.
func (l *POILayer) Len() int { return len(l.pins) }

// Lookup returns the POI behind a marker handle.
func (l *POILayer) Lookup(h Handle) (domain.POI, bool) {
	for _, p := range l.pins {
		if p.handle == h {
			return p.poi, true
		}
	}
	return domain.POI{}, false
}

func (l *POILayer) ids() []string {
	ids := make([]string, 0, len(l.pins))
	for id := range l.pins {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dispose removes every POI marker. It is safe to call more than once.
func (l *POILayer) Dispose() error {
	if l.disposed {
		return nil
	}
	var errs []error
	for _, id := range l.ids() {
		if err := l.surface.RemoveMarker(l.pins[id].handle); err != nil {
			errs = append(errs, err)
		}
	}
	l.pins = nil
	l.disposed = true
	return errors.Join(errs...)
}
