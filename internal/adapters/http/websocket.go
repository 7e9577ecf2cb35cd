package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routekit/internal/core/domain"
	"github.com/samirrijal/routekit/internal/core/editor"
	"github.com/samirrijal/routekit/internal/core/mapsync"
	"github.com/samirrijal/routekit/internal/pkg/metrics"
)

// wsConn serializes writes and keeps the connection alive.
type wsConn struct {
	c    *websocket.Conn
	mu   sync.Mutex
	done chan struct{}
}

func newWSConn(c *websocket.Conn) *wsConn {
	w := &wsConn{c: c, done: make(chan struct{})}
	go w.keepAlive()
	return w
}

func (w *wsConn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteMessage(websocket.TextMessage, data)
}

func (w *wsConn) keepAlive() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			w.mu.Lock()
			err := w.c.WriteMessage(websocket.PingMessage, nil)
			w.mu.Unlock()
			if err != nil {
				return
			}
		case <-w.done:
			return
		}
	}
}

func (w *wsConn) close() { close(w.done) }

// wsMessage is sent from client to subscribe/unsubscribe to route events.
type wsMessage struct {
	Action  string `json:"action"`   // "subscribe" | "unsubscribe"
	RouteID string `json:"route_id"` // empty = all routes
}

// EventsWebSocketHandler relays route events from NATS to connected clients.
// Clients start on the broadcast feed and may narrow to one route with
// {"action":"subscribe","route_id":"..."}.
func EventsWebSocketHandler(nc *nats.Conn) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		if nc == nil {
			return
		}

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ws := newWSConn(c)
		defer ws.close()

		subs := make(map[string]*nats.Subscription) // subject -> subscription
		relay := func(msg *nats.Msg) { _ = ws.writeJSON(json.RawMessage(msg.Data)) }

		sub, err := nc.Subscribe("routes.updates.broadcast", relay)
		if err != nil {
			slog.Error("ws default subscribe", "error", err)
			return
		}
		subs[sub.Subject] = sub

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = ws.writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			subject := "routes.updates.broadcast"
			if m.RouteID != "" {
				subject = "routes.*." + m.RouteID
			}

			switch m.Action {
			case "subscribe":
				if _, exists := subs[subject]; exists {
					_ = ws.writeJSON(map[string]string{"status": "already subscribed", "subject": subject})
					continue
				}
				s, err := nc.Subscribe(subject, relay)
				if err != nil {
					_ = ws.writeJSON(map[string]string{"error": "subscribe failed: " + err.Error()})
					continue
				}
				subs[subject] = s
				_ = ws.writeJSON(map[string]string{"status": "subscribed", "subject": subject})

			case "unsubscribe":
				if s, exists := subs[subject]; exists {
					_ = s.Unsubscribe()
					delete(subs, subject)
					_ = ws.writeJSON(map[string]string{"status": "unsubscribed", "subject": subject})
				} else {
					_ = ws.writeJSON(map[string]string{"error": "not subscribed to " + subject})
				}

			default:
				_ = ws.writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		for _, s := range subs {
			_ = s.Unsubscribe()
		}
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

// surfaceCommand is a drawing instruction sent to the browser map.
// Coordinates are [lon, lat].
type surfaceCommand struct {
	Op     string                 `json:"op"`
	Handle mapsync.Handle         `json:"handle,omitempty"`
	At     *[2]float64            `json:"at,omitempty"`
	Path   [][2]float64           `json:"path,omitempty"`
	Marker *mapsync.MarkerOptions `json:"marker,omitempty"`
	Line   *mapsync.LineOptions   `json:"line,omitempty"`
}

// wsSurface implements mapsync.Surface over a websocket.
type wsSurface struct {
	ws *wsConn
}

func lonLat(p domain.GeoPoint) *[2]float64 {
	ll := p.LonLat()
	return &ll
}

func (s *wsSurface) CreateMarker(h mapsync.Handle, at domain.GeoPoint, opts mapsync.MarkerOptions) error {
	return s.ws.writeJSON(surfaceCommand{Op: "create_marker", Handle: h, At: lonLat(at), Marker: &opts})
}

func (s *wsSurface) MoveMarker(h mapsync.Handle, to domain.GeoPoint) error {
	return s.ws.writeJSON(surfaceCommand{Op: "move_marker", Handle: h, At: lonLat(to)})
}

func (s *wsSurface) StyleMarker(h mapsync.Handle, opts mapsync.MarkerOptions) error {
	return s.ws.writeJSON(surfaceCommand{Op: "style_marker", Handle: h, Marker: &opts})
}

func (s *wsSurface) RemoveMarker(h mapsync.Handle) error {
	return s.ws.writeJSON(surfaceCommand{Op: "remove_marker", Handle: h})
}

func (s *wsSurface) DrawLine(h mapsync.Handle, points []domain.GeoPoint, opts mapsync.LineOptions) error {
	path := make([][2]float64, len(points))
	for i, p := range points {
		path[i] = p.LonLat()
	}
	return s.ws.writeJSON(surfaceCommand{Op: "draw_line", Handle: h, Path: path, Line: &opts})
}

func (s *wsSurface) RemoveLine(h mapsync.Handle) error {
	return s.ws.writeJSON(surfaceCommand{Op: "remove_line", Handle: h})
}

// surfaceMessage is sent by the browser map.
type surfaceMessage struct {
	Type    string           `json:"type"` // "gesture" | "select" | "mode" | "viewport"
	Gesture *mapsync.Gesture `json:"gesture,omitempty"`
	Index   int              `json:"index"`
	Mode    string           `json:"mode,omitempty"`
	Bounds  *domain.Bounds   `json:"bounds,omitempty"`
}

// SessionWebSocketHandler binds a browser map to an editing session. The
// server draws markers and the route line; the client reports gestures.
// GET /ws/sessions/:id?mode=add_point
func SessionWebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()
		id := c.Params("id")

		sess, err := deps.Sessions.Get(id)
		if err != nil {
			_ = c.WriteJSON(map[string]string{"error": err.Error()})
			return
		}
		mode, ok := mapsync.ParseMode(c.Query("mode", string(mapsync.ModeSelect)))
		if !ok {
			_ = c.WriteJSON(map[string]string{"error": "unknown mode"})
			return
		}

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ws := newWSConn(c)
		defer ws.close()
		surface := &wsSurface{ws: ws}

		layer, detach, err := deps.Sessions.Attach(id, surface, mapsync.WithMode(mode))
		if err != nil {
			_ = ws.writeJSON(map[string]string{"error": err.Error()})
			return
		}
		defer func() {
			if err := detach(); err != nil {
				slog.Debug("ws detach", "session_id", id, "error", err)
			}
		}()

		pois := mapsync.NewPOILayer(surface)
		defer func() { _ = pois.Dispose() }()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		logger := slog.With("session_id", id, "remote", c.RemoteAddr().String())
		logger.Info("map surface attached", "mode", mode)

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				break
			}
			var m surfaceMessage
			if err := json.Unmarshal(raw, &m); err != nil {
				_ = ws.writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			var opErr error
			switch m.Type {
			case "gesture":
				if m.Gesture == nil {
					opErr = domain.NewValidationError("gesture", "gesture is required")
					break
				}
				if poi, ok := pois.Lookup(m.Gesture.Handle); ok {
					_ = ws.writeJSON(map[string]interface{}{"op": "poi", "poi": poi})
					continue
				}
				opErr = deps.Sessions.Gesture(ctx, id, layer, *m.Gesture)
			case "select":
				opErr = sess.Edit(func(*editor.Engine) error { return layer.Select(m.Index) })
			case "mode":
				next, ok := mapsync.ParseMode(m.Mode)
				if !ok {
					opErr = domain.NewValidationError("mode", "unknown mode "+m.Mode)
					break
				}
				_ = sess.Edit(func(*editor.Engine) error { layer.SetMode(next); return nil })
			case "viewport":
				if m.Bounds == nil || deps.Catalog == nil {
					continue
				}
				found, err := deps.Catalog.POIsInBounds(ctx, *m.Bounds, 200)
				if err != nil {
					opErr = err
					break
				}
				opErr = pois.Sync(found)
			default:
				opErr = domain.NewValidationError("type", "unknown message type "+m.Type)
			}

			if opErr != nil {
				logger.Debug("surface message failed", "type", m.Type, "error", opErr)
				_ = ws.writeJSON(map[string]string{"error": opErr.Error()})
				continue
			}
			_ = ws.writeJSON(map[string]interface{}{"op": "state", "session": sess.View()})
		}

		logger.Info("map surface detached")
	}
}
