package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/sirius/internal/core/domain"
	"github.com/samirrijal/sirius/internal/core/usecases"
	"github.com/samirrijal/sirius/internal/pkg/metrics"
)

// wsMessage is sent from client to subscribe/unsubscribe to feeds.
type wsMessage struct {
	Action  string `json:"action"`  // "subscribe" | "unsubscribe"
	Server  string `json:"server"`  // game server code
	Channel string `json:"channel"` // "trains" | "board" (default: trains)
	Post    string `json:"post"`    // post ID, required for "board"
}

// wsEvent is pushed to clients whenever a subscribed server is refreshed.
type wsEvent struct {
	Type      string         `json:"type"`
	Server    string         `json:"server"`
	FetchedAt time.Time      `json:"fetched_at"`
	Trains    []TrainSummary `json:"trains,omitempty"`
	Board     *domain.Board  `json:"board,omitempty"`
}

type wsSubscription struct {
	server  string
	channel string
	post    string
}

func (s wsSubscription) key() string {
	return s.server + "/" + s.channel + "/" + s.post
}

// wsBuffer is how many snapshots may queue for a slow client before new
// ones are dropped.
const wsBuffer = 8

// WebSocketHandler returns a handler that upgrades to WebSocket and pushes
// refreshed train lists and boards to connected clients.
// Clients send JSON: {"action":"subscribe","server":"pl1","channel":"board","post":"KZ"}
func WebSocketHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		remoteAddr := c.RemoteAddr().String()
		slog.Info("ws client connected", "remote", remoteAddr)
		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		var (
			mu     sync.Mutex // guards writes
			subsMu sync.Mutex
			subs   = make(map[string]wsSubscription)
		)

		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		updates := make(chan *domain.ServerSnapshot, wsBuffer)
		unwatch := deps.Dispatch.Watch(func(snap *domain.ServerSnapshot) {
			select {
			case updates <- snap:
			default:
				slog.Warn("ws client too slow, dropping snapshot", "remote", remoteAddr, "server", snap.Server)
			}
		})
		defer unwatch()

		done := make(chan struct{})
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case snap := <-updates:
					subsMu.Lock()
					active := make([]wsSubscription, 0, len(subs))
					for _, s := range subs {
						if s.server == snap.Server {
							active = append(active, s)
						}
					}
					subsMu.Unlock()
					for _, s := range active {
						if err := writeJSON(buildEvent(deps, s, snap)); err != nil {
							return
						}
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			sub := wsSubscription{server: m.Server, channel: m.Channel, post: m.Post}
			if sub.channel == "" {
				sub.channel = "trains"
			}
			switch sub.channel {
			case "trains":
				sub.post = ""
			case "board":
				if _, ok := deps.Dispatch.Stations().ByID(sub.post); !ok {
					_ = writeJSON(map[string]string{"error": "unknown post: " + sub.post})
					continue
				}
			default:
				_ = writeJSON(map[string]string{"error": "unknown channel: " + sub.channel})
				continue
			}

			switch m.Action {
			case "subscribe":
				snap, err := deps.Dispatch.Snapshot(sub.server)
				if errors.Is(err, usecases.ErrUnknownServer) {
					_ = writeJSON(map[string]string{"error": "unknown server: " + sub.server})
					continue
				}
				subsMu.Lock()
				_, exists := subs[sub.key()]
				subs[sub.key()] = sub
				subsMu.Unlock()
				if exists {
					_ = writeJSON(map[string]string{"status": "already subscribed", "subscription": sub.key()})
					continue
				}
				_ = writeJSON(map[string]string{"status": "subscribed", "subscription": sub.key()})
				// current state right away, then every refresh
				if snap != nil {
					_ = writeJSON(buildEvent(deps, sub, snap))
				}

			case "unsubscribe":
				subsMu.Lock()
				_, exists := subs[sub.key()]
				delete(subs, sub.key())
				subsMu.Unlock()
				if exists {
					_ = writeJSON(map[string]string{"status": "unsubscribed", "subscription": sub.key()})
				} else {
					_ = writeJSON(map[string]string{"error": "not subscribed to " + sub.key()})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		close(done)
		slog.Info("ws client disconnected", "remote", remoteAddr)
	}
}

func buildEvent(deps *Dependencies, sub wsSubscription, snap *domain.ServerSnapshot) wsEvent {
	ev := wsEvent{Type: sub.channel, Server: snap.Server, FetchedAt: snap.FetchedAt}
	switch sub.channel {
	case "board":
		if post, ok := deps.Dispatch.Stations().ByID(sub.post); ok {
			board := usecases.BuildBoard(snap, post, deps.Dispatch.Stations().Names(post), time.Now())
			ev.Board = &board
		}
	default:
		ev.Trains = make([]TrainSummary, 0, len(snap.Trains))
		for _, t := range snap.Trains {
			ev.Trains = append(ev.Trains, summarize(t))
		}
	}
	return ev
}
