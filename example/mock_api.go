package main

import (
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"sync"
	"time"
)

// mockMirror is the state served by the mock MMPM API.
type mockMirror struct {
	mu         sync.Mutex
	packages   []map[string]any
	lastUpdate time.Time
}

// StartMockAPIServer runs a mock MMPM API server. Every request has a 1 in 5
// chance of failing and the database timestamp advances on each catalog
// read, so the dashboard shows failures being absorbed and values changing.
// Call this in a goroutine before creating the Mirror.
func StartMockAPIServer(addr string) {
	state := &mockMirror{
		packages: []map[string]any{
			{"title": "MMM-Weather", "author": "alice", "repository": "https://github.com/alice/MMM-Weather", "category": "Weather", "is_installed": true},
			{"title": "MMM-News", "author": "bob", "repository": "https://github.com/bob/MMM-News", "category": "News"},
			{"title": "MMM-Calendar", "author": "carol", "repository": "https://github.com/carol/MMM-Calendar", "category": "Productivity", "is_installed": true, "is_upgradable": true},
		},
		lastUpdate: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/packages", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		state.lastUpdate = time.Now()
		pkgs := state.packages
		state.mu.Unlock()
		respond(w, pkgs)
	})
	mux.HandleFunc("/api/db/info", func(w http.ResponseWriter, r *http.Request) {
		state.mu.Lock()
		info := map[string]any{
			"last_update": state.lastUpdate.Format(time.DateTime),
			"categories":  3,
			"packages":    len(state.packages),
		}
		state.mu.Unlock()
		respond(w, info)
	})
	mux.HandleFunc("/api/packages/upgradable", func(w http.ResponseWriter, r *http.Request) {
		respond(w, map[string]any{
			"mmpm":        false,
			"MagicMirror": rand.Intn(2) == 0,
			"packages": []map[string]string{
				{"title": "MMM-Calendar", "repository": "https://github.com/carol/MMM-Calendar"},
			},
		})
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("mock api error", "error", err)
	}
}

// respond writes payload in the MMPM envelope, or an error envelope on a
// simulated failure.
func respond(w http.ResponseWriter, payload any) {
	// simulate small latency variance
	time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

	w.Header().Set("Content-Type", "application/json")
	body := map[string]any{"code": http.StatusOK, "message": payload}
	if rand.Intn(5) == 0 {
		body = map[string]any{"code": http.StatusInternalServerError, "message": "simulated failure"}
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
