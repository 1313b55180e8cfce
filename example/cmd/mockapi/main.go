// Standalone mock MMPM API server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockapi
//
// Then in another terminal:
//
//	go run ./cmd/pkgmirror serve -c example/config.yaml
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	addr := flag.String("addr", ":7891", "listen address")
	failRate := flag.Int("fail-one-in", 5, "fail one request in N (0 never fails)")
	flag.Parse()

	fmt.Printf("Mock MMPM API starting on %s\n", *addr)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	respond := func(w http.ResponseWriter, r *http.Request, payload any) {
		time.Sleep(time.Duration(50+rand.Intn(150)) * time.Millisecond)

		w.Header().Set("Content-Type", "application/json")
		body := map[string]any{"code": http.StatusOK, "message": payload}
		if *failRate > 0 && rand.Intn(*failRate) == 0 {
			slog.Info("simulated failure", "path", r.URL.Path)
			body = map[string]any{"code": http.StatusInternalServerError, "message": "simulated failure"}
		}
		_ = json.NewEncoder(w).Encode(body)
	}

	packages := []map[string]any{
		{"title": "MMM-Weather", "author": "alice", "repository": "https://github.com/alice/MMM-Weather", "category": "Weather", "is_installed": true},
		{"title": "MMM-News", "author": "bob", "repository": "https://github.com/bob/MMM-News", "category": "News"},
	}

	http.HandleFunc("/api/packages", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, packages)
	})
	http.HandleFunc("/api/db/info", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, map[string]any{
			"last_update": time.Now().Format(time.DateTime),
			"categories":  2,
			"packages":    len(packages),
		})
	})
	http.HandleFunc("/api/packages/upgradable", func(w http.ResponseWriter, r *http.Request) {
		respond(w, r, map[string]any{
			"mmpm":        rand.Intn(2) == 0,
			"MagicMirror": false,
			"packages":    []any{},
		})
	})

	if err := http.ListenAndServe(*addr, nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
