package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/pkgmirror"
)

func main() {
	// start mock API (see mock_api.go)
	go StartMockAPIServer(":7891")
	time.Sleep(100 * time.Millisecond)

	m, err := pkgmirror.New(
		pkgmirror.WithAPIURL("http://localhost:7891"),
		pkgmirror.WithRefreshInterval(10*time.Second),
		pkgmirror.WithPort(7890),
		pkgmirror.WithMetrics(nil),
		pkgmirror.WithUpgradableCallback(func(u pkgmirror.UpgradableDetails) {
			slog.Info("upgradable changed",
				"core", u.Core,
				"manager", u.Manager,
				"packages", len(u.Packages),
			)
		}),
	)
	if err != nil {
		slog.Error("failed to create mirror", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   pkgmirror Demo                                      ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:7890 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Mock MMPM API on :7891                              ║")
	fmt.Println("  ║   • refreshed every 10s                               ║")
	fmt.Println("  ║   • 1 in 5 requests fails                             ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := m.Start(ctx); err != nil {
		slog.Error("pkgmirror error", "error", err)
		os.Exit(1)
	}
}
