// Command server runs the LobbyChat relay: a connection-oriented chat
// server that accepts many concurrent clients, maintains a shared live
// roster, and routes line-oriented messages per the inline command
// protocol (#NEWUSER, #GAMESTART, @name private messages).
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/hmartin/lobbychat/pkg/logging"
	"github.com/hmartin/lobbychat/pkg/server"
	"github.com/hmartin/lobbychat/pkg/version"
	"github.com/joho/godotenv"
)

// envOr returns the value of an environment variable or a fallback.
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	// Optional .env next to the binary; absence is fine.
	_ = godotenv.Load()

	configPath := flag.String("config", envOr("LOBBYCHAT_CONFIG", ""), "YAML config file path (flags override file values)")
	listenAddr := flag.String("listen", "", "TCP bind address")
	wsAddr := flag.String("ws", "", "HTTP bind address for the WebSocket bridge (\"off\" to disable)")
	metricsAddr := flag.String("metrics", "", "HTTP bind address for /metrics and /roster (\"off\" to disable)")
	logLevel := flag.String("log-level", "", "Log level: "+logging.LevelNames())
	logFormat := flag.String("log-format", "", "Log format: text or json")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("lobbychat " + version.Full())
		return
	}

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := server.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load config %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Precedence: flags > environment > config file > defaults.
	if addr := envOr("LOBBYCHAT_LISTEN_ADDR", ""); addr != "" {
		cfg.ListenAddr = addr
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	switch *wsAddr {
	case "":
	case "off":
		cfg.WebSocketAddr = ""
	default:
		cfg.WebSocketAddr = *wsAddr
	}
	switch *metricsAddr {
	case "":
	case "off":
		cfg.MetricsAddr = ""
	default:
		cfg.MetricsAddr = *metricsAddr
	}
	if v := envOr("LOBBYCHAT_LOG_LEVEL", ""); v != "" {
		cfg.Log.Level = v
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}

	if err := logging.Setup(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}

	srv := server.New(cfg)
	if err := srv.Run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
