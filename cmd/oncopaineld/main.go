package main

import (
	"flag"
	"log/slog"
	"net/http"

	"oncopainel-backend/lib/configutil"
	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/serviceutil"
	"oncopainel-backend/services/oncopainel"
)

type Config struct {
	Port    int    `json:"port"`
	BaseUrl string `json:"base_url"`
}

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := configutil.ReadConfig[Config]("oncopaineld.json5")
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}

	client, err := tabnet.NewClient(tabnet.ClientOptions{BaseUrl: cfg.BaseUrl})
	if err != nil {
		serviceutil.Fatal("init tabnet client", err)
	}

	// warm up the session cookie, queries retry the handshake on
	// failure so this is best-effort
	err = client.Handshake(ctx)
	if err != nil {
		slog.WarnContext(ctx, "initial handshake failed", "err", err)
	}

	mux := http.NewServeMux()
	oncopainel.NewService(client).Register(mux)

	go serviceutil.StartHttpServer(cfg.Port, mux)
	<-ctx.Done()
}
