// Starts an http server to respond to Micropub requests.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/blturner/micropub-go/server"
	"github.com/blturner/micropub-go/server/telemetry"
)

func readConfig(filename string) server.Config {
	var cfg server.Config
	b, err := os.ReadFile(filename)
	if err != nil {
		telemetry.Error(err, "opening config [%s]", filename)
	} else {
		c, err := server.ReadConfig(b)
		if err != nil {
			telemetry.Error(err, "parsing config [%s]", filename)
		}
		cfg = c
	}

	return cfg
}

func main() {
	configFile := flag.String("config", "config.json", "config json file")
	host := flag.String("host", "", "this hostname")
	pubCert := flag.String("cert", "", "public certificate")
	privCert := flag.String("key", "", "private key")
	port := flag.Int("port", 0, "listen port")
	tokenEndpoint := flag.String("tokens", "", "token introspection endpoint")

	flag.Parse()

	telemetry.Log("starting micropub server")

	cfg := readConfig(*configFile)
	if *host != "" {
		cfg.Server.HostName = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *pubCert != "" {
		cfg.Server.Certificate = *pubCert
	}
	if *privCert != "" {
		cfg.Server.PrivateKey = *privCert
	}
	if *tokenEndpoint != "" {
		cfg.TokenEndpoint = *tokenEndpoint
	}

	svc := server.NewService(cfg)

	go func() {
		if err := svc.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			telemetry.Error(err, "http listener stopped")
		}
	}()

	// Wait for ^C
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	<-c
	telemetry.Log("stopping micropub server")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()
	svc.Shutdown(ctx)
	telemetry.Log("stopped micropub server cleanly")
}
