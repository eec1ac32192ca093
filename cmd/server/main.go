// Command server runs the PDF editor's HTTP API.
package main

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/inkwell-dev/pdfedit/api"
	"github.com/inkwell-dev/pdfedit/config"
	"github.com/inkwell-dev/pdfedit/observability"
	"github.com/inkwell-dev/pdfedit/store"
)

func main() {
	cfg := config.FromEnv()
	gin.SetMode(cfg.GinMode)

	logger := observability.NewSlogLogger(observability.ParseLevel(cfg.LogLevel))
	st := store.NewWithObservability(logger, observability.NopTracer())
	srv := api.NewServer(st, logger)

	logger.Info("starting server", observability.String("addr", cfg.BindAddr))
	if err := http.ListenAndServe(cfg.BindAddr, srv.Router()); err != nil {
		log.Fatal(err)
	}
}
