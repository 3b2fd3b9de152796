package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/qinweixian/yunmi-water-heater/internal/config"
	"github.com/qinweixian/yunmi-water-heater/internal/core/port"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	journal     port.CommandJournal
	gatherer    prometheus.Gatherer
}

// NewServer builds the HTTP surface. journal may be nil when the command
// journal is disabled.
func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	journal port.CommandJournal, gatherer prometheus.Gatherer) *http.Server {
	s := newServer(cfg, rootContext, masterActor, journal, gatherer)

	return &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID,
	journal port.CommandJournal, gatherer prometheus.Gatherer) *Server {
	return &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		rootContext: rootContext,
		masterActor: masterActor,
		journal:     journal,
		gatherer:    gatherer,
	}
}
