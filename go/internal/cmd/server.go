package main

import (
	"net/http"

	"github.com/mcdev12/miou/go/internal/server"
)

func setupServer(addr string, s *Services) *http.Server {
	return server.New(addr, server.Deps{
		Snapshots: s.Bot,
		Alerts:    s.Store,
		Loop:      s.Loop,
		Scheduler: s.Scheduler,
		WS:        s.Hub,
	})
}
