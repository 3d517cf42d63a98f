package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

func (app *Application) routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(cors.AllowAll().Handler)

	mux.Get("/ws", app.hub.ServeWS)

	mux.Route("/rooms", func(r chi.Router) {
		r.Get("/", app.handlers.ListRoomsHandler)
	})

	mux.Route("/attempts", func(r chi.Router) {
		r.Post("/", app.handlers.SubmitAttemptHandler)
	})

	mux.Route("/leaderboard", func(r chi.Router) {
		r.Get("/", app.handlers.GetLeaderboardHandler)
	})

	mux.Route("/stats", func(r chi.Router) {
		r.Get("/{userId}", app.handlers.GetStatsHandler)
	})

	return mux
}
