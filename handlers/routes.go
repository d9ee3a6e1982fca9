package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RegisterRoutes attaches the API routes to the router. proxyLimiter, when
// non-nil, fronts only the routes that call out to the metadata source.
func RegisterRoutes(r *mux.Router, anime *AnimeHandler, tracked *TrackingHandler, proxyLimiter mux.MiddlewareFunc) {
	meta := r.PathPrefix("/api").Subrouter()
	if proxyLimiter != nil {
		meta.Use(proxyLimiter)
	}
	meta.HandleFunc("/search", anime.Search).Methods(http.MethodGet, http.MethodOptions)
	meta.HandleFunc("/anime/{malID}", anime.Details).Methods(http.MethodGet, http.MethodOptions)

	track := r.PathPrefix("/api").Subrouter()
	track.HandleFunc("/track", tracked.Track).Methods(http.MethodPost, http.MethodOptions)
	track.HandleFunc("/tracked", tracked.List).Methods(http.MethodGet, http.MethodOptions)
	track.HandleFunc("/update-progress/{id}", tracked.UpdateProgress).Methods(http.MethodPut, http.MethodOptions)
	track.HandleFunc("/update-status/{id}", tracked.UpdateStatus).Methods(http.MethodPut, http.MethodOptions)
	track.HandleFunc("/delete/{id}", tracked.Delete).Methods(http.MethodDelete, http.MethodOptions)
}
