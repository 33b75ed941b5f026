package api

import (
	"fmt"
	"net/http"
	"time"
)

// NewServer creates the *http.Server for the postback and account API.
func NewServer(port uint16, svc Reconciler, opts Options) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           NewRouter(svc, opts),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
