package bridge

import (
	"net/http"
	"time"

	"github.com/rs/cors"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer builds the bridge HTTP server. Renderers run on another
// origin, so CORS is open.
func NewServer(addr string, h *Handler) *http.Server {
	mux := http.NewServeMux()
	h.Register(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:              addr,
		Handler:           h2c.NewHandler(c.Handler(mux), &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
}
