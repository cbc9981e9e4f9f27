package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS allows the chat frontend origin to call the API with bearer tokens.
func CORS(frontendURL string) func(http.Handler) http.Handler {
	origins := []string{"*"}
	if frontendURL != "" {
		origins = []string{frontendURL}
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", RequestIDHeader},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: frontendURL != "",
	})
	return c.Handler
}
