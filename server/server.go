package server

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/habitloop/habitloop/server/auth"
	contextKey "github.com/habitloop/habitloop/server/context_key"
)

// authMiddleware is the single authorization gate in front of every protected
// route. It extracts the bearer token from the Authorization header, verifies
// it, and injects the resulting Principal into the request context under
// contextKey.PrincipalKey.
//
// A missing or malformed header and a failed verification are deliberately
// indistinguishable to the caller: both produce the same 401 response. The
// check runs fresh on every request; nothing about a previous verification is
// carried over.
func authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		splitToken := strings.Split(authHeader, "Bearer ")
		if len(splitToken) != 2 {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		principal, err := auth.VerifyToken(splitToken[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		ctx := context.WithValue(r.Context(), contextKey.PrincipalKey, *principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// recoveryMiddleware recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("Panic recovered: %s\n", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Router builds the HTTP routing table. Auth endpoints are open; everything
// else under /api passes through the authorization middleware first.
func Router() http.Handler {
	r := mux.NewRouter()

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/auth/register", registerHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", loginHandler).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", logoutHandler).Methods(http.MethodPost)

	protected := api.NewRoute().Subrouter()
	protected.Use(authMiddleware)
	protected.HandleFunc("/users/me", currentUserHandler).Methods(http.MethodGet)
	protected.HandleFunc("/habits", listHabitsHandler).Methods(http.MethodGet)
	protected.HandleFunc("/habits", createHabitHandler).Methods(http.MethodPost)
	protected.HandleFunc("/habits/{id}", updateHabitHandler).Methods(http.MethodPut)
	protected.HandleFunc("/habits/{id}", deleteHabitHandler).Methods(http.MethodDelete)
	protected.HandleFunc("/logs", upsertLogHandler).Methods(http.MethodPost)
	protected.HandleFunc("/logs", todayLogsHandler).Methods(http.MethodGet)
	protected.HandleFunc("/analytics", analyticsHandler).Methods(http.MethodGet)

	return recoveryMiddleware(r)
}

// Start initializes and starts the API server at the given URL.
func Start(serverURL string) {
	router := Router()

	// Apply the CORS middleware to the router
	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})

	// Wrap the router with the CORS middleware
	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(router)

	// Apply the logging middleware
	loggingRouter := handlers.LoggingHandler(os.Stdout, corsRouter)

	// Parsing the server url
	u, err := url.Parse(serverURL)
	if err != nil {
		log.Fatalf("invalid server url %q: %v", serverURL, err)
	}

	// Start the server
	server := &http.Server{
		Handler:      loggingRouter,
		Addr:         u.Host,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	log.Fatal(server.ListenAndServe())
}
