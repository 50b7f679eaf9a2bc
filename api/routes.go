package api

import (
	"github.com/gorilla/mux"
	"github.com/tolkbridge/tolka/internal/booking"
	"github.com/tolkbridge/tolka/internal/config"
	"github.com/tolkbridge/tolka/pkg/repository"
)

func SetupRoutes(cfg *config.Config, version, buildTime string, repo *repository.Repository, svc *booking.Service) *mux.Router {
	r := mux.NewRouter()

	// Middleware chain
	r.Use(LoggingMiddleware)
	r.Use(CORSMiddleware)
	r.Use(RecoveryMiddleware)

	// Create handlers
	systemHandler := &SystemHandler{}
	authHandler := NewAuthHandler(repo.Users, cfg.JWTSecret, cfg.TokenDuration)
	bookingsHandler := NewBookingsHandler(svc)

	// Open endpoints
	r.HandleFunc("/version", systemHandler.VersionHandler(version, buildTime)).Methods("GET")
	r.HandleFunc("/health", systemHandler.HealthHandler).Methods("GET")
	r.HandleFunc("/v1/auth/signup", authHandler.Signup).Methods("POST")
	r.HandleFunc("/v1/auth/signin", authHandler.Signin).Methods("POST")

	// API v1 Protected routes
	apiV1 := r.PathPrefix("/v1").Subrouter()
	apiV1.Use(JWTAuthMiddlewareWithSecret(cfg.JWTSecret))

	// Auth endpoints
	authV1 := apiV1.PathPrefix("/auth").Subrouter()
	authV1.HandleFunc("/signout", authHandler.Signout).Methods("POST")

	// Booking endpoints
	apiV1.HandleFunc("/bookings", bookingsHandler.Create).Methods("POST")
	apiV1.HandleFunc("/bookings/accept", bookingsHandler.Accept).Methods("POST")
	apiV1.HandleFunc("/bookings/potential", bookingsHandler.Potential).Methods("GET")
	apiV1.HandleFunc("/bookings/mine", bookingsHandler.Mine).Methods("GET")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}", bookingsHandler.Update).Methods("PUT")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/email", bookingsHandler.StoreEmail).Methods("POST")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/accept", bookingsHandler.AcceptWithID).Methods("POST")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/cancel", bookingsHandler.Cancel).Methods("POST")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/end", bookingsHandler.End).Methods("POST")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/not-carried-out", bookingsHandler.NotCarriedOut).Methods("POST")
	apiV1.HandleFunc("/bookings/{id:[0-9]+}/reopen", bookingsHandler.Reopen).Methods("POST")

	return r
}
