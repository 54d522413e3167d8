// Package api serves the account and trip HTTP interface consumed by the
// cockpit and its setup screens.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"safedrive-monitor/internal/db"
	"safedrive-monitor/internal/models"
)

// Server represents the API server
type Server struct {
	db     *db.Database
	router *mux.Router
	log    *slog.Logger
}

// NewServer creates a new API server
func NewServer(database *db.Database, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		db:     database,
		router: mux.NewRouter(),
		log:    log,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Health check
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")

	// Auth endpoints
	s.router.HandleFunc("/api/v1/auth/register", s.handleRegister).Methods("POST")
	s.router.HandleFunc("/api/v1/auth/login", s.handleLogin).Methods("POST")

	// User endpoints
	s.router.HandleFunc("/api/v1/users/{id}", s.handleGetUser).Methods("GET")
	s.router.HandleFunc("/api/v1/users/update", s.handleUpdateUser).Methods("POST")

	// Vehicle endpoints
	s.router.HandleFunc("/api/v1/vehicles", s.handleAddVehicle).Methods("POST")
	s.router.HandleFunc("/api/v1/vehicles", s.handleDeleteVehicle).Methods("DELETE")

	// Trip endpoints
	s.router.HandleFunc("/api/v1/trips", s.handleSubmitTrip).Methods("POST")

	// Stats endpoint
	s.router.HandleFunc("/api/v1/stats", s.handleStats).Methods("GET")

	// Add middleware
	s.router.Use(s.loggingMiddleware)
	s.router.Use(jsonMiddleware)
}

// Router returns the configured router
func (s *Server) Router() *mux.Router {
	return s.router
}

// Middleware
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Info("request", "method", r.Method, "path", r.URL.Path, "elapsed", time.Since(start))
	})
}

func jsonMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// Response helpers
type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: true, Data: data})
}

func respondError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiResponse{Success: false, Error: message})
}

// statusFor maps store errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, db.ErrDuplicate):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrBadPassword):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// Request bodies
type registerRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Phone  string `json:"phone"`
}

type vehicleRequest struct {
	UserID string `json:"user_id"`
	Plate  string `json:"plate"`
}

// Handlers
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.Password == "" || req.Name == "" {
		respondError(w, http.StatusBadRequest, "user_id, password, and name are required")
		return
	}

	if err := s.db.RegisterUser(req.UserID, req.Password, req.Name); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	user, err := s.db.GetUser(req.UserID)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	user, err := s.db.Authenticate(req.UserID, req.Password)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	user, err := s.db.GetUser(vars["id"])
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	user, err := s.db.UpdateUser(req.UserID, req.Name, req.Phone)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.UserID == "" || req.Plate == "" {
		respondError(w, http.StatusBadRequest, "user_id and plate are required")
		return
	}

	if err := s.db.AddVehicle(req.UserID, req.Plate); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"plate": req.Plate})
}

func (s *Server) handleDeleteVehicle(w http.ResponseWriter, r *http.Request) {
	var req vehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if err := s.db.DeleteVehicle(req.UserID, req.Plate); err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"deleted": req.Plate})
}

func (s *Server) handleSubmitTrip(w http.ResponseWriter, r *http.Request) {
	var sub models.TripSubmission
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if sub.UserID == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	newScore, err := s.db.SubmitTrip(sub)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, models.TripResult{Status: "success", NewScore: newScore})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.db.GetStats()
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
