// Package apitest runs an in-process fake of the remote livestock service
// for integration tests. It speaks the same wire contract as the production
// API: bearer plus session-token auth, tenant-aware login, relation-expanded
// reference searches, and movement creation.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/devonagro/herdsync/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// CreatedMovement is one movement the fake received, with the id it
// assigned.
type CreatedMovement struct {
	MovementID int64
	FarmID     int64
	PastureID  int64
	EventID    int64
	Date       string
	Comment    string
}

// Server is a fake remote API backed by httptest. Zero value is not usable;
// construct with New.
type Server struct {
	*httptest.Server

	Farms          []types.Farm
	Events         []types.Event
	Breeds         []types.Breed
	AnimalTypes    []types.AnimalType
	AgeGroups      []types.AgeGroup
	UnitOfMeasures []types.UnitOfMeasure

	mu          sync.Mutex
	password    string
	accessToken string
	refreshTok  string
	tokenSeq    int
	nextMoveID  int64
	created     []CreatedMovement
	failCreates int
	expireToken bool
	searchCalls map[string]int
}

// New starts a fake service accepting the given credentials. Callers own
// Close.
func New(login, password string) *Server {
	s := &Server{
		password:    password,
		accessToken: "access-1",
		refreshTok:  "refresh-1",
		tokenSeq:    1,
		nextMoveID:  1000,
		searchCalls: map[string]int{},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/refresh", s.handleRefresh)
	r.Head("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/app/user/info", s.handleUserInfo)
		r.Get("/farms/search", s.search("farms", func() any { return s.Farms }))
		r.Get("/events/search", s.search("events", func() any { return s.Events }))
		r.Get("/breeds/search", s.search("breeds", func() any { return s.Breeds }))
		r.Get("/animal-types/search", s.search("animalTypes", func() any { return s.AnimalTypes }))
		r.Get("/age-groups/search", s.search("ageGroups", func() any { return s.AgeGroups }))
		r.Get("/unit-of-measures/search", s.search("unitOfMeasures", func() any { return s.UnitOfMeasures }))
		r.Post("/movements", s.handleCreateMovement)
		r.Get("/movements/home-dashboard", s.handleDashboard)
	})

	s.Server = httptest.NewServer(r)
	return s
}

// Created returns the movements the fake accepted, in arrival order.
func (s *Server) Created() []CreatedMovement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CreatedMovement{}, s.created...)
}

// SearchCalls returns how many times the given data-set was fetched.
func (s *Server) SearchCalls(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.searchCalls[name]
}

// FailNextCreates makes the next n movement creations return a 500.
func (s *Server) FailNextCreates(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreates = n
}

// ExpireToken invalidates the current access token so the next
// authenticated request draws a 401 and forces a refresh.
func (s *Server) ExpireToken() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireToken = true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Login    string `json:"login"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.Password != s.password {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	writeJSON(w, types.LoginResponse{
		Token:        s.accessToken,
		RefreshToken: s.refreshTok,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if req.RefreshToken != s.refreshTok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	s.tokenSeq++
	s.accessToken = "access-" + strconv.Itoa(s.tokenSeq)
	s.refreshTok = "refresh-" + strconv.Itoa(s.tokenSeq)
	s.expireToken = false

	writeJSON(w, map[string]string{
		"token":        s.accessToken,
		"refreshToken": s.refreshTok,
	})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"userxId":  42,
		"name":     "Field Agent",
		"email":    "agent@example.com",
		"username": "agent",
	})
}

func (s *Server) search(name string, data func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.searchCalls[name]++
		s.mu.Unlock()
		writeJSON(w, data())
	}
}

func (s *Server) handleCreateMovement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date      string `json:"date"`
		FarmID    int64  `json:"farmId"`
		PastureID int64  `json:"pastureId"`
		EventID   int64  `json:"eventId"`
		Comment   string `json:"comment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCreates > 0 {
		s.failCreates--
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.nextMoveID++
	s.created = append(s.created, CreatedMovement{
		MovementID: s.nextMoveID,
		FarmID:     req.FarmID,
		PastureID:  req.PastureID,
		EventID:    req.EventID,
		Date:       req.Date,
		Comment:    req.Comment,
	})

	writeJSON(w, map[string]int64{"movementId": s.nextMoveID})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	total := len(s.created)
	s.mu.Unlock()
	writeJSON(w, map[string]any{"totalMovements": total})
}

// requireToken enforces the paired bearer and session-token headers the
// production service checks.
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		want := s.accessToken
		expired := s.expireToken
		s.mu.Unlock()

		bearer := r.Header.Get("Authorization")
		session := r.Header.Get("X-Session-Token")
		if expired || bearer != "Bearer "+want || session != want {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
