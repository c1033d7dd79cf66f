package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/leaftrade/pkg/listing"
	"github.com/uhyunpark/leaftrade/pkg/tracker"
	"github.com/uhyunpark/leaftrade/pkg/trade"
	"github.com/uhyunpark/leaftrade/pkg/wallet"
)

// Wallet is the connect button.
type Wallet interface {
	Status() wallet.Status
	Connect() (wallet.Status, error)
	Disconnect() wallet.Status
}

// Trader submits contract writes.
type Trader interface {
	CreateTrade(ctx context.Context, form trade.Form) (tracker.Snapshot, error)
	ExecuteTrade(ctx context.Context, tradeID string) (tracker.Snapshot, error)
}

// Journal serves submissions that are no longer in memory.
type Journal interface {
	LoadSubmission(id string) (tracker.Snapshot, error)
}

type Deps struct {
	Listings    *listing.Store
	Watchlist   *listing.Watchlist
	Wallet      Wallet
	Trades      Trader
	Registry    *tracker.Registry
	Journal     Journal // optional
	CORSOrigins []string
	Logger      *zap.SugaredLogger
}

// Server handles REST API and WebSocket connections
type Server struct {
	deps   Deps
	router *mux.Router
	hub    *Hub
	logger *zap.SugaredLogger
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}
	if deps.Watchlist == nil {
		deps.Watchlist = listing.NewWatchlist()
	}
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		hub:    NewHub(deps.Logger),
		logger: deps.Logger,
	}
	s.setupRoutes()
	return s
}

// Hub is exposed so the caller can register its observer on the registry.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Listings. overview is registered before {id} so it is not taken as an ID.
	api.HandleFunc("/listings", s.handleGetListings).Methods("GET")
	api.HandleFunc("/listings/overview", s.handleGetOverview).Methods("GET")
	api.HandleFunc("/listings/{id}", s.handleGetListing).Methods("GET")
	api.HandleFunc("/listings/{id}/quote", s.handleGetQuote).Methods("GET")
	api.HandleFunc("/listings/{id}/watch", s.handleWatch).Methods("POST")
	api.HandleFunc("/listings/{id}/watch", s.handleUnwatch).Methods("DELETE")

	// Wallet
	api.HandleFunc("/wallet", s.handleGetWallet).Methods("GET")
	api.HandleFunc("/wallet/connect", s.handleConnectWallet).Methods("POST")
	api.HandleFunc("/wallet/disconnect", s.handleDisconnectWallet).Methods("POST")

	// Contract writes
	api.HandleFunc("/trades", s.handleCreateTrade).Methods("POST")
	api.HandleFunc("/trades/{tradeId}/execute", s.handleExecuteTrade).Methods("POST")

	// Transaction status
	api.HandleFunc("/submissions", s.handleListSubmissions).Methods("GET")
	api.HandleFunc("/submissions/{id}", s.handleGetSubmission).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the router wrapped in CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   s.deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler(s.router)
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ==============================
// Listing Handlers
// ==============================

func (s *Server) handleGetListings(w http.ResponseWriter, r *http.Request) {
	items := s.deps.Listings.All()
	response := make([]ListingDetail, len(items))
	for i, it := range items {
		response[i] = s.detail(it)
	}
	respondJSON(w, response)
}

func (s *Server) handleGetOverview(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.deps.Listings.Overview())
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	item, err := s.deps.Listings.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, "listing not found", err.Error())
		return
	}
	respondJSON(w, s.detail(item))
}

func (s *Server) handleGetQuote(w http.ResponseWriter, r *http.Request) {
	q, err := s.deps.Listings.Quote(mux.Vars(r)["id"], r.URL.Query().Get("quantity"))
	switch {
	case errors.Is(err, listing.ErrNotFound):
		respondError(w, http.StatusNotFound, "listing not found", err.Error())
		return
	case errors.Is(err, listing.ErrNotTradeable):
		respondError(w, http.StatusConflict, "listing not tradeable", err.Error())
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "quote failed", err.Error())
		return
	}
	respondJSON(w, QuoteResponse{Quote: q, Summary: q.Summary()})
}

func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	s.setWatch(w, mux.Vars(r)["id"], true)
}

func (s *Server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	s.setWatch(w, mux.Vars(r)["id"], false)
}

func (s *Server) setWatch(w http.ResponseWriter, id string, watch bool) {
	item, err := s.deps.Listings.Get(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "listing not found", err.Error())
		return
	}
	if watch {
		s.deps.Watchlist.Watch(item.ID)
	} else {
		s.deps.Watchlist.Unwatch(item.ID)
	}
	s.logger.Infow("listing_watch_changed", "listing", item.ID, "watching", watch)

	respondJSON(w, WatchResponse{
		ListingID: item.ID,
		Watching:  watch,
		Progress:  listing.ProgressOf(item.Status),
		Watchlist: s.deps.Watchlist.IDs(),
	})
}

func (s *Server) detail(it listing.Item) ListingDetail {
	return ListingDetail{
		Item:     it,
		Progress: listing.ProgressOf(it.Status),
		Watching: s.deps.Watchlist.IsWatching(it.ID),
	}
}

// ==============================
// Wallet Handlers
// ==============================

func (s *Server) handleGetWallet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.deps.Wallet.Status())
}

func (s *Server) handleConnectWallet(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Wallet.Connect()
	if err != nil {
		respondError(w, http.StatusConflict, "wallet unavailable", err.Error())
		return
	}
	respondJSON(w, st)
}

func (s *Server) handleDisconnectWallet(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.deps.Wallet.Disconnect())
}

// ==============================
// Trade Handlers
// ==============================

func (s *Server) handleCreateTrade(w http.ResponseWriter, r *http.Request) {
	var req CreateTradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	snap, err := s.deps.Trades.CreateTrade(r.Context(), trade.Form{
		Amount:      req.Amount,
		Price:       req.Price,
		TradeType:   req.TradeType,
		AssetSymbol: req.AssetSymbol,
	})
	s.respondSubmission(w, snap, err)
}

func (s *Server) handleExecuteTrade(w http.ResponseWriter, r *http.Request) {
	snap, err := s.deps.Trades.ExecuteTrade(r.Context(), mux.Vars(r)["tradeId"])
	s.respondSubmission(w, snap, err)
}

func (s *Server) respondSubmission(w http.ResponseWriter, snap tracker.Snapshot, err error) {
	var se *trade.SubmissionError
	switch {
	case err == nil:
		respondStatus(w, http.StatusAccepted, SubmissionResponse{Submission: snap})
	case errors.Is(err, trade.ErrWalletNotConnected):
		respondError(w, http.StatusConflict, "wallet not connected", err.Error())
	case trade.IsValidation(err):
		respondError(w, http.StatusBadRequest, "invalid trade", err.Error())
	case errors.As(err, &se):
		respondStatus(w, http.StatusBadGateway, SubmissionErrorResponse{
			ErrorResponse: ErrorResponse{Error: "submission rejected", Message: se.Err.Error()},
			Submission:    snap,
		})
	default:
		s.logger.Errorw("trade_handler_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

// ==============================
// Submission Handlers
// ==============================

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.deps.Registry.List())
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if t, err := s.deps.Registry.Get(id); err == nil {
		respondJSON(w, SubmissionResponse{Submission: t.Snapshot()})
		return
	}
	if s.deps.Journal != nil {
		snap, err := s.deps.Journal.LoadSubmission(id)
		if err == nil {
			respondJSON(w, SubmissionResponse{Submission: snap})
			return
		}
		if !errors.Is(err, tracker.ErrNotFound) {
			s.logger.Errorw("journal_read_failed", "submission_id", id, "err", err)
			respondError(w, http.StatusInternalServerError, "journal read failed", err.Error())
			return
		}
	}
	respondError(w, http.StatusNotFound, "submission not found", id)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondStatus(w, http.StatusOK, data)
}

func respondStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	respondStatus(w, status, ErrorResponse{
		Error:   error,
		Message: message,
	})
}
