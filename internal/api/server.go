package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dapmarket/marketplace-ledger/internal/entity"
	"github.com/dapmarket/marketplace-ledger/internal/ledger"
	"github.com/dapmarket/marketplace-ledger/internal/repository"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

type Server struct {
	ledger      *ledger.Ledger
	eventRepo   repository.EventRepository
	listingRepo repository.ListingRepository
}

// NewServer wires the HTTP surface. The repositories may be nil when no
// archive is configured; their routes are then not registered.
func NewServer(l *ledger.Ledger, eventRepo repository.EventRepository, listingRepo repository.ListingRepository) Server {
	return Server{l, eventRepo, listingRepo}
}

func (s Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/listings", s.handleCreateListing).Methods("POST")
	r.HandleFunc("/listings/{id}", s.handleGetListing).Methods("GET")
	r.HandleFunc("/listings/{id}/quote", s.handleQuote).Methods("GET")
	r.HandleFunc("/listings/{id}/purchase", s.handlePurchase).Methods("POST")

	if s.eventRepo != nil {
		r.HandleFunc("/listings/{id}/history", s.handleHistory).Methods("GET")
	}
	if s.listingRepo != nil {
		r.HandleFunc("/sellers/{seller}/listings", s.handleSellerListings).Methods("GET")
	}

	r.NotFoundHandler = notFoundHandler()

	return r
}

type createListingRequest struct {
	Contract string `json:"contract"`
	TokenId  uint64 `json:"tokenId"`
	Price    int64  `json:"price"`
	Seller   string `json:"seller"`
}

type createListingResponse struct {
	ListingId uint64 `json:"listingId"`
}

type purchaseRequest struct {
	Buyer    string `json:"buyer"`
	Remitted int64  `json:"remitted"`
}

type quoteResponse struct {
	ListingId   uint64 `json:"listingId"`
	TotalCharge int64  `json:"totalCharge"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "OK")
}

func (s Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	var req createListingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	asset := entity.AssetRef{Contract: req.Contract, TokenId: req.TokenId}
	seller := entity.NormalizeAccount(req.Seller)

	id, err := s.ledger.CreateListing(r.Context(), asset, req.Price, seller)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJson(w, http.StatusCreated, createListingResponse{ListingId: id})
}

func (s Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, err := getListingId(r)
	if err != nil {
		writeLedgerError(w, ledger.ErrListingNotFound)
		return
	}

	listing, err := s.ledger.GetListing(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJson(w, http.StatusOK, listing)
}

func (s Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	id, err := getListingId(r)
	if err != nil {
		writeLedgerError(w, ledger.ErrListingNotFound)
		return
	}

	total, err := s.ledger.QuoteTotalCharge(id)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	writeJson(w, http.StatusOK, quoteResponse{ListingId: id, TotalCharge: total})
}

func (s Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	id, err := getListingId(r)
	if err != nil {
		writeLedgerError(w, ledger.ErrListingNotFound)
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	buyer := entity.NormalizeAccount(req.Buyer)

	if err := s.ledger.Purchase(r.Context(), id, buyer, req.Remitted); err != nil {
		writeLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := getListingId(r)
	if err != nil {
		writeLedgerError(w, ledger.ErrListingNotFound)
		return
	}

	events, err := s.eventRepo.GetEventsByListing(id)
	if err != nil {
		zap.L().With(zap.Error(err), zap.Uint64("listingId", id)).Error("Api: Failed to load listing history")
		writeError(w, http.StatusInternalServerError, "history unavailable")
		return
	}

	writeJson(w, http.StatusOK, events)
}

func (s Server) handleSellerListings(w http.ResponseWriter, r *http.Request) {
	seller := entity.NormalizeAccount(mux.Vars(r)["seller"])

	listings, err := s.listingRepo.GetListingsBySeller(seller)
	if err != nil {
		zap.L().With(zap.Error(err), zap.String("seller", seller)).Error("Api: Failed to load seller listings")
		writeError(w, http.StatusInternalServerError, "listings unavailable")
		return
	}

	writeJson(w, http.StatusOK, listings)
}

// getListingId parses the id path segment. Anything that does not parse
// as a positive integer is treated the same as an unknown listing.
func getListingId(r *http.Request) (uint64, error) {
	id, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, errors.New("invalid parameters")
	}

	return strconv.ParseUint(id, 10, 64)
}

func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrListingNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrAlreadySold):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledger.ErrInsufficientPayment):
		writeError(w, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, ledger.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrCustody):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJson(w, status, errorResponse{Error: message})
}

func writeJson(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().With(zap.Error(err)).Error("Api: Failed to encode response")
	}
}

func notFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "page not found")
	})
}
