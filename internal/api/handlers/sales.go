package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/salescast/internal/cache"
	"github.com/wonny/salescast/internal/contracts"
	"github.com/wonny/salescast/pkg/logger"
	"github.com/wonny/salescast/pkg/redis"
)

// Store is the read side of the sales repository
type Store interface {
	ListBusinesses(ctx context.Context) ([]string, error)
	GetInputs(ctx context.Context, businessID string) ([]contracts.InputRecord, error)
	GetForecasts(ctx context.Context, businessID string) ([]contracts.ForecastRecord, error)
}

// Fetcher is a read-through cache
type Fetcher interface {
	Fetch(ctx context.Context, key string, dest interface{}, load cache.Loader) error
}

// SalesRecord is one historical week in responses
type SalesRecord struct {
	Date       string  `json:"date"`
	Sales      float64 `json:"sales"`
	BusinessID string  `json:"business_id,omitempty"`
}

// ForecastRecord is one forecast week in responses
type ForecastRecord struct {
	Date           string  `json:"date"`
	PredictedSales float64 `json:"predicted_sales"`
	LowerBound     float64 `json:"lower_bound"`
	UpperBound     float64 `json:"upper_bound"`
	BusinessID     string  `json:"business_id,omitempty"`
	GeneratedAt    *string `json:"generated_at,omitempty"`
}

// SalesDataResponse holds both series of one business
type SalesDataResponse struct {
	BusinessID           string           `json:"business_id"`
	InputSales           []SalesRecord    `json:"input_sales"`
	ForecastSales        []ForecastRecord `json:"forecast_sales"`
	TotalInputRecords    int              `json:"total_input_records"`
	TotalForecastRecords int              `json:"total_forecast_records"`
}

// SalesHandler serves stored input and forecast rows
// ⭐ SSOT: 조회 API 핸들러는 이 구조체에서만
type SalesHandler struct {
	store  Store
	cache  Fetcher
	logger *logger.Logger
}

// NewSalesHandler creates a new sales handler
func NewSalesHandler(store Store, cache Fetcher, log *logger.Logger) *SalesHandler {
	return &SalesHandler{
		store:  store,
		cache:  cache,
		logger: log,
	}
}

// ListBusinesses returns every known business id
// GET /api/businesses
func (h *SalesHandler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	var ids []string
	err := h.cache.Fetch(r.Context(), redis.BusinessesKey(), &ids, func(ctx context.Context) (interface{}, bool, error) {
		ids, err := h.store.ListBusinesses(ctx)
		if ids == nil {
			ids = []string{}
		}
		return ids, len(ids) > 0, err
	})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list businesses")
		respondError(w, http.StatusInternalServerError, "database error")
		return
	}

	respondJSON(w, http.StatusOK, ids)
}

// GetInputSales returns the historical rows of a business
// GET /api/sales/{business_id}/input
func (h *SalesHandler) GetInputSales(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessIDFrom(w, r)
	if !ok {
		return
	}

	inputs, err := h.inputs(r.Context(), businessID)
	if err != nil {
		h.storeError(w, businessID, err)
		return
	}
	if len(inputs) == 0 {
		respondError(w, http.StatusNotFound, "No input sales data found for business_id: "+businessID)
		return
	}

	respondJSON(w, http.StatusOK, inputs)
}

// GetForecastSales returns the forecast rows of a business
// GET /api/sales/{business_id}/forecast
func (h *SalesHandler) GetForecastSales(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessIDFrom(w, r)
	if !ok {
		return
	}

	forecasts, err := h.forecasts(r.Context(), businessID)
	if err != nil {
		h.storeError(w, businessID, err)
		return
	}
	if len(forecasts) == 0 {
		respondError(w, http.StatusNotFound, "No forecast sales data found for business_id: "+businessID)
		return
	}

	respondJSON(w, http.StatusOK, forecasts)
}

// GetSalesData returns both series with totals; 404 only when both are empty
// GET /api/sales/{business_id}
func (h *SalesHandler) GetSalesData(w http.ResponseWriter, r *http.Request) {
	businessID, ok := businessIDFrom(w, r)
	if !ok {
		return
	}

	inputs, err := h.inputs(r.Context(), businessID)
	if err != nil {
		h.storeError(w, businessID, err)
		return
	}
	forecasts, err := h.forecasts(r.Context(), businessID)
	if err != nil {
		h.storeError(w, businessID, err)
		return
	}

	if len(inputs) == 0 && len(forecasts) == 0 {
		respondError(w, http.StatusNotFound, "No sales data found for business_id: "+businessID)
		return
	}

	respondJSON(w, http.StatusOK, SalesDataResponse{
		BusinessID:           businessID,
		InputSales:           inputs,
		ForecastSales:        forecasts,
		TotalInputRecords:    len(inputs),
		TotalForecastRecords: len(forecasts),
	})
}

func (h *SalesHandler) inputs(ctx context.Context, businessID string) ([]SalesRecord, error) {
	out := []SalesRecord{}
	err := h.cache.Fetch(ctx, redis.SalesKey(businessID, "input"), &out, func(ctx context.Context) (interface{}, bool, error) {
		rows, err := h.store.GetInputs(ctx, businessID)
		if err != nil {
			return nil, false, err
		}
		return toSalesRecords(rows), len(rows) > 0, nil
	})
	return out, err
}

func (h *SalesHandler) forecasts(ctx context.Context, businessID string) ([]ForecastRecord, error) {
	out := []ForecastRecord{}
	err := h.cache.Fetch(ctx, redis.SalesKey(businessID, "forecast"), &out, func(ctx context.Context) (interface{}, bool, error) {
		rows, err := h.store.GetForecasts(ctx, businessID)
		if err != nil {
			return nil, false, err
		}
		return toForecastRecords(rows), len(rows) > 0, nil
	})
	return out, err
}

func (h *SalesHandler) storeError(w http.ResponseWriter, businessID string, err error) {
	h.logger.WithError(err).WithFields(map[string]interface{}{
		"business_id": businessID,
	}).Error("Failed to query sales data")
	respondError(w, http.StatusInternalServerError, "database error")
}

func businessIDFrom(w http.ResponseWriter, r *http.Request) (string, bool) {
	businessID := strings.TrimSpace(mux.Vars(r)["business_id"])
	if businessID == "" {
		respondError(w, http.StatusBadRequest, "business_id is required")
		return "", false
	}
	return businessID, true
}

func toSalesRecords(rows []contracts.InputRecord) []SalesRecord {
	out := make([]SalesRecord, len(rows))
	for i, r := range rows {
		out[i] = SalesRecord{
			Date:       r.Date.Format(contracts.DateLayout),
			Sales:      r.Sales,
			BusinessID: r.BusinessID,
		}
	}
	return out
}

func toForecastRecords(rows []contracts.ForecastRecord) []ForecastRecord {
	out := make([]ForecastRecord, len(rows))
	for i, r := range rows {
		out[i] = ForecastRecord{
			Date:           r.Date.Format(contracts.DateLayout),
			PredictedSales: r.PredictedSales,
			LowerBound:     r.LowerBound,
			UpperBound:     r.UpperBound,
			BusinessID:     r.BusinessID,
		}
		if r.GeneratedAt != nil {
			ts := r.GeneratedAt.UTC().Format(time.RFC3339)
			out[i].GeneratedAt = &ts
		}
	}
	return out
}
