package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/salescast/internal/api/handlers"
	"github.com/wonny/salescast/internal/metrics"
	"github.com/wonny/salescast/pkg/config"
	"github.com/wonny/salescast/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	cfg config.APIConfig,
	sales *handlers.SalesHandler,
	health *handlers.HealthHandler,
	m *metrics.Metrics,
	log *logger.Logger,
) (http.Handler, error) {
	r := mux.NewRouter()

	// OPTIONS is answered by corsMiddleware
	r.HandleFunc("/", health.Root).Methods("GET", "OPTIONS")
	r.Handle("/metrics", m.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", health.Health).Methods("GET", "OPTIONS")
	api.HandleFunc("/businesses", sales.ListBusinesses).Methods("GET", "OPTIONS")
	api.HandleFunc("/sales/{business_id}", sales.GetSalesData).Methods("GET", "OPTIONS")
	api.HandleFunc("/sales/{business_id}/input", sales.GetInputSales).Methods("GET", "OPTIONS")
	api.HandleFunc("/sales/{business_id}/forecast", sales.GetForecastSales).Methods("GET", "OPTIONS")

	limiter, err := newClientLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	if err != nil {
		return nil, err
	}

	// Apply middleware, outermost first
	r.Use(recoveryMiddleware(log))
	r.Use(loggingMiddleware(log, m))
	r.Use(corsMiddleware(cfg.AllowedOrigins))
	api.Use(rateLimitMiddleware(limiter, log))

	return r, nil
}
