// Package oncopainel exposes the tabnet query engine over a small
// read-only JSON API for dashboard consumers that don't link the Go
// package directly.
package oncopainel

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"oncopainel-backend/lib/icd"
	"oncopainel-backend/lib/scrapers/tabnet"
	"oncopainel-backend/lib/telemetry"

	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("oncopainel.services.oncopainel")

type Service struct {
	client *tabnet.Client
}

func NewService(client *tabnet.Client) Service {
	return Service{client: client}
}

func (s Service) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /api/v1/query", s.handleQuery)
	mux.HandleFunc("GET /api/v1/catalog/regions", s.handleRegions)
	mux.HandleFunc("GET /api/v1/catalog/age-groups", s.handleAgeGroups)
	mux.HandleFunc("GET /api/v1/catalog/diagnoses", s.handleDiagnoses)
}

func (s Service) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type queryResponse struct {
	Mode      string                        `json:"mode"`
	Regions   map[string]tabnet.RegionCount `json:"regions,omitempty"`
	Fragments map[string]*tabnet.Fragment   `json:"fragments,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "handleQuery")
	defer span.End()

	params := r.URL.Query()

	year, err := strconv.Atoi(params.Get("year"))
	if err != nil {
		writeJson(w, http.StatusBadRequest, errorResponse{Error: "year must be an integer"})
		return
	}

	query := tabnet.Query{
		Year:      year,
		Sex:       params.Get("sex"),
		AgeGroup:  params.Get("age_group"),
		Diagnosis: params.Get("diagnosis"),
		Region:    params.Get("region"),
		Parallel:  strings.EqualFold(params.Get("parallel"), "true"),
	}
	if raw := params.Get("max_workers"); raw != "" {
		workers, err := strconv.Atoi(raw)
		if err != nil {
			writeJson(w, http.StatusBadRequest, errorResponse{Error: "max_workers must be an integer"})
			return
		}
		query.MaxWorkers = workers
	}

	res, err := s.client.Query(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")

		var invalid *tabnet.InvalidArgumentError
		if errors.As(err, &invalid) {
			writeJson(w, http.StatusBadRequest, errorResponse{Error: invalid.Error()})
			return
		}
		slog.ErrorContext(ctx, "upstream query failed", "err", err)
		writeJson(w, http.StatusBadGateway, errorResponse{Error: err.Error()})
		return
	}

	writeJson(w, http.StatusOK, queryResponse{
		Mode:      res.Mode.String(),
		Regions:   res.Regions,
		Fragments: res.Fragments,
	})
}

type regionEntry struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

func (s Service) handleRegions(w http.ResponseWriter, r *http.Request) {
	entries := make([]regionEntry, 0, len(tabnet.Regions))
	for _, region := range tabnet.Regions {
		entries = append(entries, regionEntry{Code: region.Code, Name: region.Name})
	}
	writeJson(w, http.StatusOK, entries)
}

func (s Service) handleAgeGroups(w http.ResponseWriter, r *http.Request) {
	writeJson(w, http.StatusOK, tabnet.AgeGroupLabels())
}

type diagnosisEntry struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

func (s Service) handleDiagnoses(w http.ResponseWriter, r *http.Request) {
	entries := make([]diagnosisEntry, 0, len(tabnet.DiagnosisCodes))
	for _, code := range tabnet.DiagnosisCodes {
		entries = append(entries, diagnosisEntry{
			Code:        code,
			Description: icd.Describe(code),
		})
	}
	writeJson(w, http.StatusOK, entries)
}

func writeJson(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response body", "err", err)
	}
}
