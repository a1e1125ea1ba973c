package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hashicorp/go-multierror"
	"github.com/liamcoop/formlogic/conditions"
	"github.com/liamcoop/formlogic/forms"
	"github.com/liamcoop/formlogic/formula"
	"github.com/liamcoop/formlogic/internal/logger"
)

func (s *Server) storage() string {
	if s.db != nil {
		return "postgres"
	}
	return "memory"
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "healthy",
		Storage:        s.storage(),
		Forms:          len(s.registry.List()),
		CachedFormulas: s.formulas.Len(),
		OptionEvents:   OptionEvents{Loaded: s.loaded.Load(), Failed: s.failed.Load()},
		Counters:       logger.Snapshot(),
	}

	if s.db != nil {
		if err := s.db.PingContext(r.Context()); err != nil {
			resp.Status = "unhealthy"
			resp.Error = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEvaluateFormula(w http.ResponseWriter, r *http.Request) {
	var req EvaluateFormulaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.Formula == "" {
		respondError(w, http.StatusBadRequest, "formula is required", nil)
		return
	}

	precision := formula.DefaultPrecision
	if req.Precision != nil {
		precision = *req.Precision
	}

	// Ad-hoc formulas are parsed per request and kept out of the engine cache.
	var resp EvaluateFormulaResponse
	v, err := formula.Calculate(req.Formula, req.Values, precision, formula.DefaultOptions())
	if err != nil {
		logger.FormulaFailures.Add(1)
		resp.Error = err.Error()
		respondJSON(w, http.StatusOK, resp)
		return
	}

	resp.Value = &v
	if req.Format != nil {
		resp.Display = formula.FormatValue(&v, req.Format.Kind, precision, req.Format.Prefix, req.Format.Suffix)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleFormulaFields(w http.ResponseWriter, r *http.Request) {
	var req FormulaFieldsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	respondJSON(w, http.StatusOK, FormulaFieldsResponse{Fields: formula.ExtractFieldNames(req.Formula)})
}

func (s *Server) handleEvaluateConditions(w http.ResponseWriter, r *http.Request) {
	var req EvaluateConditionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	categories := make(map[string]conditions.Category, len(req.Types))
	for field, fieldType := range req.Types {
		categories[field] = conditions.CategoryForFieldType(fieldType)
	}

	respondJSON(w, http.StatusOK, EvaluateConditionsResponse{
		Result:       s.conditions.EvaluateGroup(req.Group, conditions.MapLookup(req.Values, categories)),
		Dependencies: conditions.Dependencies(req.Group),
	})
}

func (s *Server) handleOperators(w http.ResponseWriter, r *http.Request) {
	category, ok := conditions.ParseCategory(chi.URLParam(r, "category"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown category", nil)
		return
	}
	respondJSON(w, http.StatusOK, OperatorsResponse{
		Category:  category,
		Operators: conditions.OperatorsFor(category),
	})
}

func (s *Server) handleOperatorTable(w http.ResponseWriter, r *http.Request) {
	categories := conditions.Categories()
	resp := OperatorTableResponse{Categories: make([]OperatorsResponse, 0, len(categories))}
	for _, category := range categories {
		resp.Categories = append(resp.Categories, OperatorsResponse{
			Category:  category,
			Operators: conditions.OperatorsFor(category),
		})
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, FormsListResponse{Forms: s.registry.List()})
}

func (s *Server) handlePutForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")

	var raw map[string]any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	form, err := forms.DecodeForm(raw)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid form definition", err)
		return
	}
	if form.ID != "" && form.ID != formID {
		respondError(w, http.StatusBadRequest, "form id does not match the URL", nil)
		return
	}
	form.ID = formID

	if err := s.registry.Put(form); err != nil {
		respondValidation(w, err)
		return
	}

	deps, _ := s.registry.Dependencies(formID)
	respondJSON(w, http.StatusOK, FormResponse{Form: form, Dependencies: deps})
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")

	form, err := s.registry.Get(formID)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	deps, _ := s.registry.Dependencies(formID)
	respondJSON(w, http.StatusOK, FormResponse{Form: form, Dependencies: deps})
}

func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.Delete(chi.URLParam(r, "formId")); err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEvaluateForm(w http.ResponseWriter, r *http.Request) {
	var req EvaluateFormRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	start := time.Now()
	states, err := s.registry.Evaluate(r.Context(), chi.URLParam(r, "formId"), req.Values)
	if err != nil {
		respondRegistryError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, EvaluateFormResponse{
		Fields:         states,
		EvaluationTime: time.Since(start).String(),
	})
}

func (s *Server) handleFieldOptions(w http.ResponseWriter, r *http.Request) {
	opts, err := s.registry.LoadOptions(r.Context(),
		chi.URLParam(r, "formId"), chi.URLParam(r, "field"), r.URL.Query().Get("parent"))
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, OptionsResponse{Options: opts})
}

func (s *Server) handleInvalidateOptions(w http.ResponseWriter, r *http.Request) {
	err := s.registry.InvalidateOptions(r.Context(), chi.URLParam(r, "formId"), chi.URLParam(r, "field"))
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Helper functions
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Warn("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	respondJSON(w, status, resp)
}

func respondRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, forms.ErrFormNotFound), errors.Is(err, forms.ErrFieldNotFound):
		respondError(w, http.StatusNotFound, "not found", err)
	case errors.Is(err, forms.ErrNoOptions):
		respondError(w, http.StatusBadRequest, "field has no option source", err)
	default:
		respondError(w, http.StatusInternalServerError, "internal error", err)
	}
}

// respondValidation lists each validation problem separately.
func respondValidation(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: "form validation failed"}
	var merr *multierror.Error
	if errors.As(err, &merr) {
		for _, e := range merr.Errors {
			resp.Errors = append(resp.Errors, e.Error())
		}
	} else {
		resp.Errors = []string{err.Error()}
	}
	respondJSON(w, http.StatusUnprocessableEntity, resp)
}
