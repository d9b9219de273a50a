package web

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/MrWong99/gaia/internal/observe"
	"github.com/MrWong99/gaia/pkg/types"
)

type analyzeRequest struct {
	Transcript string `json:"transcript"`
}

type analyzeResponse struct {
	Opportunities []types.OpportunityCard `json:"opportunities"`
}

type searchRequest struct {
	Query string `json:"query"`
}

type searchResponse struct {
	Results []types.SearchResult `json:"results"`
}

type imageRequest struct {
	Prompt *string `json:"prompt"`
}

type imageResponse struct {
	ImageURL    *string `json:"imageUrl"`
	Description string  `json:"description,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	resp := analyzeResponse{Opportunities: []types.OpportunityCard{}}

	var req analyzeRequest
	if err := decodeBody(r, &req); err != nil {
		observe.Logger(r.Context()).Warn("analyze: malformed request", "err", err)
		writeJSON(w, resp)
		return
	}
	if cards := s.cfg.Analyzer.Analyze(r.Context(), req.Transcript); len(cards) > 0 {
		resp.Opportunities = cards
	}
	writeJSON(w, resp)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	resp := searchResponse{Results: []types.SearchResult{}}

	var req searchRequest
	if err := decodeBody(r, &req); err != nil {
		observe.Logger(r.Context()).Warn("search: malformed request", "err", err)
		writeJSON(w, resp)
		return
	}
	if s.cfg.Search == nil {
		writeJSON(w, resp)
		return
	}
	results, err := s.cfg.Search.Search(r.Context(), req.Query)
	if err != nil {
		observe.Logger(r.Context()).Error("search error", "err", err)
		writeJSON(w, resp)
		return
	}
	if len(results) > 0 {
		resp.Results = results
	}
	writeJSON(w, resp)
}

func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageRequest
	if err := decodeBody(r, &req); err != nil || req.Prompt == nil {
		observe.Logger(r.Context()).Warn("generate-image: malformed request", "err", err)
		writeJSON(w, imageResponse{})
		return
	}
	if s.cfg.Image == nil {
		writeJSON(w, imageResponse{})
		return
	}
	img, err := s.cfg.Image.Generate(r.Context(), *req.Prompt)
	if err != nil {
		observe.Logger(r.Context()).Error("image generation error", "err", err)
		writeJSON(w, imageResponse{})
		return
	}
	writeJSON(w, imageResponse{ImageURL: &img.URL, Description: img.Description})
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

// writeJSON always answers 200; callers encode failures in the body.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("web: failed to write response", "err", err)
	}
}
