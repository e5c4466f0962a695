package web

// handlers_recipes.go serves saved recipes: reusable task lists that can be
// matched against a new file's headers and replayed.

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tidycsv/internal/core"
	"github.com/JonMunkholm/tidycsv/internal/recipe"
	"github.com/go-chi/chi/v5"
)

// handleListRecipes returns every saved recipe.
func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, s.service.ListRecipes())
}

// handleCreateRecipe saves a YAML or JSON recipe document.
func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondError(w, r, fmt.Errorf("invalid request: %w", err))
		return
	}

	rec, err := recipe.Decode(data, recipe.FormatForContentType(r.Header.Get("Content-Type")))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	saved, err := s.service.SaveRecipe(rec)
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, saved)
}

// handleGetRecipe returns one recipe as JSON, or YAML with ?format=yaml.
func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.GetRecipe(chi.URLParam(r, "recipeID"))
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if !strings.EqualFold(r.URL.Query().Get("format"), "yaml") {
		writeJSON(w, r, http.StatusOK, rec)
		return
	}

	var buf bytes.Buffer
	if err := recipe.Encode(&buf, rec, recipe.FormatYAML); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", recipe.FormatYAML.ContentType())
	w.Write(buf.Bytes())
}

// handleDeleteRecipe removes a saved recipe.
func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteRecipe(chi.URLParam(r, "recipeID")); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMatchRecipes ranks saved recipes against ?headers=a,b,c.
func (s *Server) handleMatchRecipes(w http.ResponseWriter, r *http.Request) {
	headers := parseList(r, "headers")
	if len(headers) == 0 {
		s.respondError(w, r, fmt.Errorf("invalid request: headers is required"))
		return
	}
	matches := s.service.MatchRecipes(headers)
	if matches == nil {
		matches = []core.RecipeMatch{}
	}
	writeJSON(w, r, http.StatusOK, matches)
}
