package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/hackit-tw/recruit/internal/adapters/repository"
	service "github.com/hackit-tw/recruit/internal/app"
	"github.com/hackit-tw/recruit/internal/domain/model"
)

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 500
)

// handleAction handles POST /api/actions.
func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	const op = "api.actions"
	var in service.InboundAction
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		s.fail(w, r, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	out, err := s.deps.HandleAction(r.Context(), in)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

type searchResponse struct {
	Applications []model.Application `json:"applications"`
	Count        int                 `json:"count"`
}

// handleSearch handles GET /api/applications?stage=&assignee=&team=&limit=.
// stage may repeat or hold a comma separated list.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.applications"
	q, err := parseQuery(r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	apps, err := s.deps.Search(r.Context(), q)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if apps == nil {
		apps = []model.Application{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Applications: apps, Count: len(apps)})
}

func parseQuery(r *http.Request) (repository.Query, error) {
	v := r.URL.Query()
	q := repository.Query{
		Assignee: strings.TrimSpace(v.Get("assignee")),
		Team:     strings.TrimSpace(v.Get("team")),
		Limit:    defaultSearchLimit,
	}
	for _, raw := range v["stage"] {
		for _, part := range strings.Split(raw, ",") {
			st := model.Stage(strings.TrimSpace(part))
			if st == "" {
				continue
			}
			if !st.Valid() {
				return repository.Query{}, fmt.Errorf("%w: unknown stage %q", ErrBadRequest, st)
			}
			q.Stages = append(q.Stages, st)
		}
	}
	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return repository.Query{}, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
		}
		q.Limit = min(n, maxSearchLimit)
	}
	return q, nil
}
