package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
	"github.com/hackit-tw/recruit/pkg/logger"
)

const maxFormBody = 1 << 20

func decodeForm(w http.ResponseWriter, r *http.Request) (formPayload, error) {
	var p formPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFormBody)).Decode(&p); err != nil {
		return formPayload{}, fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return p, nil
}

// handleFirstPart handles POST /apply/first_part_application.
func (s *Server) handleFirstPart(w http.ResponseWriter, r *http.Request) {
	const op = "api.first_part"
	p, err := decodeForm(w, r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	app, err := s.deps.Submit(r.Context(), s.fields.applicantFrom(p))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusCreated, ackResponse{Status: "ok", ApplicationID: app.ID, Duplicate: app.DuplicateFlag})
}

// handleSecondPart handles POST /apply/second_part_application?secret=<token>.
func (s *Server) handleSecondPart(w http.ResponseWriter, r *http.Request) {
	const op = "api.second_part"
	secret := r.URL.Query().Get("secret")
	if secret == "" {
		s.fail(w, r, op, fmt.Errorf("%w: missing secret", ErrUnauthorized))
		return
	}
	p, err := decodeForm(w, r)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	out, err := s.deps.SubmitApplicantData(r.Context(), secret, s.fields.applicantDataFrom(p))
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: "ok", ApplicationID: out.Application.ID})
}

// handleRedirectCheck verifies a form token and sends the applicant on to the
// applicant data form with the token attached.
func (s *Server) handleRedirectCheck(w http.ResponseWriter, r *http.Request) {
	const op = "api.redirect_check"
	secret := r.URL.Query().Get("secret")
	if secret == "" {
		s.fail(w, r, op, fmt.Errorf("%w: missing secret", ErrUnauthorized))
		return
	}
	app, err := s.deps.VerifyToken(r.Context(), secret)
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if app.Stage != model.StagePassedAwaitingApplicantData {
		s.fail(w, r, op, fmt.Errorf("%w: application is %s", review.ErrStaleState, app.Stage))
		return
	}
	target, err := url.Parse(s.nextFormURL)
	if err != nil || s.nextFormURL == "" {
		s.log.Error(r.Context(), "next form url is not usable", logger.String("url", s.nextFormURL))
		writeError(w, http.StatusServiceUnavailable, "upstream_unavailable", nil)
		return
	}
	q := target.Query()
	q.Set("secret", secret)
	target.RawQuery = q.Encode()
	http.Redirect(w, r, target.String(), http.StatusFound)
}
