package api

import (
	"fmt"
	"net/http"

	"github.com/hackit-tw/recruit/internal/adapters/mail"
)

// handlePreview renders a mail template with query parameters:
// email_template, name, uuid, email and reason.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.preview_email"
	q := r.URL.Query()
	name, ok := mail.ParseTemplate(q.Get("email_template"))
	if !ok {
		s.fail(w, r, op, fmt.Errorf("%w: %q", mail.ErrUnknownTemplate, q.Get("email_template")))
		return
	}
	msg, err := s.renderer.Render(name, q.Get("email"), mail.Data{
		Name:          q.Get("name"),
		ApplicationID: q.Get("uuid"),
		Email:         q.Get("email"),
		NextURL:       s.nextFormURL,
		Reason:        q.Get("reason"),
	})
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(msg.HTML))
}
