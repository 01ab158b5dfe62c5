package web

import (
	"io"
	"net/http"
)

// maxWebhookBody matches the payload cap Stripe documents for webhook events.
const maxWebhookBody = 65536

func (s *Server) handleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		respondError(w, r, bodyError(err, errInvalidBody))
		return
	}

	if _, err := s.webhooks.Handle(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
