package handler

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/zapmenu/zapmenu/internal/domain/payment"
)

// accessTokenHeader carries the shared secret the provider echoes back on
// every webhook call.
const accessTokenHeader = "Asaas-Access-Token"

// webhookRequest is the provider's event envelope.
type webhookRequest struct {
	Event   string `json:"event"`
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

type webhookResponse struct {
	Received          bool   `json:"received"`
	OrderMatched      bool   `json:"order_matched"`
	SubscriptionMatch bool   `json:"subscription_matched"`
	Status            string `json:"status,omitempty"`
}

// PaymentWebhook handles POST /webhooks/payment. Authentication fails closed
// before any record is read or written; after that, processing is idempotent
// and a replayed event always converges to the same state. Unmatched events
// are acknowledged so the provider stops resending them.
func (h *Handler) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get(accessTokenHeader)
	if len(h.webhookToken) == 0 ||
		subtle.ConstantTimeCompare([]byte(token), h.webhookToken) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed webhook body")
		return
	}

	result, err := h.reconciler.Process(r.Context(), payment.Event{
		Name:              req.Event,
		ProviderPaymentID: req.Payment.ID,
		ProviderStatus:    req.Payment.Status,
	})
	if err != nil {
		if errors.Is(err, payment.ErrMalformedEvent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// A definitive outcome was not reached; 500 makes the provider retry.
		zctx.From(r.Context()).Error("Reconcile payment event", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "reconciliation failed")
		return
	}

	writeJSON(w, http.StatusOK, webhookResponse{
		Received:          true,
		OrderMatched:      result.OrderMatched,
		SubscriptionMatch: result.SubscriptionMatch,
		Status:            string(result.Status),
	})
}
