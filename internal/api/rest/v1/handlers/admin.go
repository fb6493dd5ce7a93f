package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	serviceErrors "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1/errors"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/go-chi/chi"
)

// HandleGetPendingDeposits processes pending deposit review queue queries.
func (h *Handler) HandleGetPendingDeposits() http.HandlerFunc {
	return h.handleGetPendingRequests(modelstorage.KindDeposit, "HandleGetPendingDeposits")
}

// HandleGetPendingWithdrawals processes pending withdrawal review queue queries.
func (h *Handler) HandleGetPendingWithdrawals() http.HandlerFunc {
	return h.handleGetPendingRequests(modelstorage.KindWithdrawal, "HandleGetPendingWithdrawals")
}

func (h *Handler) handleGetPendingRequests(kind, caller string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		requests, err := h.service.GetPendingRequests(ctx, kind)
		if err != nil {
			h.log.Error().Err(err).Msg(caller + " failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		if len(requests) == 0 {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.writeJSON(w, requests, caller)
	}
}

// HandleApproveDeposit processes deposit approval requests.
func (h *Handler) HandleApproveDeposit() http.HandlerFunc {
	return h.handleRequestTransition(h.service.ApproveDeposit, "HandleApproveDeposit")
}

// HandleApproveWithdrawal processes withdrawal completion requests.
func (h *Handler) HandleApproveWithdrawal() http.HandlerFunc {
	return h.handleRequestTransition(h.service.ApproveWithdrawal, "HandleApproveWithdrawal")
}

// HandleDenyRequest processes request denial requests.
func (h *Handler) HandleDenyRequest() http.HandlerFunc {
	return h.handleRequestTransition(h.service.DenyRequest, "HandleDenyRequest")
}

// HandleMarkUnderReview processes manual review flagging requests.
func (h *Handler) HandleMarkUnderReview() http.HandlerFunc {
	return h.handleRequestTransition(h.service.MarkUnderReview, "HandleMarkUnderReview")
}

func (h *Handler) handleRequestTransition(transition func(ctx context.Context, requestID string) error, caller string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		requestID := chi.URLParam(r, "requestID")
		h.log.Info().Msg(fmt.Sprintf("%s detected for request %s", caller, requestID))
		err := transition(ctx, requestID)
		if err != nil {
			h.log.Error().Err(err).Msg(caller + " failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			var invalidStatusError *storageErrors.InvalidStatusError
			var serviceIllegalIdentifier *serviceErrors.ServiceIllegalIdentifier
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusNotFound)
			} else if errors.As(err, &invalidStatusError) {
				http.Error(w, err.Error(), http.StatusConflict)
			} else if errors.As(err, &serviceIllegalIdentifier) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleAdjustBalance processes manual balance adjustment requests.
func (h *Handler) HandleAdjustBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		userID := chi.URLParam(r, "userID")
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var adjustment modeldto.Adjustment
		err = json.Unmarshal(b, &adjustment)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("balance adjustment detected for user %s, field %s", userID, adjustment.Field))
		err = h.service.AdjustBalance(ctx, userID, adjustment)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleAdjustBalance failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			var negativeBalanceError *storageErrors.NegativeBalanceError
			var serviceIllegalField *serviceErrors.ServiceIllegalField
			var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusNotFound)
			} else if errors.As(err, &negativeBalanceError) {
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			} else if errors.As(err, &serviceIllegalField) || errors.As(err, &serviceIllegalAmount) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleGetUsersSummary processes user roster queries.
func (h *Handler) HandleGetUsersSummary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		users, err := h.service.GetUsersSummary(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetUsersSummary failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, users, "HandleGetUsersSummary")
	}
}

// HandleGetPlatformStats processes aggregate dashboard queries.
func (h *Handler) HandleGetPlatformStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		stats, err := h.service.GetPlatformStats(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetPlatformStats failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, stats, "HandleGetPlatformStats")
	}
}

// HandleUpdateSettings processes appearance settings update requests.
func (h *Handler) HandleUpdateSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleUpdateSettings failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var settings modeldto.Settings
		err = json.Unmarshal(b, &settings)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleUpdateSettings failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = h.service.UpdateSettings(ctx, settings)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleUpdateSettings failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}
