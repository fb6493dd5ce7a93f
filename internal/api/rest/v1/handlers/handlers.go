// Package handlers provides API endpoint handling functionality.

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"
	"time"

	handlersErrors "github.com/VSFLima/Byte-Capital/internal/api/rest/v1/errors"
	"github.com/VSFLima/Byte-Capital/internal/config"
	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	workflow "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1"
	serviceErrors "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1/errors"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/rs/zerolog"
)

// Handler defines attributes of a struct available to its methods.
type Handler struct {
	service      workflow.Workflow
	serverConfig *config.ServerConfig
	log          *zerolog.Logger
}

// InitHandlers initializes a handler object.
func InitHandlers(mainService workflow.Workflow, serverConfig *config.ServerConfig, log *zerolog.Logger) (*Handler, error) {
	if mainService == nil {
		return nil, &handlersErrors.HandlersFoundNilArgument{Msg: "nil workflow was passed to handlers initializer"}
	}
	return &Handler{service: mainService, serverConfig: serverConfig, log: log}, nil
}

// HandleRegister processes user register requests.
func (h *Handler) HandleRegister() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var credentials modeldto.User
		err = json.Unmarshal(b, &credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new user register request detected for %s", credentials.Email))
		if len(credentials.Email) == 0 || len(credentials.Password) == 0 {
			h.log.Error().Msg("HandleRegister failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		accessToken, err := h.service.AddNewUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleRegister failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var alreadyExistsError *storageErrors.AlreadyExistsError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &alreadyExistsError) {
				w.WriteHeader(http.StatusConflict)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleLogin processes user login requests.
func (h *Handler) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var credentials modeldto.User
		err = json.Unmarshal(b, &credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new login request detected for %s", credentials.Email))
		if credentials.Email == "" || credentials.Password == "" {
			h.log.Error().Msg("HandleLogin failed")
			http.Error(w, "Empty values are not allowed", http.StatusBadRequest)
			return
		}
		accessToken, err := h.service.LoginUser(ctx, credentials)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleLogin failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusUnauthorized)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Authorization", "Bearer "+accessToken)
		w.WriteHeader(http.StatusOK)
	}
}

// HandleGetBalance processes balance query requests.
func (h *Handler) HandleGetBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		balance, err := h.service.GetBalance(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetBalance failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var notFoundError *storageErrors.NotFoundError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &notFoundError) {
				w.WriteHeader(http.StatusNotFound)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, balance, "HandleGetBalance")
	}
}

// HandleGetRequests processes operation history query requests.
func (h *Handler) HandleGetRequests() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		requests, err := h.service.GetRequests(ctx, userID)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetRequests failed")
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
		h.writeJSON(w, requests, "HandleGetRequests")
	}
}

// HandleNewDeposit processes new deposit requests.
func (h *Handler) HandleNewDeposit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newDeposit modeldto.NewDeposit
		err = json.Unmarshal(b, &newDeposit)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new deposit request detected for %v", newDeposit.Amount))
		receipt, err := h.service.SubmitDeposit(ctx, userID, newDeposit)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &serviceIllegalAmount) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		resBody, err := json.Marshal(receipt)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, err = w.Write(resBody)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewDeposit failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}

// HandleNewWithdrawal processes new withdrawal requests.
func (h *Handler) HandleNewWithdrawal() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var newWithdrawal modeldto.NewWithdrawal
		err = json.Unmarshal(b, &newWithdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new withdrawal request detected for %v", newWithdrawal.Amount))
		err = h.service.SubmitWithdrawal(ctx, userID, newWithdrawal)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleNewWithdrawal failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
			var serviceIllegalIdentifier *serviceErrors.ServiceIllegalIdentifier
			var notEnoughFundsError *storageErrors.NotEnoughFundsError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &serviceIllegalAmount) || errors.As(err, &serviceIllegalIdentifier) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else if errors.As(err, &notEnoughFundsError) {
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleConvertBalance processes balance conversion requests.
func (h *Handler) HandleConvertBalance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleConvertBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleConvertBalance failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var conversion modeldto.Conversion
		err = json.Unmarshal(b, &conversion)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleConvertBalance failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.log.Info().Msg(fmt.Sprintf("new conversion request detected from %s to %s", conversion.FromField, conversion.ToField))
		err = h.service.ConvertBalance(ctx, userID, conversion)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleConvertBalance failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
			var serviceIllegalField *serviceErrors.ServiceIllegalField
			var notEnoughFundsError *storageErrors.NotEnoughFundsError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &serviceIllegalAmount) || errors.As(err, &serviceIllegalField) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else if errors.As(err, &notEnoughFundsError) {
				http.Error(w, err.Error(), http.StatusPaymentRequired)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

// HandleSetPixKey processes PIX key update requests.
func (h *Handler) HandleSetPixKey() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSetPixKey failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSetPixKey failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var pixKey modeldto.PixKey
		err = json.Unmarshal(b, &pixKey)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSetPixKey failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = h.service.SetPixKey(ctx, userID, pixKey.CPF)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSetPixKey failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceIllegalIdentifier *serviceErrors.ServiceIllegalIdentifier
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
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

// HandleSupportMessage processes support messages forwarded to the notification queue.
func (h *Handler) HandleSupportMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		userID, err := h.getUserID(r)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSupportMessage failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if r.Header.Get("Content-Type") != "application/json" {
			http.Error(w, "Invalid Content-Type", http.StatusBadRequest)
		}
		b, err := ioutil.ReadAll(r.Body)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSupportMessage failed")
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		var supportMessage modeldto.SupportMessage
		err = json.Unmarshal(b, &supportMessage)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSupportMessage failed")
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		err = h.service.SendSupportMessage(ctx, userID, supportMessage.Message)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleSupportMessage failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			var serviceEmptyMessage *serviceErrors.ServiceEmptyMessage
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else if errors.As(err, &serviceEmptyMessage) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// HandleGetSettings processes public appearance settings queries.
func (h *Handler) HandleGetSettings() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		settings, err := h.service.GetSettings(ctx)
		if err != nil {
			h.log.Error().Err(err).Msg("HandleGetSettings failed")
			var contextTimeoutExceededError *storageErrors.ContextTimeoutExceededError
			if errors.As(err, &contextTimeoutExceededError) {
				http.Error(w, err.Error(), http.StatusGatewayTimeout)
			} else {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		h.writeJSON(w, settings, "HandleGetSettings")
	}
}

// getUserID retrieves user identifier from the request metadata.
func (h *Handler) getUserID(r *http.Request) (string, error) {
	accessToken := r.Header.Get("Authorization")
	if len(accessToken) == 0 {
		return "", errors.New("token authorization required")
	}
	accessToken = strings.Replace(accessToken, "Bearer ", "", 1)
	userID, err := h.service.GetUserID(accessToken)
	if err != nil {
		return "", err
	}
	return userID, nil
}

// writeJSON marshals a payload and writes it with a 200 code.
func (h *Handler) writeJSON(w http.ResponseWriter, payload interface{}, caller string) {
	resBody, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg(caller + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(resBody)
	if err != nil {
		h.log.Error().Err(err).Msg(caller + " failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
