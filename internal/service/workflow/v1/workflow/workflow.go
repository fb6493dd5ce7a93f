// Package workflow implements the request workflow engine, the intermediary
// layer between the DB and API endpoint handlers. It owns the lifecycle of
// deposit and withdrawal requests and every ledger mutation they cause.

package workflow

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelqueue"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	serviceErrors "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1/errors"
	secretary "github.com/VSFLima/Byte-Capital/internal/service/secretary/v1"
	storage "github.com/VSFLima/Byte-Capital/internal/storage/v1"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// referral bonus credited to the referrer on each registration, in BRLC
var referralBonus = decimal.NewFromInt(20)

// length of the Luhn-valid payment reference attached to deposit requests
const paymentReferenceLength = 16

// Workflow defines attributes of a struct available to its methods.
type Workflow struct {
	storage   storage.Storage
	secretary secretary.Secretary
	queue     chan<- modelqueue.NotificationQueueEntry
}

// InitService initializes the request workflow engine.
func InitService(st storage.Storage, sec secretary.Secretary, queue chan<- modelqueue.NotificationQueueEntry) (*Workflow, error) {
	if st == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil storage was passed to service initializer"}
	}
	if sec == nil {
		return nil, &serviceErrors.ServiceFoundNilArgument{Msg: "nil secretary was passed to service initializer"}
	}
	workflow := &Workflow{
		storage:   st,
		secretary: sec,
		queue:     queue,
	}
	return workflow, nil
}

// GetUserID retrieves deciphered user identifier from token.
func (w *Workflow) GetUserID(accessToken string) (string, error) {
	return w.secretary.ValidateToken(accessToken)
}

// GetUserRole reads the caller's current role from storage. Admin gates must
// use this fresh read, never a value embedded in the token.
func (w *Workflow) GetUserRole(ctx context.Context, userID string) (string, error) {
	user, err := w.storage.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return user.Role, nil
}

// AddNewUser processes user register requests and notifies the administrator.
func (w *Workflow) AddNewUser(ctx context.Context, credentials modeldto.User) (string, error) {
	accessToken, userID, err := w.secretary.NewToken()
	if err != nil {
		return "", err
	}
	cipheredCredentials := modeldto.User{
		Name:       credentials.Name,
		Email:      w.secretary.Encode(credentials.Email),
		Phone:      credentials.Phone,
		Password:   w.secretary.Encode(credentials.Password),
		ReferredBy: credentials.ReferredBy,
	}
	err = w.storage.AddNewUser(ctx, cipheredCredentials, userID, referralBonus)
	if err != nil {
		return "", err
	}
	w.notify(modelqueue.NotificationQueueEntry{
		Action: modelqueue.ActionNewUser,
		Name:   credentials.Name,
		Email:  credentials.Email,
	})
	return accessToken, nil
}

// LoginUser processes user login requests.
func (w *Workflow) LoginUser(ctx context.Context, credentials modeldto.User) (string, error) {
	cipheredCredentials := modeldto.User{
		Email:    w.secretary.Encode(credentials.Email),
		Password: w.secretary.Encode(credentials.Password),
	}
	userID, err := w.storage.CheckUser(ctx, cipheredCredentials)
	if err != nil {
		return "", err
	}
	return w.secretary.GetTokenForUser(userID)
}

// GetBalance processes balance query requests.
func (w *Workflow) GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error) {
	entry, err := w.storage.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance := modeldto.Balance{
		Available: entry.Available,
		Pending:   entry.Pending,
		Secondary: entry.Secondary,
		Referral:  entry.Referral,
	}
	return &balance, nil
}

// GetRequests processes request history queries of one user.
func (w *Workflow) GetRequests(ctx context.Context, userID string) ([]modeldto.RequestRecord, error) {
	entries, err := w.storage.GetRequests(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toRequestRecords(entries), nil
}

// SubmitDeposit creates a pending deposit request carrying a Luhn-valid
// payment reference and moves the amount onto the pending balance.
func (w *Workflow) SubmitDeposit(ctx context.Context, userID string, deposit modeldto.NewDeposit) (*modeldto.DepositReceipt, error) {
	if !deposit.Amount.IsPositive() {
		return nil, &serviceErrors.ServiceIllegalAmount{Msg: fmt.Sprintf("illegal deposit amount %s", deposit.Amount)}
	}
	user, err := w.storage.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	reference := goluhn.Generate(paymentReferenceLength)
	entry := modelstorage.RequestStorageEntry{
		RequestID: uuid.New().String(),
		UserID:    userID,
		UserName:  user.Name,
		Kind:      modelstorage.KindDeposit,
		Amount:    deposit.Amount,
		Status:    modelstorage.StatusPending,
		Reference: reference,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	err = w.storage.CreateDepositRequest(ctx, entry)
	if err != nil {
		return nil, err
	}
	w.notify(modelqueue.NotificationQueueEntry{
		Action: modelqueue.ActionNewDeposit,
		Name:   user.Name,
		Amount: deposit.Amount.StringFixed(2),
	})
	return &modeldto.DepositReceipt{Reference: reference}, nil
}

// SubmitWithdrawal escrows the requested amount and creates a withdrawal
// request. The funds check runs inside the storage transaction against a
// fresh balance read. A destination differing from the registered PIX key
// lands the request in em_analise instead of pendente.
func (w *Workflow) SubmitWithdrawal(ctx context.Context, userID string, withdrawal modeldto.NewWithdrawal) error {
	if !withdrawal.Amount.IsPositive() {
		return &serviceErrors.ServiceIllegalAmount{Msg: fmt.Sprintf("illegal withdrawal amount %s", withdrawal.Amount)}
	}
	user, err := w.storage.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	destination := withdrawal.PixKey
	if destination == "" {
		destination = user.PixKey
	}
	if !validCPF(destination) {
		return &serviceErrors.ServiceIllegalIdentifier{Msg: "withdrawal destination must be a valid CPF PIX key"}
	}
	status := modelstorage.StatusPending
	if user.PixKey != "" && destination != user.PixKey {
		status = modelstorage.StatusUnderReview
	}
	entry := modelstorage.RequestStorageEntry{
		RequestID: uuid.New().String(),
		UserID:    userID,
		UserName:  user.Name,
		Kind:      modelstorage.KindWithdrawal,
		Amount:    withdrawal.Amount,
		Status:    status,
		PixKey:    destination,
		CreatedAt: time.Now().Format(time.RFC3339),
	}
	err = w.storage.CreateWithdrawalRequest(ctx, entry)
	if err != nil {
		return err
	}
	w.notify(modelqueue.NotificationQueueEntry{
		Action: modelqueue.ActionNewWithdrawal,
		Name:   user.Name,
		Amount: withdrawal.Amount.StringFixed(2),
		Status: status,
	})
	return nil
}

// ConvertBalance moves funds between two ledger fields at a fixed 1:1 rate.
func (w *Workflow) ConvertBalance(ctx context.Context, userID string, conversion modeldto.Conversion) error {
	if !conversion.Amount.IsPositive() {
		return &serviceErrors.ServiceIllegalAmount{Msg: fmt.Sprintf("illegal conversion amount %s", conversion.Amount)}
	}
	if !modelstorage.IsBalanceField(conversion.FromField) || !modelstorage.IsBalanceField(conversion.ToField) {
		return &serviceErrors.ServiceIllegalField{Msg: fmt.Sprintf("illegal conversion fields %s -> %s", conversion.FromField, conversion.ToField)}
	}
	if conversion.FromField == conversion.ToField {
		return &serviceErrors.ServiceIllegalField{Msg: "conversion fields must differ"}
	}
	return w.storage.ConvertBalance(ctx, userID, conversion.FromField, conversion.ToField, conversion.Amount)
}

// SetPixKey validates and stores a CPF as the payout PIX key.
func (w *Workflow) SetPixKey(ctx context.Context, userID, cpf string) error {
	if !validCPF(cpf) {
		return &serviceErrors.ServiceIllegalIdentifier{Msg: fmt.Sprintf("illegal CPF %s", cpf)}
	}
	return w.storage.SetPixKey(ctx, userID, cpf)
}

// SendSupportMessage forwards a support request to the administrator channel.
func (w *Workflow) SendSupportMessage(ctx context.Context, userID, message string) error {
	if message == "" {
		return &serviceErrors.ServiceEmptyMessage{Msg: "empty support message"}
	}
	user, err := w.storage.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	w.notify(modelqueue.NotificationQueueEntry{
		Action:  modelqueue.ActionSupport,
		Name:    user.Name,
		Message: message,
	})
	return nil
}

// GetSettings processes platform settings queries.
func (w *Workflow) GetSettings(ctx context.Context) (*modeldto.Settings, error) {
	entry, err := w.storage.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	settings := modeldto.Settings{
		SiteName:           entry.SiteName,
		MainBgColor:        entry.MainBgColor,
		CardBgColor:        entry.CardBgColor,
		PrimaryColor:       entry.PrimaryColor,
		HighlightColor:     entry.HighlightColor,
		PrimaryTextColor:   entry.PrimaryTextColor,
		SecondaryTextColor: entry.SecondaryTextColor,
		WhatsappLink:       entry.WhatsappLink,
		TelegramLink:       entry.TelegramLink,
		PaymentKey:         entry.PaymentKey,
	}
	return &settings, nil
}

// GetPendingRequests lists requests of one kind awaiting an admin decision.
func (w *Workflow) GetPendingRequests(ctx context.Context, kind string) ([]modeldto.RequestRecord, error) {
	if kind != modelstorage.KindDeposit && kind != modelstorage.KindWithdrawal {
		return nil, &serviceErrors.ServiceIllegalKind{Msg: fmt.Sprintf("illegal request kind %s", kind)}
	}
	entries, err := w.storage.GetPendingRequests(ctx, kind)
	if err != nil {
		return nil, err
	}
	return toRequestRecords(entries), nil
}

// ApproveDeposit credits the requester and removes the request.
func (w *Workflow) ApproveDeposit(ctx context.Context, requestID string) error {
	_, err := w.storage.ApproveDeposit(ctx, requestID)
	return err
}

// ApproveWithdrawal marks an escrowed withdrawal as paid out.
func (w *Workflow) ApproveWithdrawal(ctx context.Context, requestID string) error {
	_, err := w.storage.CompleteWithdrawal(ctx, requestID)
	return err
}

// DenyRequest removes a request and reverses its ledger effect.
func (w *Workflow) DenyRequest(ctx context.Context, requestID string) error {
	_, err := w.storage.DenyRequest(ctx, requestID)
	return err
}

// MarkUnderReview flags a pending request for manual review.
func (w *Workflow) MarkUnderReview(ctx context.Context, requestID string) error {
	return w.storage.MarkUnderReview(ctx, requestID)
}

// AdjustBalance applies an administrative signed increment to a ledger field.
func (w *Workflow) AdjustBalance(ctx context.Context, userID string, adjustment modeldto.Adjustment) error {
	if !modelstorage.IsBalanceField(adjustment.Field) {
		return &serviceErrors.ServiceIllegalField{Msg: fmt.Sprintf("illegal balance field %s", adjustment.Field)}
	}
	if adjustment.Delta.IsZero() {
		return &serviceErrors.ServiceIllegalAmount{Msg: "zero adjustment delta"}
	}
	return w.storage.AdjustBalance(ctx, userID, adjustment.Field, adjustment.Delta)
}

// GetUsersSummary lists all users with their ledgers for the admin dashboard.
func (w *Workflow) GetUsersSummary(ctx context.Context) ([]modeldto.UserSummary, error) {
	entries, err := w.storage.GetUsersSummary(ctx)
	if err != nil {
		return nil, err
	}
	var summaries []modeldto.UserSummary
	for _, entry := range entries {
		email, err := w.secretary.Decode(entry.Login)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, modeldto.UserSummary{
			UserID:    entry.UserID,
			Name:      entry.Name,
			Email:     email,
			Role:      entry.Role,
			Patamar:   entry.Patamar,
			Available: entry.Available,
			Referral:  entry.Referral,
		})
	}
	return summaries, nil
}

// GetPlatformStats aggregates dashboard totals over all users.
func (w *Workflow) GetPlatformStats(ctx context.Context) (*modeldto.PlatformStats, error) {
	entries, err := w.storage.GetUsersSummary(ctx)
	if err != nil {
		return nil, err
	}
	stats := modeldto.PlatformStats{TotalUsers: len(entries)}
	for _, entry := range entries {
		stats.TotalBalance = stats.TotalBalance.Add(entry.Available)
		stats.TotalReferral = stats.TotalReferral.Add(entry.Referral)
	}
	return &stats, nil
}

// UpdateSettings overwrites the platform settings singleton.
func (w *Workflow) UpdateSettings(ctx context.Context, settings modeldto.Settings) error {
	entry := modelstorage.SettingsStorageEntry{
		SiteName:           settings.SiteName,
		MainBgColor:        settings.MainBgColor,
		CardBgColor:        settings.CardBgColor,
		PrimaryColor:       settings.PrimaryColor,
		HighlightColor:     settings.HighlightColor,
		PrimaryTextColor:   settings.PrimaryTextColor,
		SecondaryTextColor: settings.SecondaryTextColor,
		WhatsappLink:       settings.WhatsappLink,
		TelegramLink:       settings.TelegramLink,
		PaymentKey:         settings.PaymentKey,
	}
	return w.storage.UpdateSettings(ctx, entry)
}

// notify hands an event to the notification queue without blocking; a full
// queue drops the event, the relay is best-effort and must never stall or
// fail a workflow operation.
func (w *Workflow) notify(entry modelqueue.NotificationQueueEntry) {
	if w.queue == nil {
		return
	}
	select {
	case w.queue <- entry:
	default:
	}
}

func toRequestRecords(entries []modelstorage.RequestStorageEntry) []modeldto.RequestRecord {
	var records []modeldto.RequestRecord
	for _, entry := range entries {
		records = append(records, modeldto.RequestRecord{
			RequestID: entry.RequestID,
			Kind:      entry.Kind,
			UserName:  entry.UserName,
			Amount:    entry.Amount,
			Status:    entry.Status,
			Reference: entry.Reference,
			PixKey:    entry.PixKey,
			CreatedAt: entry.CreatedAt,
		})
	}
	sort.Slice(records, func(i, j int) bool {
		time1, _ := time.Parse(time.RFC3339, records[i].CreatedAt)
		time2, _ := time.Parse(time.RFC3339, records[j].CreatedAt)
		return time1.Before(time2)
	})
	return records
}

// validCPF checks the shape of a CPF used as PIX key: exactly 11 digits.
func validCPF(cpf string) bool {
	if len(cpf) != 11 {
		return false
	}
	for _, r := range cpf {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
