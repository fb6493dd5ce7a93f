package workflow

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ShiraazMoollatjie/goluhn"
	"github.com/VSFLima/Byte-Capital/internal/config"
	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelqueue"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	serviceErrors "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1/errors"
	"github.com/VSFLima/Byte-Capital/internal/service/secretary/v1/secretary"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/shopspring/decimal"
)

// memStorage replicates the transactional ledger semantics of the PSQL
// storage in memory so the engine can be exercised without a database.
type memStorage struct {
	users    map[string]*modelstorage.UserStorageEntry
	balances map[string]*modelstorage.BalanceStorageEntry
	requests map[string]*modelstorage.RequestStorageEntry
	settings modelstorage.SettingsStorageEntry
}

func newMemStorage() *memStorage {
	return &memStorage{
		users:    make(map[string]*modelstorage.UserStorageEntry),
		balances: make(map[string]*modelstorage.BalanceStorageEntry),
		requests: make(map[string]*modelstorage.RequestStorageEntry),
		settings: modelstorage.SettingsStorageEntry{SiteName: "Byte Capital"},
	}
}

func (s *memStorage) AddNewUser(_ context.Context, credentials modeldto.User, userID string, referralBonus decimal.Decimal) error {
	for _, user := range s.users {
		if user.Login == credentials.Email {
			return &storageErrors.AlreadyExistsError{ID: credentials.Email}
		}
	}
	s.users[userID] = &modelstorage.UserStorageEntry{
		UserID:       userID,
		Login:        credentials.Email,
		Password:     credentials.Password,
		Name:         credentials.Name,
		Phone:        credentials.Phone,
		Role:         modelstorage.RoleClient,
		Patamar:      modelstorage.TierAffiliate,
		ReferredBy:   credentials.ReferredBy,
		RegisteredAt: time.Now().Format(time.RFC3339),
	}
	s.balances[userID] = &modelstorage.BalanceStorageEntry{UserID: userID}
	if credentials.ReferredBy != "" {
		referrer, ok := s.users[credentials.ReferredBy]
		if ok {
			referrer.DirectReferrals++
			referrer.Patamar = modelstorage.PatamarFor(referrer.DirectReferrals)
			balance := s.balances[credentials.ReferredBy]
			balance.Referral = balance.Referral.Add(referralBonus)
		}
	}
	return nil
}

func (s *memStorage) CheckUser(_ context.Context, credentials modeldto.User) (string, error) {
	for _, user := range s.users {
		if user.Login == credentials.Email && user.Password == credentials.Password {
			return user.UserID, nil
		}
	}
	return "", &storageErrors.NotFoundError{}
}

func (s *memStorage) GetUser(_ context.Context, userID string) (*modelstorage.UserStorageEntry, error) {
	user, ok := s.users[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{}
	}
	entry := *user
	return &entry, nil
}

func (s *memStorage) SetPixKey(_ context.Context, userID, cpf string) error {
	user, ok := s.users[userID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	user.CPF = cpf
	user.PixKey = cpf
	return nil
}

func (s *memStorage) GetBalance(_ context.Context, userID string) (*modelstorage.BalanceStorageEntry, error) {
	balance, ok := s.balances[userID]
	if !ok {
		return nil, &storageErrors.NotFoundError{}
	}
	entry := *balance
	return &entry, nil
}

func (s *memStorage) AdjustBalance(_ context.Context, userID, field string, delta decimal.Decimal) error {
	balance, ok := s.balances[userID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	current := s.field(balance, field)
	updated := current.Add(delta)
	if updated.IsNegative() {
		return &storageErrors.NegativeBalanceError{Field: field}
	}
	s.setField(balance, field, updated)
	return nil
}

func (s *memStorage) ConvertBalance(_ context.Context, userID, fromField, toField string, amount decimal.Decimal) error {
	balance, ok := s.balances[userID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	if s.field(balance, fromField).LessThan(amount) {
		return &storageErrors.NotEnoughFundsError{Field: fromField}
	}
	s.setField(balance, fromField, s.field(balance, fromField).Sub(amount))
	s.setField(balance, toField, s.field(balance, toField).Add(amount))
	return nil
}

func (s *memStorage) CreateDepositRequest(_ context.Context, entry modelstorage.RequestStorageEntry) error {
	balance, ok := s.balances[entry.UserID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	balance.Pending = balance.Pending.Add(entry.Amount)
	stored := entry
	s.requests[entry.RequestID] = &stored
	return nil
}

func (s *memStorage) CreateWithdrawalRequest(_ context.Context, entry modelstorage.RequestStorageEntry) error {
	balance, ok := s.balances[entry.UserID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	if balance.Available.LessThan(entry.Amount) {
		return &storageErrors.NotEnoughFundsError{Field: modelstorage.FieldAvailable}
	}
	balance.Available = balance.Available.Sub(entry.Amount)
	stored := entry
	s.requests[entry.RequestID] = &stored
	return nil
}

func (s *memStorage) GetRequests(_ context.Context, userID string) ([]modelstorage.RequestStorageEntry, error) {
	var entries []modelstorage.RequestStorageEntry
	for _, request := range s.requests {
		if request.UserID == userID {
			entries = append(entries, *request)
		}
	}
	return entries, nil
}

func (s *memStorage) GetPendingRequests(_ context.Context, kind string) ([]modelstorage.RequestStorageEntry, error) {
	var entries []modelstorage.RequestStorageEntry
	for _, request := range s.requests {
		if request.Kind == kind && (request.Status == modelstorage.StatusPending || request.Status == modelstorage.StatusUnderReview) {
			entries = append(entries, *request)
		}
	}
	return entries, nil
}

func (s *memStorage) ApproveDeposit(_ context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	request, ok := s.requests[requestID]
	if !ok || request.Kind != modelstorage.KindDeposit {
		return nil, &storageErrors.NotFoundError{}
	}
	balance := s.balances[request.UserID]
	balance.Available = balance.Available.Add(request.Amount)
	balance.Pending = balance.Pending.Sub(request.Amount)
	entry := *request
	delete(s.requests, requestID)
	return &entry, nil
}

func (s *memStorage) CompleteWithdrawal(_ context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	request, ok := s.requests[requestID]
	if !ok || request.Kind != modelstorage.KindWithdrawal {
		return nil, &storageErrors.NotFoundError{}
	}
	request.Status = modelstorage.StatusCompleted
	entry := *request
	return &entry, nil
}

func (s *memStorage) DenyRequest(_ context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	request, ok := s.requests[requestID]
	if !ok {
		return nil, &storageErrors.NotFoundError{}
	}
	if request.Status == modelstorage.StatusCompleted {
		return nil, &storageErrors.InvalidStatusError{ID: requestID, Status: request.Status}
	}
	balance := s.balances[request.UserID]
	switch request.Kind {
	case modelstorage.KindWithdrawal:
		balance.Available = balance.Available.Add(request.Amount)
	case modelstorage.KindDeposit:
		release := request.Amount
		if balance.Pending.LessThan(release) {
			release = balance.Pending
		}
		balance.Pending = balance.Pending.Sub(release)
	}
	entry := *request
	delete(s.requests, requestID)
	return &entry, nil
}

func (s *memStorage) MarkUnderReview(_ context.Context, requestID string) error {
	request, ok := s.requests[requestID]
	if !ok {
		return &storageErrors.NotFoundError{}
	}
	if request.Status != modelstorage.StatusPending {
		return &storageErrors.InvalidStatusError{ID: requestID, Status: request.Status}
	}
	request.Status = modelstorage.StatusUnderReview
	return nil
}

func (s *memStorage) GetUsersSummary(_ context.Context) ([]modelstorage.UserSummaryStorageEntry, error) {
	var entries []modelstorage.UserSummaryStorageEntry
	for _, user := range s.users {
		balance := s.balances[user.UserID]
		entries = append(entries, modelstorage.UserSummaryStorageEntry{
			UserID:    user.UserID,
			Login:     user.Login,
			Name:      user.Name,
			Role:      user.Role,
			Patamar:   user.Patamar,
			Available: balance.Available,
			Referral:  balance.Referral,
		})
	}
	return entries, nil
}

func (s *memStorage) GetSettings(_ context.Context) (*modelstorage.SettingsStorageEntry, error) {
	entry := s.settings
	return &entry, nil
}

func (s *memStorage) UpdateSettings(_ context.Context, entry modelstorage.SettingsStorageEntry) error {
	s.settings = entry
	return nil
}

func (s *memStorage) field(balance *modelstorage.BalanceStorageEntry, field string) decimal.Decimal {
	switch field {
	case modelstorage.FieldAvailable:
		return balance.Available
	case modelstorage.FieldPending:
		return balance.Pending
	case modelstorage.FieldSecondary:
		return balance.Secondary
	default:
		return balance.Referral
	}
}

func (s *memStorage) setField(balance *modelstorage.BalanceStorageEntry, field string, value decimal.Decimal) {
	switch field {
	case modelstorage.FieldAvailable:
		balance.Available = value
	case modelstorage.FieldPending:
		balance.Pending = value
	case modelstorage.FieldSecondary:
		balance.Secondary = value
	default:
		balance.Referral = value
	}
}

func newTestWorkflow(t *testing.T) (*Workflow, *memStorage, chan modelqueue.NotificationQueueEntry) {
	t.Helper()
	secretaryService, err := secretary.NewSecretaryService(&config.SecretConfig{SecretKey: "test_secret_key"})
	if err != nil {
		t.Fatalf("could not initialize secretary: %v", err)
	}
	st := newMemStorage()
	queue := make(chan modelqueue.NotificationQueueEntry, 10)
	service, err := InitService(st, secretaryService, queue)
	if err != nil {
		t.Fatalf("could not initialize workflow: %v", err)
	}
	return service, st, queue
}

func registerUser(t *testing.T, service *Workflow, email, referredBy string) string {
	t.Helper()
	token, err := service.AddNewUser(context.Background(), modeldto.User{
		Name:       "Joao Silva",
		Email:      email,
		Phone:      "11999990000",
		Password:   "segredo",
		ReferredBy: referredBy,
	})
	if err != nil {
		t.Fatalf("registration failed: %v", err)
	}
	userID, err := service.GetUserID(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	return userID
}

func TestRegisterAndLogin(t *testing.T) {
	service, _, queue := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	token, err := service.LoginUser(context.Background(), modeldto.User{Email: "joao@example.com", Password: "segredo"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	loginUserID, err := service.GetUserID(token)
	if err != nil {
		t.Fatalf("token validation failed: %v", err)
	}
	if loginUserID != userID {
		t.Fatalf("expected user %s, got %s", userID, loginUserID)
	}
	entry := <-queue
	if entry.Action != modelqueue.ActionNewUser {
		t.Fatalf("expected action %s, got %s", modelqueue.ActionNewUser, entry.Action)
	}
}

func TestLoginRejectsUnknownUser(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	_, err := service.LoginUser(context.Background(), modeldto.User{Email: "ghost@example.com", Password: "segredo"})
	var notFoundError *storageErrors.NotFoundError
	if !errors.As(err, &notFoundError) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	registerUser(t, service, "joao@example.com", "")
	_, err := service.AddNewUser(context.Background(), modeldto.User{Email: "joao@example.com", Password: "outro"})
	var alreadyExistsError *storageErrors.AlreadyExistsError
	if !errors.As(err, &alreadyExistsError) {
		t.Fatalf("expected AlreadyExistsError, got %v", err)
	}
}

func TestReferralBonusAndPatamar(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	referrerID := registerUser(t, service, "referrer@example.com", "")
	for i := 0; i < 5; i++ {
		registerUser(t, service, fmt.Sprintf("ref%d@example.com", i), referrerID)
	}
	balance, err := service.GetBalance(context.Background(), referrerID)
	if err != nil {
		t.Fatalf("balance query failed: %v", err)
	}
	if !balance.Referral.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected referral balance 100, got %s", balance.Referral)
	}
	if st.users[referrerID].Patamar != modelstorage.TierPartner {
		t.Fatalf("expected patamar %s, got %s", modelstorage.TierPartner, st.users[referrerID].Patamar)
	}
}

func TestSubmitDepositEscrowsPending(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	receipt, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("deposit submission failed: %v", err)
	}
	if err := goluhn.Validate(receipt.Reference); err != nil {
		t.Fatalf("payment reference %s is not Luhn-valid: %v", receipt.Reference, err)
	}
	if len(receipt.Reference) != paymentReferenceLength {
		t.Fatalf("expected reference length %d, got %d", paymentReferenceLength, len(receipt.Reference))
	}
	balance := st.balances[userID]
	if !balance.Pending.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected pending 200, got %s", balance.Pending)
	}
	if !balance.Available.IsZero() {
		t.Fatalf("expected available 0, got %s", balance.Available)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 1 || requests[0].Status != modelstorage.StatusPending || requests[0].Kind != modelstorage.KindDeposit {
		t.Fatalf("unexpected request state: %+v", requests)
	}
}

func TestSubmitDepositRejectsNonPositiveAmount(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	_, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(-5)})
	var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
	if !errors.As(err, &serviceIllegalAmount) {
		t.Fatalf("expected ServiceIllegalAmount, got %v", err)
	}
}

func TestApproveDepositCreditsAndClearsPending(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	_, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("deposit submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindDeposit)
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending deposit, got %d", len(pending))
	}
	if err := service.ApproveDeposit(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("deposit approval failed: %v", err)
	}
	balance := st.balances[userID]
	if !balance.Available.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("expected available 200, got %s", balance.Available)
	}
	if !balance.Pending.IsZero() {
		t.Fatalf("expected pending 0 after approval, got %s", balance.Pending)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 0 {
		t.Fatalf("expected request removal after approval, got %d requests", len(requests))
	}
}

func TestDenyDepositClearsPendingWithoutCredit(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	_, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(80)})
	if err != nil {
		t.Fatalf("deposit submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindDeposit)
	if err := service.DenyRequest(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("deposit denial failed: %v", err)
	}
	balance := st.balances[userID]
	if !balance.Pending.IsZero() || !balance.Available.IsZero() {
		t.Fatalf("expected zeroed balances after denial, got available %s pending %s", balance.Available, balance.Pending)
	}
}

func TestDenyDepositFloorsPendingAtZero(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	_, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(80)})
	if err != nil {
		t.Fatalf("deposit submission failed: %v", err)
	}
	// pending was debited manually between submission and denial
	st.balances[userID].Pending = decimal.NewFromInt(30)
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindDeposit)
	if err := service.DenyRequest(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("deposit denial failed: %v", err)
	}
	balance := st.balances[userID]
	if balance.Pending.IsNegative() {
		t.Fatalf("pending must not go negative, got %s", balance.Pending)
	}
	if !balance.Pending.IsZero() {
		t.Fatalf("expected pending 0 after denial, got %s", balance.Pending)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 0 {
		t.Fatalf("expected request removal after denial, got %d requests", len(requests))
	}
}

func TestSubmitWithdrawalEscrowsAvailable(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(50)})
	if err != nil {
		t.Fatalf("withdrawal submission failed: %v", err)
	}
	if !st.balances[userID].Available.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("expected available 50 after escrow, got %s", st.balances[userID].Available)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 1 || requests[0].Status != modelstorage.StatusPending {
		t.Fatalf("unexpected request state: %+v", requests)
	}
}

func TestSubmitWithdrawalRejectsOverBalance(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(150)})
	var notEnoughFundsError *storageErrors.NotEnoughFundsError
	if !errors.As(err, &notEnoughFundsError) {
		t.Fatalf("expected NotEnoughFundsError, got %v", err)
	}
	if !st.balances[userID].Available.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected available unchanged at 100, got %s", st.balances[userID].Available)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 0 {
		t.Fatalf("expected no request after rejection, got %d", len(requests))
	}
}

func TestSubmitWithdrawalToForeignKeyLandsUnderReview(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(30), PixKey: "10987654321"})
	if err != nil {
		t.Fatalf("withdrawal submission failed: %v", err)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 1 || requests[0].Status != modelstorage.StatusUnderReview {
		t.Fatalf("expected em_analise status, got %+v", requests)
	}
}

func TestSubmitWithdrawalRejectsInvalidDestination(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	st.balances[userID].Available = decimal.NewFromInt(100)
	err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(30), PixKey: "not-a-cpf"})
	var serviceIllegalIdentifier *serviceErrors.ServiceIllegalIdentifier
	if !errors.As(err, &serviceIllegalIdentifier) {
		t.Fatalf("expected ServiceIllegalIdentifier, got %v", err)
	}
}

func TestApproveWithdrawalKeepsDebitAndMarksCompleted(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	if err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(40)}); err != nil {
		t.Fatalf("withdrawal submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindWithdrawal)
	if err := service.ApproveWithdrawal(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("withdrawal approval failed: %v", err)
	}
	if !st.balances[userID].Available.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("expected available 60 after payout, got %s", st.balances[userID].Available)
	}
	requests, _ := service.GetRequests(context.Background(), userID)
	if len(requests) != 1 || requests[0].Status != modelstorage.StatusCompleted {
		t.Fatalf("expected completed request kept in history, got %+v", requests)
	}
}

func TestDenyWithdrawalRestoresAvailable(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	if err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(40)}); err != nil {
		t.Fatalf("withdrawal submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindWithdrawal)
	if err := service.DenyRequest(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("withdrawal denial failed: %v", err)
	}
	if !st.balances[userID].Available.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected available restored to 100, got %s", st.balances[userID].Available)
	}
}

func TestDenyCompletedWithdrawalRejected(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	if err := service.SetPixKey(context.Background(), userID, "12345678901"); err != nil {
		t.Fatalf("pix key update failed: %v", err)
	}
	st.balances[userID].Available = decimal.NewFromInt(100)
	if err := service.SubmitWithdrawal(context.Background(), userID, modeldto.NewWithdrawal{Amount: decimal.NewFromInt(40)}); err != nil {
		t.Fatalf("withdrawal submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindWithdrawal)
	if err := service.ApproveWithdrawal(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("withdrawal approval failed: %v", err)
	}
	err := service.DenyRequest(context.Background(), pending[0].RequestID)
	var invalidStatusError *storageErrors.InvalidStatusError
	if !errors.As(err, &invalidStatusError) {
		t.Fatalf("expected InvalidStatusError, got %v", err)
	}
}

func TestMarkUnderReview(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	_, err := service.SubmitDeposit(context.Background(), userID, modeldto.NewDeposit{Amount: decimal.NewFromInt(10)})
	if err != nil {
		t.Fatalf("deposit submission failed: %v", err)
	}
	pending, _ := service.GetPendingRequests(context.Background(), modelstorage.KindDeposit)
	if err := service.MarkUnderReview(context.Background(), pending[0].RequestID); err != nil {
		t.Fatalf("review flagging failed: %v", err)
	}
	err = service.MarkUnderReview(context.Background(), pending[0].RequestID)
	var invalidStatusError *storageErrors.InvalidStatusError
	if !errors.As(err, &invalidStatusError) {
		t.Fatalf("expected InvalidStatusError on double flag, got %v", err)
	}
}

func TestGetPendingRequestsRejectsUnknownKind(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	_, err := service.GetPendingRequests(context.Background(), "transferencia")
	var serviceIllegalKind *serviceErrors.ServiceIllegalKind
	if !errors.As(err, &serviceIllegalKind) {
		t.Fatalf("expected ServiceIllegalKind, got %v", err)
	}
}

func TestConvertBalanceRoundTrip(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	st.balances[userID].Referral = decimal.NewFromInt(30)
	err := service.ConvertBalance(context.Background(), userID, modeldto.Conversion{
		FromField: modelstorage.FieldReferral,
		ToField:   modelstorage.FieldAvailable,
		Amount:    decimal.NewFromInt(10),
	})
	if err != nil {
		t.Fatalf("conversion failed: %v", err)
	}
	balance := st.balances[userID]
	if !balance.Referral.Equal(decimal.NewFromInt(20)) || !balance.Available.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("unexpected balances after conversion: referral %s available %s", balance.Referral, balance.Available)
	}
	err = service.ConvertBalance(context.Background(), userID, modeldto.Conversion{
		FromField: modelstorage.FieldReferral,
		ToField:   modelstorage.FieldAvailable,
		Amount:    decimal.NewFromInt(100),
	})
	var notEnoughFundsError *storageErrors.NotEnoughFundsError
	if !errors.As(err, &notEnoughFundsError) {
		t.Fatalf("expected NotEnoughFundsError, got %v", err)
	}
}

func TestConvertBalanceRoundTripLaw(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	st.balances[userID].Available = decimal.NewFromInt(70)
	st.balances[userID].Secondary = decimal.NewFromInt(5)
	forward := modeldto.Conversion{FromField: modelstorage.FieldAvailable, ToField: modelstorage.FieldSecondary, Amount: decimal.NewFromInt(25)}
	backward := modeldto.Conversion{FromField: modelstorage.FieldSecondary, ToField: modelstorage.FieldAvailable, Amount: decimal.NewFromInt(25)}
	if err := service.ConvertBalance(context.Background(), userID, forward); err != nil {
		t.Fatalf("forward conversion failed: %v", err)
	}
	if err := service.ConvertBalance(context.Background(), userID, backward); err != nil {
		t.Fatalf("backward conversion failed: %v", err)
	}
	balance := st.balances[userID]
	if !balance.Available.Equal(decimal.NewFromInt(70)) || !balance.Secondary.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("round trip did not restore balances: available %s secondary %s", balance.Available, balance.Secondary)
	}
}

func TestConvertBalanceRejectsIllegalFields(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	cases := []modeldto.Conversion{
		{FromField: "bitcoin", ToField: modelstorage.FieldAvailable, Amount: decimal.NewFromInt(1)},
		{FromField: modelstorage.FieldReferral, ToField: modelstorage.FieldReferral, Amount: decimal.NewFromInt(1)},
	}
	for _, conversion := range cases {
		err := service.ConvertBalance(context.Background(), userID, conversion)
		var serviceIllegalField *serviceErrors.ServiceIllegalField
		if !errors.As(err, &serviceIllegalField) {
			t.Fatalf("expected ServiceIllegalField for %+v, got %v", conversion, err)
		}
	}
}

func TestAdjustBalanceFloorsAtZero(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	st.balances[userID].Available = decimal.NewFromInt(20)
	err := service.AdjustBalance(context.Background(), userID, modeldto.Adjustment{
		Field: modelstorage.FieldAvailable,
		Delta: decimal.NewFromInt(-50),
	})
	var negativeBalanceError *storageErrors.NegativeBalanceError
	if !errors.As(err, &negativeBalanceError) {
		t.Fatalf("expected NegativeBalanceError, got %v", err)
	}
	if !st.balances[userID].Available.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("expected available unchanged at 20, got %s", st.balances[userID].Available)
	}
	err = service.AdjustBalance(context.Background(), userID, modeldto.Adjustment{
		Field: modelstorage.FieldAvailable,
		Delta: decimal.NewFromInt(-20),
	})
	if err != nil {
		t.Fatalf("adjustment to zero failed: %v", err)
	}
	if !st.balances[userID].Available.IsZero() {
		t.Fatalf("expected available 0, got %s", st.balances[userID].Available)
	}
}

func TestAdjustBalanceRejectsZeroDelta(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	err := service.AdjustBalance(context.Background(), userID, modeldto.Adjustment{Field: modelstorage.FieldAvailable})
	var serviceIllegalAmount *serviceErrors.ServiceIllegalAmount
	if !errors.As(err, &serviceIllegalAmount) {
		t.Fatalf("expected ServiceIllegalAmount, got %v", err)
	}
}

func TestGetUsersSummaryDecodesEmail(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	registerUser(t, service, "joao@example.com", "")
	summaries, err := service.GetUsersSummary(context.Background())
	if err != nil {
		t.Fatalf("summary query failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].Email != "joao@example.com" {
		t.Fatalf("unexpected summaries: %+v", summaries)
	}
}

func TestGetPlatformStats(t *testing.T) {
	service, st, _ := newTestWorkflow(t)
	firstID := registerUser(t, service, "a@example.com", "")
	secondID := registerUser(t, service, "b@example.com", "")
	st.balances[firstID].Available = decimal.NewFromInt(100)
	st.balances[secondID].Available = decimal.NewFromInt(50)
	st.balances[secondID].Referral = decimal.NewFromInt(20)
	stats, err := service.GetPlatformStats(context.Background())
	if err != nil {
		t.Fatalf("stats query failed: %v", err)
	}
	if stats.TotalUsers != 2 {
		t.Fatalf("expected 2 users, got %d", stats.TotalUsers)
	}
	if !stats.TotalBalance.Equal(decimal.NewFromInt(150)) || !stats.TotalReferral.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("unexpected totals: balance %s referral %s", stats.TotalBalance, stats.TotalReferral)
	}
}

func TestSupportMessageNotification(t *testing.T) {
	service, _, queue := newTestWorkflow(t)
	userID := registerUser(t, service, "joao@example.com", "")
	<-queue // drain the registration event
	if err := service.SendSupportMessage(context.Background(), userID, "preciso de ajuda"); err != nil {
		t.Fatalf("support message failed: %v", err)
	}
	entry := <-queue
	if entry.Action != modelqueue.ActionSupport || entry.Message != "preciso de ajuda" {
		t.Fatalf("unexpected queue entry: %+v", entry)
	}
}

func TestUpdateAndGetSettings(t *testing.T) {
	service, _, _ := newTestWorkflow(t)
	updated := modeldto.Settings{SiteName: "Capital Plus", PrimaryColor: "#102030"}
	if err := service.UpdateSettings(context.Background(), updated); err != nil {
		t.Fatalf("settings update failed: %v", err)
	}
	settings, err := service.GetSettings(context.Background())
	if err != nil {
		t.Fatalf("settings query failed: %v", err)
	}
	if settings.SiteName != "Capital Plus" || settings.PrimaryColor != "#102030" {
		t.Fatalf("unexpected settings: %+v", settings)
	}
}
