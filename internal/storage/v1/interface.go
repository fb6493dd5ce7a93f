// Package storage defines the persistence contract of the platform.
package storage

import (
	"context"

	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	"github.com/shopspring/decimal"
)

// Register defines authentication-related persistence methods. A non-zero
// referralBonus is credited to the referrer inside the registration
// transaction.
type Register interface {
	AddNewUser(ctx context.Context, credentials modeldto.User, userID string, referralBonus decimal.Decimal) error
	CheckUser(ctx context.Context, credentials modeldto.User) (string, error)
	GetUser(ctx context.Context, userID string) (*modelstorage.UserStorageEntry, error)
	SetPixKey(ctx context.Context, userID, cpf string) error
}

// Ledger defines balance persistence methods.
type Ledger interface {
	GetBalance(ctx context.Context, userID string) (*modelstorage.BalanceStorageEntry, error)
	AdjustBalance(ctx context.Context, userID, field string, delta decimal.Decimal) error
	ConvertBalance(ctx context.Context, userID, fromField, toField string, amount decimal.Decimal) error
}

// Requests defines request workflow persistence methods. All mutations are
// single SQL transactions holding row locks on the affected ledger.
type Requests interface {
	CreateDepositRequest(ctx context.Context, entry modelstorage.RequestStorageEntry) error
	CreateWithdrawalRequest(ctx context.Context, entry modelstorage.RequestStorageEntry) error
	GetRequests(ctx context.Context, userID string) ([]modelstorage.RequestStorageEntry, error)
	GetPendingRequests(ctx context.Context, kind string) ([]modelstorage.RequestStorageEntry, error)
	ApproveDeposit(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error)
	CompleteWithdrawal(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error)
	DenyRequest(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error)
	MarkUnderReview(ctx context.Context, requestID string) error
}

// Admin defines administrative reporting and settings persistence methods.
type Admin interface {
	GetUsersSummary(ctx context.Context) ([]modelstorage.UserSummaryStorageEntry, error)
	GetSettings(ctx context.Context) (*modelstorage.SettingsStorageEntry, error)
	UpdateSettings(ctx context.Context, entry modelstorage.SettingsStorageEntry) error
}

type Storage interface {
	Register
	Ledger
	Requests
	Admin
}
