// Package workflow defines the request workflow engine contract.
package workflow

import (
	"context"

	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
)

// Workflow defines a set of methods for types implementing Workflow.
type Workflow interface {
	GetUserID(accessToken string) (string, error)
	GetUserRole(ctx context.Context, userID string) (string, error)
	AddNewUser(ctx context.Context, credentials modeldto.User) (string, error)
	LoginUser(ctx context.Context, credentials modeldto.User) (string, error)
	GetBalance(ctx context.Context, userID string) (*modeldto.Balance, error)
	GetRequests(ctx context.Context, userID string) ([]modeldto.RequestRecord, error)
	SubmitDeposit(ctx context.Context, userID string, deposit modeldto.NewDeposit) (*modeldto.DepositReceipt, error)
	SubmitWithdrawal(ctx context.Context, userID string, withdrawal modeldto.NewWithdrawal) error
	ConvertBalance(ctx context.Context, userID string, conversion modeldto.Conversion) error
	SetPixKey(ctx context.Context, userID, cpf string) error
	SendSupportMessage(ctx context.Context, userID, message string) error
	GetSettings(ctx context.Context) (*modeldto.Settings, error)

	GetPendingRequests(ctx context.Context, kind string) ([]modeldto.RequestRecord, error)
	ApproveDeposit(ctx context.Context, requestID string) error
	ApproveWithdrawal(ctx context.Context, requestID string) error
	DenyRequest(ctx context.Context, requestID string) error
	MarkUnderReview(ctx context.Context, requestID string) error
	AdjustBalance(ctx context.Context, userID string, adjustment modeldto.Adjustment) error
	GetUsersSummary(ctx context.Context) ([]modeldto.UserSummary, error)
	GetPlatformStats(ctx context.Context) (*modeldto.PlatformStats, error)
	UpdateSettings(ctx context.Context, settings modeldto.Settings) error
}
