// Package modelstorage provides types for querying relational DB.

package modelstorage

import "github.com/shopspring/decimal"

// Request lifecycle constants as persisted in the requests table.
const (
	KindDeposit    = "deposito"
	KindWithdrawal = "saque"

	StatusPending     = "pendente"
	StatusUnderReview = "em_analise"
	StatusCompleted   = "concluido"
)

// User roles.
const (
	RoleClient = "cliente"
	RoleAdmin  = "admin"
)

// Referral program tiers (patamares).
const (
	TierAffiliate = "Afiliado"
	TierPartner   = "Parceiro"
	TierElite     = "Elite"
)

// Ledger field identifiers accepted by balance adjustment and conversion.
const (
	FieldAvailable = "available"
	FieldPending   = "pending"
	FieldSecondary = "secondary"
	FieldReferral  = "referral"
)

type UserStorageEntry struct {
	ID              uint   `db:"id"`
	UserID          string `db:"user_id"`
	Login           string `db:"login"`
	Password        string `db:"password"`
	Name            string `db:"name"`
	Phone           string `db:"phone"`
	Role            string `db:"role"`
	CPF             string `db:"cpf"`
	PixKey          string `db:"pix_key"`
	Patamar         string `db:"patamar"`
	DirectReferrals int    `db:"direct_referrals"`
	ReferredBy      string `db:"referred_by"`
	RegisteredAt    string `db:"registered_at"`
}

type BalanceStorageEntry struct {
	ID        uint            `db:"id"`
	UserID    string          `db:"user_id"`
	Available decimal.Decimal `db:"available"`
	Pending   decimal.Decimal `db:"pending"`
	Secondary decimal.Decimal `db:"secondary"`
	Referral  decimal.Decimal `db:"referral"`
}

type RequestStorageEntry struct {
	ID        uint            `db:"id"`
	RequestID string          `db:"request_id"`
	UserID    string          `db:"user_id"`
	UserName  string          `db:"user_name"`
	Kind      string          `db:"kind"`
	Amount    decimal.Decimal `db:"amount"`
	Status    string          `db:"status"`
	Reference string          `db:"reference"`
	PixKey    string          `db:"pix_key"`
	CreatedAt string          `db:"created_at"`
}

type UserSummaryStorageEntry struct {
	UserID    string          `db:"user_id"`
	Login     string          `db:"login"`
	Name      string          `db:"name"`
	Role      string          `db:"role"`
	Patamar   string          `db:"patamar"`
	Available decimal.Decimal `db:"available"`
	Referral  decimal.Decimal `db:"referral"`
}

type SettingsStorageEntry struct {
	SiteName           string `db:"site_name"`
	MainBgColor        string `db:"main_bg_color"`
	CardBgColor        string `db:"card_bg_color"`
	PrimaryColor       string `db:"primary_color"`
	HighlightColor     string `db:"highlight_color"`
	PrimaryTextColor   string `db:"primary_text_color"`
	SecondaryTextColor string `db:"secondary_text_color"`
	WhatsappLink       string `db:"whatsapp_link"`
	TelegramLink       string `db:"telegram_link"`
	PaymentKey         string `db:"payment_key"`
}

// IsBalanceField reports whether a field identifier names a ledger column.
func IsBalanceField(field string) bool {
	switch field {
	case FieldAvailable, FieldPending, FieldSecondary, FieldReferral:
		return true
	}
	return false
}

// PatamarFor maps a count of active direct referrals onto a career tier.
func PatamarFor(directReferrals int) string {
	switch {
	case directReferrals >= 20:
		return TierElite
	case directReferrals >= 5:
		return TierPartner
	default:
		return TierAffiliate
	}
}
