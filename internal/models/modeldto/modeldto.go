// Package modeldto provides types for API request and response payloads.

package modeldto

import "github.com/shopspring/decimal"

type (
	// User carries registration and login credentials; Name, Phone and
	// ReferredBy are only set on registration.
	User struct {
		Name       string `json:"name,omitempty"`
		Email      string `json:"email"`
		Phone      string `json:"phone,omitempty"`
		Password   string `json:"password"`
		ReferredBy string `json:"ref,omitempty"`
	}
	Balance struct {
		Available decimal.Decimal `json:"available"`
		Pending   decimal.Decimal `json:"pending"`
		Secondary decimal.Decimal `json:"secondary"`
		Referral  decimal.Decimal `json:"referral"`
	}
	RequestRecord struct {
		RequestID string          `json:"id"`
		Kind      string          `json:"kind"`
		UserName  string          `json:"user_name"`
		Amount    decimal.Decimal `json:"amount"`
		Status    string          `json:"status"`
		Reference string          `json:"reference,omitempty"`
		PixKey    string          `json:"pix_key,omitempty"`
		CreatedAt string          `json:"created_at"`
	}
	NewDeposit struct {
		Amount decimal.Decimal `json:"amount"`
	}
	DepositReceipt struct {
		Reference string `json:"reference"`
	}
	NewWithdrawal struct {
		Amount decimal.Decimal `json:"amount"`
		PixKey string          `json:"pix_key"`
	}
	Conversion struct {
		FromField string          `json:"from"`
		ToField   string          `json:"to"`
		Amount    decimal.Decimal `json:"amount"`
	}
	Adjustment struct {
		Field string          `json:"field"`
		Delta decimal.Decimal `json:"delta"`
	}
	PixKey struct {
		CPF string `json:"cpf"`
	}
	SupportMessage struct {
		Message string `json:"message"`
	}
	Settings struct {
		SiteName           string `json:"siteName"`
		MainBgColor        string `json:"mainBgColor"`
		CardBgColor        string `json:"cardBgColor"`
		PrimaryColor       string `json:"primaryColor"`
		HighlightColor     string `json:"highlightColor"`
		PrimaryTextColor   string `json:"primaryTextColor"`
		SecondaryTextColor string `json:"secondaryTextColor"`
		WhatsappLink       string `json:"whatsappLink"`
		TelegramLink       string `json:"telegramLink"`
		PaymentKey         string `json:"paymentKey"`
	}
	UserSummary struct {
		UserID    string          `json:"id"`
		Name      string          `json:"name"`
		Email     string          `json:"email"`
		Role      string          `json:"role"`
		Patamar   string          `json:"patamar"`
		Available decimal.Decimal `json:"available"`
		Referral  decimal.Decimal `json:"referral"`
	}
	PlatformStats struct {
		TotalUsers    int             `json:"total_users"`
		TotalBalance  decimal.Decimal `json:"total_balance"`
		TotalReferral decimal.Decimal `json:"total_referral"`
	}
	// Notification is the wire payload accepted by the relay endpoint.
	Notification struct {
		Action  string              `json:"action"`
		Details NotificationDetails `json:"details"`
		Config  NotificationConfig  `json:"config"`
	}
	NotificationDetails struct {
		Nome     string `json:"nome"`
		Valor    string `json:"valor,omitempty"`
		Email    string `json:"email,omitempty"`
		Status   string `json:"status,omitempty"`
		Mensagem string `json:"mensagem,omitempty"`
	}
	NotificationConfig struct {
		TelegramToken  string `json:"telegramToken"`
		TelegramChatID string `json:"telegramChatId"`
	}
	RelayResponse struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
)
