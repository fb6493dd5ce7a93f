// Package modelqueue provides types for queueing notification events.

package modelqueue

import "time"

// Relay actions understood by the notification endpoint.
const (
	ActionNewDeposit    = "novo_deposito"
	ActionNewWithdrawal = "novo_saque"
	ActionNewUser       = "novo_usuario"
	ActionSupport       = "suporte"
)

type NotificationQueueEntry struct {
	Action      string
	Name        string
	Amount      string
	Email       string
	Status      string
	Message     string
	RetryCount  int
	LastAttempt time.Time
}
