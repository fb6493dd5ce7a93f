package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/shopspring/decimal"
)

// AdjustBalance applies a signed delta to one ledger field under a row lock;
// a delta that would drive the field negative is rejected.
func (s *Storage) AdjustBalance(ctx context.Context, userID, field string, delta decimal.Decimal) error {
	column, ok := balanceColumns[field]
	if !ok {
		return &storageErrors.ExecutionPSQLError{Err: fmt.Errorf("unknown balance field %s", field)}
	}
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		var current decimal.Decimal
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM balances WHERE user_id = $1 FOR UPDATE`, column), userID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		if current.Add(delta).IsNegative() {
			chanEr <- &storageErrors.NegativeBalanceError{Field: field}
			return
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE balances SET %s = %s + $1 WHERE user_id = $2`, column, column), delta, userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adjusting balance failed for %s", userID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adjusting balance failed for %s", userID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adjusting balance done for %s", userID))
		return nil
	}
}

// ConvertBalance moves an amount between two ledger fields at a 1:1 rate under
// a row lock.
func (s *Storage) ConvertBalance(ctx context.Context, userID, fromField, toField string, amount decimal.Decimal) error {
	fromColumn, ok := balanceColumns[fromField]
	if !ok {
		return &storageErrors.ExecutionPSQLError{Err: fmt.Errorf("unknown balance field %s", fromField)}
	}
	toColumn, ok := balanceColumns[toField]
	if !ok {
		return &storageErrors.ExecutionPSQLError{Err: fmt.Errorf("unknown balance field %s", toField)}
	}
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		tx, err := s.DB.BeginTx(ctx, nil)
		if err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		defer tx.Rollback()
		var current decimal.Decimal
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM balances WHERE user_id = $1 FOR UPDATE`, fromColumn), userID).Scan(&current)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		if current.LessThan(amount) {
			chanEr <- &storageErrors.NotEnoughFundsError{Field: fromField}
			return
		}
		_, err = tx.ExecContext(ctx, fmt.Sprintf(`UPDATE balances SET %s = %s - $1, %s = %s + $1 WHERE user_id = $2`, fromColumn, fromColumn, toColumn, toColumn), amount, userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("converting balance failed for %s", userID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("converting balance failed for %s", userID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("converting balance done for %s", userID))
		return nil
	}
}

// GetUsersSummary joins users with their ledgers for the admin dashboard.
func (s *Storage) GetUsersSummary(ctx context.Context) ([]modelstorage.UserSummaryStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT u.user_id, u.login, u.name, u.role, u.patamar, b.available, b.referral FROM users u JOIN balances b ON b.user_id = u.user_id ORDER BY u.id`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan []modelstorage.UserSummaryStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := selectStmt.QueryContext(ctx)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.UserSummaryStorageEntry
		for rows.Next() {
			var queryOutputRow modelstorage.UserSummaryStorageEntry
			err = rows.Scan(&queryOutputRow.UserID, &queryOutputRow.Login, &queryOutputRow.Name, &queryOutputRow.Role, &queryOutputRow.Patamar, &queryOutputRow.Available, &queryOutputRow.Referral)
			if err != nil {
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			queryOutput = append(queryOutput, queryOutputRow)
		}
		err = rows.Err()
		if err != nil {
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting users summary failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting users summary failed")
		return nil, methodErr
	case entries := <-chanOk:
		return entries, nil
	}
}

// GetSettings retrieves the singleton platform settings row.
func (s *Storage) GetSettings(ctx context.Context) (*modelstorage.SettingsStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT site_name, main_bg_color, card_bg_color, primary_color, highlight_color, primary_text_color, secondary_text_color, whatsapp_link, telegram_link, payment_key FROM settings WHERE id = 1`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan modelstorage.SettingsStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var queryOutput modelstorage.SettingsStorageEntry
		err := selectStmt.QueryRowContext(ctx).Scan(&queryOutput.SiteName, &queryOutput.MainBgColor, &queryOutput.CardBgColor, &queryOutput.PrimaryColor, &queryOutput.HighlightColor, &queryOutput.PrimaryTextColor, &queryOutput.SecondaryTextColor, &queryOutput.WhatsappLink, &queryOutput.TelegramLink, &queryOutput.PaymentKey)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting settings failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting settings failed")
		return nil, methodErr
	case entry := <-chanOk:
		return &entry, nil
	}
}

// UpdateSettings overwrites the singleton platform settings row.
func (s *Storage) UpdateSettings(ctx context.Context, entry modelstorage.SettingsStorageEntry) error {
	updateStmt, err := s.DB.PrepareContext(ctx, `UPDATE settings SET site_name = $1, main_bg_color = $2, card_bg_color = $3, primary_color = $4, highlight_color = $5, primary_text_color = $6, secondary_text_color = $7, whatsapp_link = $8, telegram_link = $9, payment_key = $10 WHERE id = 1`)
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		_, err := updateStmt.ExecContext(ctx, entry.SiteName, entry.MainBgColor, entry.CardBgColor, entry.PrimaryColor, entry.HighlightColor, entry.PrimaryTextColor, entry.SecondaryTextColor, entry.WhatsappLink, entry.TelegramLink, entry.PaymentKey)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("updating settings failed")
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("updating settings failed")
		return methodErr
	case <-chanOk:
		s.log.Info().Msg("updating settings done")
		return nil
	}
}
