package inpsql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/shopspring/decimal"
)

const selectRequestForUpdate = `SELECT id, request_id, user_id, user_name, kind, amount, status, reference, pix_key, created_at FROM requests WHERE request_id = $1 FOR UPDATE`

// CreateDepositRequest inserts a pending deposit request and moves its amount
// onto the requester's pending balance in one transaction.
func (s *Storage) CreateDepositRequest(ctx context.Context, entry modelstorage.RequestStorageEntry) error {
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
		_, err = tx.ExecContext(ctx, `INSERT INTO requests (request_id, user_id, user_name, kind, amount, status, reference, pix_key, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.RequestID, entry.UserID, entry.UserName, modelstorage.KindDeposit, entry.Amount, modelstorage.StatusPending, entry.Reference, "", entry.CreatedAt)
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: entry.RequestID}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		res, err := tx.ExecContext(ctx, `UPDATE balances SET pending = pending + $1 WHERE user_id = $2`, entry.Amount, entry.UserID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		affected, err := res.RowsAffected()
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if affected == 0 {
			chanEr <- &storageErrors.NotFoundError{Err: nil}
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
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("creating deposit request failed for %s", entry.UserID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("creating deposit request failed for %s", entry.UserID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("creating deposit request done for %s", entry.UserID))
		return nil
	}
}

// CreateWithdrawalRequest re-reads the available balance under a row lock,
// escrows the requested amount and inserts the request in one transaction.
// The client's last-synced balance is never trusted.
func (s *Storage) CreateWithdrawalRequest(ctx context.Context, entry modelstorage.RequestStorageEntry) error {
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
		var available decimal.Decimal
		err = tx.QueryRowContext(ctx, `SELECT available FROM balances WHERE user_id = $1 FOR UPDATE`, entry.UserID).Scan(&available)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			}
			chanEr <- &storageErrors.ScanningPSQLError{Err: err}
			return
		}
		if available.LessThan(entry.Amount) {
			chanEr <- &storageErrors.NotEnoughFundsError{Field: modelstorage.FieldAvailable}
			return
		}
		_, err = tx.ExecContext(ctx, `UPDATE balances SET available = available - $1 WHERE user_id = $2`, entry.Amount, entry.UserID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO requests (request_id, user_id, user_name, kind, amount, status, reference, pix_key, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			entry.RequestID, entry.UserID, entry.UserName, modelstorage.KindWithdrawal, entry.Amount, entry.Status, "", entry.PixKey, entry.CreatedAt)
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: entry.RequestID}
				return
			}
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
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("creating withdrawal request failed for %s", entry.UserID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("creating withdrawal request failed for %s", entry.UserID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("creating withdrawal request done for %s", entry.UserID))
		return nil
	}
}

// GetRequests retrieves all requests of one user, oldest first.
func (s *Storage) GetRequests(ctx context.Context, userID string) ([]modelstorage.RequestStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, request_id, user_id, user_name, kind, amount, status, reference, pix_key, created_at FROM requests WHERE user_id = $1 ORDER BY id`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryRequests(ctx, selectStmt, userID)
}

// GetPendingRequests retrieves all requests of a kind still awaiting an admin
// decision (pendente or em_analise).
func (s *Storage) GetPendingRequests(ctx context.Context, kind string) ([]modelstorage.RequestStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, request_id, user_id, user_name, kind, amount, status, reference, pix_key, created_at FROM requests WHERE kind = $1 AND status IN ('pendente', 'em_analise') ORDER BY id`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	return s.queryRequests(ctx, selectStmt, kind)
}

func (s *Storage) queryRequests(ctx context.Context, selectStmt *sql.Stmt, arg string) ([]modelstorage.RequestStorageEntry, error) {
	chanOk := make(chan []modelstorage.RequestStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		rows, err := selectStmt.QueryContext(ctx, arg)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		defer rows.Close()
		var queryOutput []modelstorage.RequestStorageEntry
		for rows.Next() {
			var queryOutputRow modelstorage.RequestStorageEntry
			err = rows.Scan(&queryOutputRow.ID, &queryOutputRow.RequestID, &queryOutputRow.UserID, &queryOutputRow.UserName, &queryOutputRow.Kind, &queryOutputRow.Amount, &queryOutputRow.Status, &queryOutputRow.Reference, &queryOutputRow.PixKey, &queryOutputRow.CreatedAt)
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
		s.log.Error().Err(ctx.Err()).Msg("getting requests failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting requests failed")
		return nil, methodErr
	case entries := <-chanOk:
		return entries, nil
	}
}

// ApproveDeposit credits the requester's available balance, releases the same
// amount from the pending balance and deletes the request, all in one
// transaction. The pending decrement keeps the ledger from double-counting an
// approved deposit.
func (s *Storage) ApproveDeposit(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	chanOk := make(chan modelstorage.RequestStorageEntry)
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
		entry, err := scanRequestRow(tx.QueryRowContext(ctx, selectRequestForUpdate, requestID))
		if err != nil {
			chanEr <- err
			return
		}
		if entry.Kind != modelstorage.KindDeposit {
			chanEr <- &storageErrors.NotFoundError{Err: nil}
			return
		}
		_, err = tx.ExecContext(ctx, `UPDATE balances SET available = available + $1, pending = pending - $1 WHERE user_id = $2`, entry.Amount, entry.UserID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE request_id = $1`, requestID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		chanOk <- entry
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("approving deposit failed for %s", requestID))
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("approving deposit failed for %s", requestID))
		return nil, methodErr
	case entry := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("approving deposit done for %s", requestID))
		return &entry, nil
	}
}

// CompleteWithdrawal marks a withdrawal request as concluido. Funds were
// escrowed at submission time, no ledger mutation happens here. Completing an
// already completed request is a no-op.
func (s *Storage) CompleteWithdrawal(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	chanOk := make(chan modelstorage.RequestStorageEntry)
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
		entry, err := scanRequestRow(tx.QueryRowContext(ctx, selectRequestForUpdate, requestID))
		if err != nil {
			chanEr <- err
			return
		}
		if entry.Kind != modelstorage.KindWithdrawal {
			chanEr <- &storageErrors.NotFoundError{Err: nil}
			return
		}
		if entry.Status == modelstorage.StatusCompleted {
			if err := tx.Commit(); err != nil {
				chanEr <- &storageErrors.TransactionPSQLError{Err: err}
				return
			}
			chanOk <- entry
			return
		}
		_, err = tx.ExecContext(ctx, `UPDATE requests SET status = $1 WHERE request_id = $2`, modelstorage.StatusCompleted, requestID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		entry.Status = modelstorage.StatusCompleted
		chanOk <- entry
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("completing withdrawal failed for %s", requestID))
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("completing withdrawal failed for %s", requestID))
		return nil, methodErr
	case entry := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("completing withdrawal done for %s", requestID))
		return &entry, nil
	}
}

// DenyRequest deletes a request and reverses its ledger effect: escrowed
// withdrawal funds return to the available balance, denied deposit amounts are
// released from the pending balance.
func (s *Storage) DenyRequest(ctx context.Context, requestID string) (*modelstorage.RequestStorageEntry, error) {
	chanOk := make(chan modelstorage.RequestStorageEntry)
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
		entry, err := scanRequestRow(tx.QueryRowContext(ctx, selectRequestForUpdate, requestID))
		if err != nil {
			chanEr <- err
			return
		}
		if entry.Status == modelstorage.StatusCompleted {
			chanEr <- &storageErrors.InvalidStatusError{ID: requestID, Status: entry.Status}
			return
		}
		switch entry.Kind {
		case modelstorage.KindWithdrawal:
			_, err = tx.ExecContext(ctx, `UPDATE balances SET available = available + $1 WHERE user_id = $2`, entry.Amount, entry.UserID)
		case modelstorage.KindDeposit:
			// the pending balance may have been debited manually since
			// submission; the release is clamped so pending never goes negative
			var pending decimal.Decimal
			err = tx.QueryRowContext(ctx, `SELECT pending FROM balances WHERE user_id = $1 FOR UPDATE`, entry.UserID).Scan(&pending)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					chanEr <- &storageErrors.NotFoundError{Err: err}
					return
				}
				chanEr <- &storageErrors.ScanningPSQLError{Err: err}
				return
			}
			release := entry.Amount
			if pending.LessThan(release) {
				release = pending
			}
			_, err = tx.ExecContext(ctx, `UPDATE balances SET pending = pending - $1 WHERE user_id = $2`, release, entry.UserID)
		}
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM requests WHERE request_id = $1`, requestID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		chanOk <- entry
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("denying request failed for %s", requestID))
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("denying request failed for %s", requestID))
		return nil, methodErr
	case entry := <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("denying request done for %s", requestID))
		return &entry, nil
	}
}

// MarkUnderReview transitions a pending request to em_analise.
func (s *Storage) MarkUnderReview(ctx context.Context, requestID string) error {
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
		entry, err := scanRequestRow(tx.QueryRowContext(ctx, selectRequestForUpdate, requestID))
		if err != nil {
			chanEr <- err
			return
		}
		if entry.Status != modelstorage.StatusPending {
			chanEr <- &storageErrors.InvalidStatusError{ID: requestID, Status: entry.Status}
			return
		}
		_, err = tx.ExecContext(ctx, `UPDATE requests SET status = $1 WHERE request_id = $2`, modelstorage.StatusUnderReview, requestID)
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
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("marking request under review failed for %s", requestID))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("marking request under review failed for %s", requestID))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("marking request under review done for %s", requestID))
		return nil
	}
}

func scanRequestRow(row *sql.Row) (modelstorage.RequestStorageEntry, error) {
	var entry modelstorage.RequestStorageEntry
	err := row.Scan(&entry.ID, &entry.RequestID, &entry.UserID, &entry.UserName, &entry.Kind, &entry.Amount, &entry.Status, &entry.Reference, &entry.PixKey, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return entry, &storageErrors.NotFoundError{Err: err}
		}
		return entry, &storageErrors.ScanningPSQLError{Err: err}
	}
	return entry, nil
}
