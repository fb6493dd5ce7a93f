// Package inpsql implements the storage contract on top of PostgreSQL.
package inpsql

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/VSFLima/Byte-Capital/internal/config"
	"github.com/VSFLima/Byte-Capital/internal/models/modeldto"
	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	storageErrors "github.com/VSFLima/Byte-Capital/internal/storage/v1/errors"
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	_ "github.com/jackc/pgx/v4/stdlib"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// balanceColumns whitelists ledger field identifiers against column names;
// field names are interpolated into SQL and must never come from user input
// without passing through this map.
var balanceColumns = map[string]string{
	modelstorage.FieldAvailable: "available",
	modelstorage.FieldPending:   "pending",
	modelstorage.FieldSecondary: "secondary",
	modelstorage.FieldReferral:  "referral",
}

// Storage defines a PSQL-backed storage and its attributes.
type Storage struct {
	mu  sync.Mutex
	Cfg *config.StorageConfig
	DB  *sql.DB
	log *zerolog.Logger
}

// InitStorage establishes a DB connection, runs table initialization and sets
// a connection closer bound to the global context.
func InitStorage(ctx context.Context, cfg *config.StorageConfig, log *zerolog.Logger, wg *sync.WaitGroup) (*Storage, error) {
	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	st := Storage{
		Cfg: cfg,
		DB:  db,
		log: log,
	}
	err = st.createTables(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("")
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		err := st.DB.Close()
		if err != nil {
			st.log.Error().Err(err).Msg("closing PSQL connection failed")
		}
		st.log.Info().Msg("PSQL DB connection closed")
	}()
	log.Info().Msg("PSQL DB connection was established")
	return &st, nil
}

// AddNewUser creates an auth entry and a zeroed ledger for a new user and
// credits the referrer, all in one transaction.
func (s *Storage) AddNewUser(ctx context.Context, credentials modeldto.User, userID string, referralBonus decimal.Decimal) error {
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
		_, err = tx.ExecContext(ctx, `INSERT INTO users (user_id, login, password, name, phone, role, patamar, referred_by, registered_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			userID, credentials.Email, credentials.Password, credentials.Name, credentials.Phone, modelstorage.RoleClient, modelstorage.TierAffiliate, credentials.ReferredBy, time.Now().Format(time.RFC3339))
		if err != nil {
			if err, ok := err.(*pgconn.PgError); ok && err.Code == pgerrcode.UniqueViolation {
				chanEr <- &storageErrors.AlreadyExistsError{Err: err, ID: credentials.Email}
				return
			}
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO balances (user_id, available, pending, secondary, referral) VALUES ($1, 0, 0, 0, 0)`, userID)
		if err != nil {
			chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
			return
		}
		if credentials.ReferredBy != "" && referralBonus.IsPositive() {
			// a dangling referral code must not fail registration
			var directReferrals int
			err = tx.QueryRowContext(ctx, `UPDATE users SET direct_referrals = direct_referrals + 1 WHERE user_id = $1 RETURNING direct_referrals`, credentials.ReferredBy).Scan(&directReferrals)
			if err == nil {
				_, err = tx.ExecContext(ctx, `UPDATE users SET patamar = $1 WHERE user_id = $2`, modelstorage.PatamarFor(directReferrals), credentials.ReferredBy)
				if err != nil {
					chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
					return
				}
				_, err = tx.ExecContext(ctx, `UPDATE balances SET referral = referral + $1 WHERE user_id = $2`, referralBonus, credentials.ReferredBy)
				if err != nil {
					chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
					return
				}
			} else if !errors.Is(err, sql.ErrNoRows) {
				chanEr <- &storageErrors.ExecutionPSQLError{Err: err}
				return
			}
		}
		if err := tx.Commit(); err != nil {
			chanEr <- &storageErrors.TransactionPSQLError{Err: err}
			return
		}
		chanOk <- true
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg(fmt.Sprintf("adding new user failed for %s", credentials.Email))
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg(fmt.Sprintf("adding new user failed for %s", credentials.Email))
		return methodErr
	case <-chanOk:
		s.log.Info().Msg(fmt.Sprintf("adding new user done for %s", credentials.Email))
		return nil
	}
}

// CheckUser authenticates ciphered credentials and returns the user identifier.
func (s *Storage) CheckUser(ctx context.Context, credentials modeldto.User) (string, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT user_id, password FROM users WHERE login = $1`)
	if err != nil {
		return "", &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan string)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var userID, password string
		err := selectStmt.QueryRowContext(ctx, credentials.Email).Scan(&userID, &password)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			default:
				chanEr <- err
				return
			}
		}
		passwordHash := sha256.Sum256([]byte(credentials.Password))
		expectedPasswordHash := sha256.Sum256([]byte(password))
		passwordMatch := subtle.ConstantTimeCompare(passwordHash[:], expectedPasswordHash[:]) == 1
		if !passwordMatch {
			chanEr <- &storageErrors.NotFoundError{Err: nil}
			return
		}
		chanOk <- userID
	}()

	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("user authentication failed")
		return "", &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("user authentication failed")
		return "", methodErr
	case userID := <-chanOk:
		s.log.Info().Msg("user authentication done")
		return userID, nil
	}
}

// GetUser retrieves a full user entry by identifier.
func (s *Storage) GetUser(ctx context.Context, userID string) (*modelstorage.UserStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, user_id, login, password, name, phone, role, COALESCE(cpf, ''), COALESCE(pix_key, ''), patamar, direct_referrals, referred_by, registered_at FROM users WHERE user_id = $1`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan modelstorage.UserStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var queryOutput modelstorage.UserStorageEntry
		err := selectStmt.QueryRowContext(ctx, userID).Scan(&queryOutput.ID, &queryOutput.UserID, &queryOutput.Login, &queryOutput.Password, &queryOutput.Name, &queryOutput.Phone, &queryOutput.Role, &queryOutput.CPF, &queryOutput.PixKey, &queryOutput.Patamar, &queryOutput.DirectReferrals, &queryOutput.ReferredBy, &queryOutput.RegisteredAt)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			default:
				chanEr <- err
				return
			}
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting user failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting user failed")
		return nil, methodErr
	case entry := <-chanOk:
		return &entry, nil
	}
}

// SetPixKey stores a validated CPF as the payout PIX key.
func (s *Storage) SetPixKey(ctx context.Context, userID, cpf string) error {
	updateStmt, err := s.DB.PrepareContext(ctx, `UPDATE users SET cpf = $1, pix_key = $1 WHERE user_id = $2`)
	if err != nil {
		return &storageErrors.StatementPSQLError{Err: err}
	}
	defer updateStmt.Close()
	chanOk := make(chan bool)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		res, err := updateStmt.ExecContext(ctx, cpf, userID)
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
		chanOk <- true
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("setting PIX key failed")
		return &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("setting PIX key failed")
		return methodErr
	case <-chanOk:
		s.log.Info().Msg("setting PIX key done")
		return nil
	}
}

// GetBalance retrieves the full ledger of a user.
func (s *Storage) GetBalance(ctx context.Context, userID string) (*modelstorage.BalanceStorageEntry, error) {
	selectStmt, err := s.DB.PrepareContext(ctx, `SELECT id, user_id, available, pending, secondary, referral FROM balances WHERE user_id = $1`)
	if err != nil {
		return nil, &storageErrors.StatementPSQLError{Err: err}
	}
	defer selectStmt.Close()
	chanOk := make(chan modelstorage.BalanceStorageEntry)
	chanEr := make(chan error)
	go func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var queryOutput modelstorage.BalanceStorageEntry
		err := selectStmt.QueryRowContext(ctx, userID).Scan(&queryOutput.ID, &queryOutput.UserID, &queryOutput.Available, &queryOutput.Pending, &queryOutput.Secondary, &queryOutput.Referral)
		if err != nil {
			switch {
			case errors.Is(err, sql.ErrNoRows):
				chanEr <- &storageErrors.NotFoundError{Err: err}
				return
			default:
				chanEr <- err
				return
			}
		}
		chanOk <- queryOutput
	}()
	select {
	case <-ctx.Done():
		s.log.Error().Err(ctx.Err()).Msg("getting current balance failed")
		return nil, &storageErrors.ContextTimeoutExceededError{Err: ctx.Err()}
	case methodErr := <-chanEr:
		s.log.Error().Err(methodErr).Msg("getting current balance failed")
		return nil, methodErr
	case entry := <-chanOk:
		return &entry, nil
	}
}

func (s *Storage) createTables(ctx context.Context) error {
	var queries []string
	query := `CREATE TABLE IF NOT EXISTS users (
		id               BIGSERIAL NOT NULL,
		user_id          TEXT      NOT NULL UNIQUE,
		login            TEXT      NOT NULL UNIQUE,
		password         TEXT      NOT NULL,
		name             TEXT      NOT NULL,
		phone            TEXT      NOT NULL DEFAULT '',
		role             TEXT      NOT NULL DEFAULT 'cliente',
		cpf              TEXT,
		pix_key          TEXT,
		patamar          TEXT      NOT NULL DEFAULT 'Afiliado',
		direct_referrals INTEGER   NOT NULL DEFAULT 0,
		referred_by      TEXT      NOT NULL DEFAULT '',
		registered_at    TEXT      NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS balances (
		id        BIGSERIAL      NOT NULL,
		user_id   TEXT           NOT NULL UNIQUE,
		available NUMERIC(14, 2) NOT NULL,
		pending   NUMERIC(14, 2) NOT NULL,
		secondary NUMERIC(14, 2) NOT NULL,
		referral  NUMERIC(14, 2) NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS requests (
		id         BIGSERIAL      NOT NULL,
		request_id TEXT           NOT NULL UNIQUE,
		user_id    TEXT           NOT NULL,
		user_name  TEXT           NOT NULL,
		kind       TEXT           NOT NULL,
		amount     NUMERIC(14, 2) NOT NULL,
		status     TEXT           NOT NULL,
		reference  TEXT           NOT NULL DEFAULT '',
		pix_key    TEXT           NOT NULL DEFAULT '',
		created_at TEXT           NOT NULL
	);`
	queries = append(queries, query)
	query = `CREATE TABLE IF NOT EXISTS settings (
		id                   INTEGER PRIMARY KEY,
		site_name            TEXT NOT NULL,
		main_bg_color        TEXT NOT NULL,
		card_bg_color        TEXT NOT NULL,
		primary_color        TEXT NOT NULL,
		highlight_color      TEXT NOT NULL,
		primary_text_color   TEXT NOT NULL,
		secondary_text_color TEXT NOT NULL,
		whatsapp_link        TEXT NOT NULL,
		telegram_link        TEXT NOT NULL,
		payment_key          TEXT NOT NULL
	);`
	queries = append(queries, query)
	query = `INSERT INTO settings (id, site_name, main_bg_color, card_bg_color, primary_color, highlight_color, primary_text_color, secondary_text_color, whatsapp_link, telegram_link, payment_key)
		VALUES (1, 'Byte Capital', '#000000', '#1A1A1A', '#00E676', '#FFD600', '#FFFFFF', '#757575', '#', '#', '')
		ON CONFLICT (id) DO NOTHING;`
	queries = append(queries, query)
	for _, subquery := range queries {
		_, err := s.DB.ExecContext(ctx, subquery)
		if err != nil {
			return err
		}
	}
	return nil
}
