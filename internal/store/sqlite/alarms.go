// Package sqlite provides the relational alarm store. The watcher polls it
// on every registry sweep; writes come from an external bot frontend that
// shares the same database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"

	"alarm-enginev1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Store reads alarms and their conditions from a SQLite database.
type Store struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// Open opens the database at path with WAL mode and creates the schema if
// it does not exist yet.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// The watcher only reads; the bot frontend is the single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", path)
	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS alarm (
			alarm_id     INTEGER PRIMARY KEY AUTOINCREMENT,
			channel_id   INTEGER NOT NULL,
			exchange_id  INTEGER NOT NULL,
			base_symbol  TEXT    NOT NULL,
			quote_symbol TEXT    NOT NULL,
			is_enabled   INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS condition (
			alarm_id       INTEGER PRIMARY KEY REFERENCES alarm(alarm_id),
			whale          TEXT,
			tick           TEXT,
			rsi            TEXT,
			bollinger_band TEXT
		);
	`)
	return err
}

// SelectEnabledAlarms returns every alarm row with is_enabled = 1.
func (s *Store) SelectEnabledAlarms(ctx context.Context) ([]model.AlarmRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT alarm_id, channel_id, exchange_id, base_symbol, quote_symbol, is_enabled
		FROM alarm WHERE is_enabled = 1
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite select alarms: %w", err)
	}
	defer rows.Close()

	var records []model.AlarmRecord
	for rows.Next() {
		var r model.AlarmRecord
		var exchangeID int
		if err := rows.Scan(&r.AlarmID, &r.ChannelID, &exchangeID, &r.BaseSymbol, &r.QuoteSymbol, &r.IsEnabled); err != nil {
			return nil, fmt.Errorf("sqlite scan alarm: %w", err)
		}
		r.ExchangeID = model.ExchangeID(exchangeID)
		if !r.ExchangeID.Valid() {
			return nil, fmt.Errorf("sqlite alarm %d: unknown exchange id %d", r.AlarmID, exchangeID)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// SelectCondition returns the condition row of an alarm. Each non-NULL
// column holds one sub-condition as JSON.
func (s *Store) SelectCondition(ctx context.Context, alarmID int64) (model.Condition, error) {
	var whale, tick, rsi, bollinger sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT whale, tick, rsi, bollinger_band FROM condition WHERE alarm_id = ?
	`, alarmID).Scan(&whale, &tick, &rsi, &bollinger)
	if err != nil {
		return model.Condition{}, fmt.Errorf("sqlite select condition %d: %w", alarmID, err)
	}

	cond := model.Condition{AlarmID: alarmID}
	if whale.Valid {
		cond.Whale = new(model.WhaleCondition)
		if err := json.Unmarshal([]byte(whale.String), cond.Whale); err != nil {
			return model.Condition{}, fmt.Errorf("sqlite condition %d: whale: %w", alarmID, err)
		}
	}
	if tick.Valid {
		cond.Tick = new(model.TickCondition)
		if err := json.Unmarshal([]byte(tick.String), cond.Tick); err != nil {
			return model.Condition{}, fmt.Errorf("sqlite condition %d: tick: %w", alarmID, err)
		}
	}
	if rsi.Valid {
		cond.Rsi = new(model.RsiCondition)
		if err := json.Unmarshal([]byte(rsi.String), cond.Rsi); err != nil {
			return model.Condition{}, fmt.Errorf("sqlite condition %d: rsi: %w", alarmID, err)
		}
	}
	if bollinger.Valid {
		cond.BollingerBand = new(model.BollingerBandCondition)
		if err := json.Unmarshal([]byte(bollinger.String), cond.BollingerBand); err != nil {
			return model.Condition{}, fmt.Errorf("sqlite condition %d: bollinger band: %w", alarmID, err)
		}
	}

	// Candle-based sub-conditions need a finite interval; months are not
	// supported by the rollup clock.
	for _, iv := range cond.WatchedIntervals() {
		if iv.Seconds() <= 0 {
			return model.Condition{}, fmt.Errorf("sqlite condition %d: unsupported interval %s", alarmID, iv)
		}
	}
	return cond, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
