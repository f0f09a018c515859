package storage

import (
	"database/sql"
	"fmt"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"

	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------

type SQLiteStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewSQLiteStore(cfg *models.MConfig, log *logger.Logger) (*SQLiteStore, error) {
	return &SQLiteStore{
		Config: cfg,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Initialize() error {
	dsn := d.Config.Storage.DBPath

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// PRAGMA optimizations
	if _, err := db.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		d.Logger.Warning("Failed to set WAL mode: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL;"); err != nil {
		d.Logger.Warning("Failed to set synchronous mode: %v", err)
	}

	return d.createTables()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) createTables() error {
	// SQLite types: INTEGER for int64, REAL for float64, TEXT for string
	query := `
		CREATE TABLE IF NOT EXISTS confirmations (
			seq INTEGER PRIMARY KEY,
			order_id INTEGER,
			security_id INTEGER,
			algo_id INTEGER,
			user_id INTEGER,
			acct_id INTEGER,
			broker_id INTEGER,
			qty REAL,
			price REAL,
			stop_price REAL,
			side INTEGER,
			type INTEGER,
			tif INTEGER,
			exec_type INTEGER,
			trans_type INTEGER,
			exec_id TEXT,
			exch_ord_id TEXT,
			last_shares REAL,
			last_px REAL,
			tm INTEGER,
			text TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create confirmations: %w", err)
	}

	query = `
		CREATE TABLE IF NOT EXISTS algo_records (
			seq INTEGER PRIMARY KEY,
			id INTEGER,
			tm INTEGER,
			token TEXT,
			name TEXT,
			status TEXT,
			body TEXT
		);
	`
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create algo_records: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) SaveConfirmation(row *interfaces.MConfirmationRow) error {
	_, err := d.DB.Exec(`
		INSERT INTO confirmations (seq, order_id, security_id, algo_id, user_id, acct_id, broker_id,
			qty, price, stop_price, side, type, tif, exec_type, trans_type,
			exec_id, exch_ord_id, last_shares, last_px, tm, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, row.Seq, row.OrderID, row.SecurityID, row.AlgoID, row.UserID, row.AcctID, row.BrokerID,
		row.Qty, row.Price, row.StopPrice, row.Side, row.Type, row.Tif, row.ExecType, row.TransType,
		row.ExecID, row.ExchOrdID, row.LastShares, row.LastPx, row.Tm, row.Text)
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) SaveAlgoRecord(row *interfaces.MAlgoRow) error {
	_, err := d.DB.Exec(`
		INSERT INTO algo_records (seq, id, tm, token, name, status, body)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, row.Seq, row.ID, row.Tm, row.Token, row.Name, row.Status, row.Body)
	return err
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) ReplayConfirmations(afterSeq int64, fn func(*interfaces.MConfirmationRow)) error {
	rows, err := d.DB.Query(`
		SELECT seq, order_id, security_id, algo_id, user_id, acct_id, broker_id,
			qty, price, stop_price, side, type, tif, exec_type, trans_type,
			exec_id, exch_ord_id, last_shares, last_px, tm, text
		FROM confirmations WHERE seq > ? ORDER BY seq
	`, afterSeq)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row interfaces.MConfirmationRow
		if err := rows.Scan(&row.Seq, &row.OrderID, &row.SecurityID, &row.AlgoID, &row.UserID,
			&row.AcctID, &row.BrokerID, &row.Qty, &row.Price, &row.StopPrice,
			&row.Side, &row.Type, &row.Tif, &row.ExecType, &row.TransType,
			&row.ExecID, &row.ExchOrdID, &row.LastShares, &row.LastPx, &row.Tm, &row.Text); err != nil {
			return err
		}
		fn(&row)
	}
	return rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) ReplayAlgoRecords(afterSeq int64, fn func(*interfaces.MAlgoRow)) error {
	rows, err := d.DB.Query(`
		SELECT seq, id, tm, token, name, status, body
		FROM algo_records WHERE seq > ? ORDER BY seq
	`, afterSeq)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row interfaces.MAlgoRow
		if err := rows.Scan(&row.Seq, &row.ID, &row.Tm, &row.Token, &row.Name, &row.Status, &row.Body); err != nil {
			return err
		}
		fn(&row)
	}
	return rows.Err()
}

// -----------------------------------------------------------------------------

func (d *SQLiteStore) MaxSeqs() (int64, int64, error) {
	var confirmation, algo sql.NullInt64
	if err := d.DB.QueryRow(`SELECT MAX(seq) FROM confirmations`).Scan(&confirmation); err != nil {
		return 0, 0, err
	}
	if err := d.DB.QueryRow(`SELECT MAX(seq) FROM algo_records`).Scan(&algo); err != nil {
		return 0, 0, err
	}
	return confirmation.Int64, algo.Int64, nil
}
