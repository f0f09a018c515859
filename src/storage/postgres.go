package storage

import (
	"database/sql"
	"fmt"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"

	_ "github.com/lib/pq"
)

// -----------------------------------------------------------------------------

type PostgresStore struct {
	Config *models.MConfig
	DB     *sql.DB
	Schema string
	Logger *logger.Logger
}

// -----------------------------------------------------------------------------

func NewPostgresStore(cfg *models.MConfig, log *logger.Logger) (*PostgresStore, error) {
	return &PostgresStore{
		Config: cfg,
		Schema: cfg.Name,
		Logger: log,
	}, nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Initialize() error {
	dsn := d.Config.Storage.DBConnectionString
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}

	if err := db.Ping(); err != nil {
		return err
	}

	d.DB = db

	// Create Schema
	if _, err := d.DB.Exec(fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, d.Schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", d.Schema, err)
	}

	if err := d.createTables(); err != nil {
		return err
	}

	d.Logger.Info("PostgresStore initialized successfully (Schema: %s)", d.Schema)
	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) createTables() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".confirmations (
			seq BIGINT PRIMARY KEY,
			order_id BIGINT,
			security_id BIGINT,
			algo_id BIGINT,
			user_id BIGINT,
			acct_id BIGINT,
			broker_id BIGINT,
			qty DOUBLE PRECISION,
			price DOUBLE PRECISION,
			stop_price DOUBLE PRECISION,
			side SMALLINT,
			type SMALLINT,
			tif SMALLINT,
			exec_type SMALLINT,
			trans_type SMALLINT,
			exec_id TEXT,
			exch_ord_id TEXT,
			last_shares DOUBLE PRECISION,
			last_px DOUBLE PRECISION,
			tm BIGINT,
			text TEXT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create confirmations: %w", err)
	}

	query = fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS "%s".algo_records (
			seq BIGINT PRIMARY KEY,
			id BIGINT,
			tm BIGINT,
			token TEXT,
			name TEXT,
			status TEXT,
			body TEXT
		);
	`, d.Schema)
	if _, err := d.DB.Exec(query); err != nil {
		return fmt.Errorf("failed to create algo_records: %w", err)
	}

	return nil
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) Close() error {
	if d.DB == nil {
		return nil
	}
	return d.DB.Close()
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) SaveConfirmation(row *interfaces.MConfirmationRow) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO "%s".confirmations (seq, order_id, security_id, algo_id, user_id, acct_id, broker_id,
			qty, price, stop_price, side, type, tif, exec_type, trans_type,
			exec_id, exch_ord_id, last_shares, last_px, tm, text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
	`, d.Schema), row.Seq, row.OrderID, row.SecurityID, row.AlgoID, row.UserID, row.AcctID, row.BrokerID,
		row.Qty, row.Price, row.StopPrice, row.Side, row.Type, row.Tif, row.ExecType, row.TransType,
		row.ExecID, row.ExchOrdID, row.LastShares, row.LastPx, row.Tm, row.Text)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) SaveAlgoRecord(row *interfaces.MAlgoRow) error {
	_, err := d.DB.Exec(fmt.Sprintf(`
		INSERT INTO "%s".algo_records (seq, id, tm, token, name, status, body)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, d.Schema), row.Seq, row.ID, row.Tm, row.Token, row.Name, row.Status, row.Body)
	return err
}

// -----------------------------------------------------------------------------

func (d *PostgresStore) ReplayConfirmations(afterSeq int64, fn func(*interfaces.MConfirmationRow)) error {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT seq, order_id, security_id, algo_id, user_id, acct_id, broker_id,
			qty, price, stop_price, side, type, tif, exec_type, trans_type,
			exec_id, exch_ord_id, last_shares, last_px, tm, text
		FROM "%s".confirmations WHERE seq > $1 ORDER BY seq
	`, d.Schema), afterSeq)
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

func (d *PostgresStore) ReplayAlgoRecords(afterSeq int64, fn func(*interfaces.MAlgoRow)) error {
	rows, err := d.DB.Query(fmt.Sprintf(`
		SELECT seq, id, tm, token, name, status, body
		FROM "%s".algo_records WHERE seq > $1 ORDER BY seq
	`, d.Schema), afterSeq)
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

func (d *PostgresStore) MaxSeqs() (int64, int64, error) {
	var confirmation, algo sql.NullInt64
	if err := d.DB.QueryRow(fmt.Sprintf(`SELECT MAX(seq) FROM "%s".confirmations`, d.Schema)).Scan(&confirmation); err != nil {
		return 0, 0, err
	}
	if err := d.DB.QueryRow(fmt.Sprintf(`SELECT MAX(seq) FROM "%s".algo_records`, d.Schema)).Scan(&algo); err != nil {
		return 0, 0, err
	}
	return confirmation.Int64, algo.Int64, nil
}
