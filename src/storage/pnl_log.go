package storage

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"

	"trade-gateway/src/models"
)

// PnL history is kept as one line-oriented file per sub-account under the
// store root, "<epoch_seconds> <realized> <unrealized>" per line. The format
// survives crashes (a torn last line is skipped by the parser) and is cheap
// to append from the position manager's hot path.

// -----------------------------------------------------------------------------

func pnlLogPath(root string, acct int64) string {
	return filepath.Join(root, fmt.Sprintf("pnl-%d", acct))
}

// -----------------------------------------------------------------------------

// ReadPnlLog returns the records of one account with tm strictly greater
// than after. A missing file is an empty history.
func ReadPnlLog(root string, acct int64, after int64) []models.MPnlRecord {
	f, err := os.Open(pnlLogPath(root, acct))
	if err != nil {
		return nil
	}
	defer f.Close()

	var records []models.MPnlRecord
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var rec models.MPnlRecord
		n, err := fmt.Sscanf(scanner.Text(), "%d %f %f", &rec.Tm, &rec.Realized, &rec.Unrealized)
		if err != nil || n != 3 {
			continue
		}
		if rec.Tm <= after {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// -----------------------------------------------------------------------------

// AppendPnlLog writes one record to the account's history file.
func AppendPnlLog(root string, acct int64, rec models.MPnlRecord) error {
	f, err := os.OpenFile(pnlLogPath(root, acct), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintf(f, "%d %g %g\n", rec.Tm, rec.Realized, rec.Unrealized)
	return err
}
