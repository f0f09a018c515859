package managers

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"trade-gateway/src/interfaces"
	"trade-gateway/src/logger"
	"trade-gateway/src/models"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

// memStore is an in-memory IStore for exercising replay without a database.
type memStore struct {
	mu            sync.Mutex
	confirmations []interfaces.MConfirmationRow
	algoRecords   []interfaces.MAlgoRow
}

func (s *memStore) Initialize() error { return nil }
func (s *memStore) Close() error      { return nil }

func (s *memStore) SaveConfirmation(row *interfaces.MConfirmationRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmations = append(s.confirmations, *row)
	return nil
}

func (s *memStore) SaveAlgoRecord(row *interfaces.MAlgoRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.algoRecords = append(s.algoRecords, *row)
	return nil
}

func (s *memStore) ReplayConfirmations(afterSeq int64, fn func(*interfaces.MConfirmationRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.confirmations {
		if s.confirmations[i].Seq > afterSeq {
			fn(&s.confirmations[i])
		}
	}
	return nil
}

func (s *memStore) ReplayAlgoRecords(afterSeq int64, fn func(*interfaces.MAlgoRow)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.algoRecords {
		if s.algoRecords[i].Seq > afterSeq {
			fn(&s.algoRecords[i])
		}
	}
	return nil
}

func (s *memStore) MaxSeqs() (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var c, a int64
	for _, row := range s.confirmations {
		if row.Seq > c {
			c = row.Seq
		}
	}
	for _, row := range s.algoRecords {
		if row.Seq > a {
			a = row.Seq
		}
	}
	return c, a, nil
}

// -----------------------------------------------------------------------------

// eventRecorder captures pushed session events.
type eventRecorder struct {
	mu            sync.Mutex
	confirmations []*models.MConfirmation
	algoUpdates   []string
	testMsgs      []string
}

func (r *eventRecorder) OnConfirmation(cm *models.MConfirmation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmations = append(r.confirmations, cm)
}

func (r *eventRecorder) OnAlgoUpdate(algo interfaces.IAlgoInstance, status, body string, seq int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.algoUpdates = append(r.algoUpdates, algo.Name()+":"+status)
}

func (r *eventRecorder) SendTestMsg(token, msg string, stopped bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.testMsgs = append(r.testMsgs, token+":"+msg)
}

// -----------------------------------------------------------------------------

func writeSeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const securitiesSeed = `
- id: 42
  symbol: AAPL
  exchange: NASDAQ
  type: STK
  lot_size: 100
  multiplier: 1
  close_price: 101.0
- id: 44
  symbol: IBM
  exchange: NYSE
  type: STK
  lot_size: 100
  multiplier: 1
  close_price: 135.2
`

const accountsSeed = `
sub_accounts:
  - id: 7
    name: main
    brokers:
      default: 1
      NYSE: 2
  - id: 8
    name: acct8
    brokers:
      default: 2

broker_accounts:
  - id: 1
    name: prime-nasdaq
  - id: 2
    name: prime-nyse

users:
  - id: 1
    name: alice
    password: e5e9fa1ba31ecd1ae84f75caaa474f3a663f05f4
    admin: false
    sub_accounts: [7]
  - id: 2
    name: bob
    password: d033e22ae348aeb5660fc2140aec35850c4da997
    admin: true
    sub_accounts: [7, 8]
`

func testRefData(t *testing.T) (*SecurityMaster, *AccountManager) {
	t.Helper()
	secs, err := NewSecurityMaster(writeSeed(t, "securities.yaml", securitiesSeed))
	require.NoError(t, err)
	accounts, err := NewAccountManager(writeSeed(t, "accounts.yaml", accountsSeed))
	require.NoError(t, err)
	return secs, accounts
}

func testLogger() *logger.Logger {
	return logger.NewLogger("ERROR", "test")
}
