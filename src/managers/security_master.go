package managers

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"sort"

	"trade-gateway/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// SecurityMaster holds the immutable security reference data. Loaded once on
// boot; safe for concurrent readers without locking.
type SecurityMaster struct {
	byID     map[int64]*models.MSecurity
	ordered  []*models.MSecurity
	checkSum string
}

// -----------------------------------------------------------------------------

// NewSecurityMaster loads the seed file (a YAML list of securities).
func NewSecurityMaster(seedPath string) (*SecurityMaster, error) {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read securities seed '%s': %w", seedPath, err)
	}
	var secs []*models.MSecurity
	if err := yaml.Unmarshal(data, &secs); err != nil {
		return nil, fmt.Errorf("failed to parse securities seed: %w", err)
	}

	m := &SecurityMaster{byID: make(map[int64]*models.MSecurity, len(secs))}
	for _, sec := range secs {
		if _, dup := m.byID[sec.ID]; dup {
			return nil, fmt.Errorf("duplicate security id %d in seed", sec.ID)
		}
		m.byID[sec.ID] = sec
	}
	m.ordered = make([]*models.MSecurity, 0, len(m.byID))
	for _, sec := range m.byID {
		m.ordered = append(m.ordered, sec)
	}
	sort.Slice(m.ordered, func(i, j int) bool { return m.ordered[i].ID < m.ordered[j].ID })

	// checksum over the id/symbol list; clients compare it against the one
	// advertised at login to decide whether to refresh their dump
	h := sha1.New()
	for _, sec := range m.ordered {
		fmt.Fprintf(h, "%d|%s|%s\n", sec.ID, sec.Symbol, sec.Exchange)
	}
	m.checkSum = hex.EncodeToString(h.Sum(nil))
	return m, nil
}

// -----------------------------------------------------------------------------

func (m *SecurityMaster) Get(id int64) *models.MSecurity {
	return m.byID[id]
}

func (m *SecurityMaster) Securities() []*models.MSecurity {
	return m.ordered
}

func (m *SecurityMaster) CheckSum() string {
	return m.checkSum
}
