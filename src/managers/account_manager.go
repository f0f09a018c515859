package managers

import (
	"fmt"
	"os"
	"sort"

	"trade-gateway/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// accountSeed is the YAML shape of the accounts reference file.
type accountSeed struct {
	SubAccounts []struct {
		models.MSubAccount `yaml:",inline"`
		// Brokers maps exchange name -> broker account id; "default" is
		// the fallback route.
		Brokers map[string]int64 `yaml:"brokers"`
	} `yaml:"sub_accounts"`
	BrokerAccounts []*models.MBrokerAccount `yaml:"broker_accounts"`
	Users          []struct {
		models.MUser `yaml:",inline"`
		SubAccounts  []int64 `yaml:"sub_accounts"`
	} `yaml:"users"`
}

// -----------------------------------------------------------------------------

// AccountManager holds users, sub-accounts and broker accounts. Reference
// data is immutable after load; concurrent readers need no locking.
type AccountManager struct {
	usersByName map[string]*models.MUser
	users       []*models.MUser
	subByID     map[int64]*models.MSubAccount
	subByName   map[string]*models.MSubAccount
	brokers     []*models.MBrokerAccount
	brokersByID map[int64]*models.MBrokerAccount
	routes      map[int64]map[string]int64 // sub-account id -> exchange -> broker id
}

// -----------------------------------------------------------------------------

// NewAccountManager loads the accounts seed file.
func NewAccountManager(seedPath string) (*AccountManager, error) {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read accounts seed '%s': %w", seedPath, err)
	}
	var seed accountSeed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse accounts seed: %w", err)
	}

	m := &AccountManager{
		usersByName: make(map[string]*models.MUser),
		subByID:     make(map[int64]*models.MSubAccount),
		subByName:   make(map[string]*models.MSubAccount),
		brokersByID: make(map[int64]*models.MBrokerAccount),
		routes:      make(map[int64]map[string]int64),
	}

	for i := range seed.SubAccounts {
		acc := seed.SubAccounts[i].MSubAccount
		sub := &models.MSubAccount{ID: acc.ID, Name: acc.Name}
		if _, dup := m.subByID[sub.ID]; dup {
			return nil, fmt.Errorf("duplicate sub-account id %d in seed", sub.ID)
		}
		m.subByID[sub.ID] = sub
		m.subByName[sub.Name] = sub
		m.routes[sub.ID] = seed.SubAccounts[i].Brokers
	}

	for _, ba := range seed.BrokerAccounts {
		m.brokersByID[ba.ID] = ba
		m.brokers = append(m.brokers, ba)
	}
	sort.Slice(m.brokers, func(i, j int) bool { return m.brokers[i].ID < m.brokers[j].ID })

	for i := range seed.Users {
		u := seed.Users[i].MUser
		user := &models.MUser{
			ID:       u.ID,
			Name:     u.Name,
			Password: u.Password,
			Disabled: u.Disabled,
			Admin:    u.Admin,

			SubAccounts: make(map[int64]*models.MSubAccount),
		}
		for _, id := range seed.Users[i].SubAccounts {
			sub := m.subByID[id]
			if sub == nil {
				return nil, fmt.Errorf("user %s references unknown sub-account %d", u.Name, id)
			}
			user.SubAccounts[id] = sub
		}
		if _, dup := m.usersByName[user.Name]; dup {
			return nil, fmt.Errorf("duplicate user %s in seed", user.Name)
		}
		m.usersByName[user.Name] = user
		m.users = append(m.users, user)
	}
	sort.Slice(m.users, func(i, j int) bool { return m.users[i].ID < m.users[j].ID })

	return m, nil
}

// -----------------------------------------------------------------------------

func (m *AccountManager) GetUser(name string) *models.MUser {
	return m.usersByName[name]
}

func (m *AccountManager) GetSubAccount(id int64) *models.MSubAccount {
	return m.subByID[id]
}

func (m *AccountManager) GetSubAccountByName(name string) *models.MSubAccount {
	return m.subByName[name]
}

func (m *AccountManager) Users() []*models.MUser {
	return m.users
}

func (m *AccountManager) BrokerAccounts() []*models.MBrokerAccount {
	return m.brokers
}

// -----------------------------------------------------------------------------

// GetBroker derives the broker account routing a (sub-account, security)
// pair, preferring the security's exchange over the default route.
func (m *AccountManager) GetBroker(acc *models.MSubAccount, sec *models.MSecurity) *models.MBrokerAccount {
	routes := m.routes[acc.ID]
	if routes == nil {
		return nil
	}
	if id, ok := routes[sec.Exchange]; ok {
		return m.brokersByID[id]
	}
	if id, ok := routes["default"]; ok {
		return m.brokersByID[id]
	}
	return nil
}
