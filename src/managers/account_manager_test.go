package managers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountManagerLookups(t *testing.T) {
	_, accounts := testRefData(t)

	alice := accounts.GetUser("alice")
	require.NotNil(t, alice)
	assert.False(t, alice.Admin)
	assert.True(t, alice.HasSubAccount(7))
	assert.False(t, alice.HasSubAccount(8))

	bob := accounts.GetUser("bob")
	require.NotNil(t, bob)
	assert.True(t, bob.Admin)

	assert.Nil(t, accounts.GetUser("ghost"))
	assert.Equal(t, "main", accounts.GetSubAccount(7).Name)
	assert.Equal(t, int64(8), accounts.GetSubAccountByName("acct8").ID)

	users := accounts.Users()
	require.Len(t, users, 2)
	assert.Equal(t, "alice", users[0].Name)

	brokers := accounts.BrokerAccounts()
	require.Len(t, brokers, 2)
	assert.Equal(t, "prime-nasdaq", brokers[0].Name)
}

// Broker routing prefers the security's exchange over the default route.
func TestAccountManagerBrokerRouting(t *testing.T) {
	secs, accounts := testRefData(t)
	main := accounts.GetSubAccount(7)

	nasdaq := accounts.GetBroker(main, secs.Get(42))
	require.NotNil(t, nasdaq)
	assert.Equal(t, int64(1), nasdaq.ID)

	nyse := accounts.GetBroker(main, secs.Get(44))
	require.NotNil(t, nyse)
	assert.Equal(t, int64(2), nyse.ID)
}

func TestAccountManagerBadSeed(t *testing.T) {
	_, err := NewAccountManager(writeSeed(t, "bad.yaml", `
sub_accounts: []
users:
  - id: 1
    name: alice
    sub_accounts: [7]
`))
	assert.ErrorContains(t, err, "unknown sub-account")
}
