package server

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatelessTransportBatchesFrames(t *testing.T) {
	tr := newStatelessTransport("test:1")
	assert.True(t, tr.Stateless())
	assert.Equal(t, "[]", tr.Flush())

	tr.Send(`["connection","ok"]`)
	tr.Send(`["securities","complete"]`)

	var batch []interface{}
	require.NoError(t, json.Unmarshal([]byte(tr.Flush()), &batch))
	require.Len(t, batch, 2)
}

// Heartbeat echoes are bare strings on persistent links; the batched reply
// must still be valid JSON.
func TestStatelessTransportQuotesHeartbeat(t *testing.T) {
	tr := newStatelessTransport("test:1")
	tr.Send("h")

	var batch []interface{}
	require.NoError(t, json.Unmarshal([]byte(tr.Flush()), &batch))
	require.Len(t, batch, 1)
	assert.Equal(t, "h", batch[0])
}
