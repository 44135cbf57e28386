package mqtt

import (
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

func TestConnectWithoutBroker(t *testing.T) {
	m := New()
	require.NoError(t, m.Connect(""))
	assert.NoError(t, m.Disconnect())
}

func TestPublish(t *testing.T) {
	m := New()

	frame := struct {
		Address byte
		Data    byte
	}{Address: 0xfe, Data: 0x05}

	require.NoError(t, m.Publish("dali/tx", frame))

	msg := <-m.C
	assert.Equal(t, "dali/tx", msg.Topic)
	assert.True(t, msg.Retained)
	assert.Equal(t, byte(0), msg.Qos)

	var got map[string]int
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, map[string]int{"Address": 0xfe, "Data": 0x05}, got)
}

func TestPublishInvalidValue(t *testing.T) {
	m := New()
	assert.Error(t, m.Publish("dali/tx", make(chan int)))
}

func TestServiceWithoutBroker(t *testing.T) {
	m := New()
	done := make(chan struct{})
	go func() {
		m.Service()
		close(done)
	}()

	require.NoError(t, m.Publish("dali/rx", 1))
	close(m.C)
	<-done
}

func TestPublishQueueFull(t *testing.T) {
	m := New()

	for i := 0; i < cap(m.C); i++ {
		require.NoError(t, m.Publish("dali/rx", i))
	}

	err := m.Publish("dali/rx", cap(m.C))
	assert.True(t, errors.Is(err, ErrQueueFull))
	assert.Len(t, m.C, cap(m.C))

	// the queued messages are kept
	msg := <-m.C
	assert.Equal(t, "0", string(msg.Payload))
	assert.NoError(t, m.Publish("dali/rx", 1))
}
