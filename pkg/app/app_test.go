package app

import (
	"encoding/json"
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"dali/pkg/app/config"
	"dali/pkg/loopback"
	"dali/pkg/manchester"
	"dali/pkg/port"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/womat/debug"
)

func TestMain(m *testing.M) {
	debug.SetDebug(os.Stderr, debug.Standard)
	os.Exit(m.Run())
}

type testBench struct {
	app  *App
	port *loopback.Port
	peer *manchester.Transceiver
}

// newTestBench connects an app and a peer transceiver to one simulated bus.
func newTestBench(t *testing.T, cfg *config.Config) *testBench {
	a, err := New(cfg)
	require.NoError(t, err)

	clock := loopback.NewSimClock(1e6, 1)
	bus := loopback.NewBus(clock)

	p := bus.NewPort()
	require.NoError(t, a.connect(p, clock))
	a.initDefaultRoutes()
	go a.receive()
	t.Cleanup(func() {
		assert.NoError(t, a.Close())
		<-a.done
	})

	peerPort := bus.NewPort()
	peer := manchester.New(peerPort, clock)
	peerPort.Attach(peer)
	require.NoError(t, peerPort.EnableRx())

	return &testBench{app: a, port: p, peer: peer}
}

func (b *testBench) do(t *testing.T, method, target, body string) (int, []byte) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.app.web.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := ioutil.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func TestNewInvalidURL(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Webserver.URL = "http://[::1"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestHandleVersion(t *testing.T) {
	b := newTestBench(t, config.NewConfig())

	code, body := b.do(t, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, code)

	var got map[string]string
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, MODULE, got["description"])
	assert.Equal(t, VERSION, got["version"])
	assert.Equal(t, Version(), got["about"])
}

func TestHandleHealth(t *testing.T) {
	b := newTestBench(t, config.NewConfig())
	require.NoError(t, b.app.Transfer(0x01, 0x02))

	code, body := b.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, code)

	var got struct {
		Transfers uint64
		Errors    uint64
		LineLevel string
	}
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, uint64(1), got.Transfers)
	assert.Equal(t, uint64(0), got.Errors)
	assert.Equal(t, "high", got.LineLevel)
}

func TestHandleFrame(t *testing.T) {
	b := newTestBench(t, config.NewConfig())

	code, _ := b.do(t, http.MethodGet, "/frame", "")
	assert.Equal(t, http.StatusNotFound, code)

	require.NoError(t, b.peer.Transfer(0x01, 0xff))
	require.Eventually(t, func() bool {
		f := b.app.lastFrame()
		return f != nil && f.Bits == 0x01ff
	}, time.Second, time.Millisecond)

	code, body := b.do(t, http.MethodGet, "/frame", "")
	require.Equal(t, http.StatusOK, code)

	var got frameMessage
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, byte(0x01), got.Address)
	assert.Equal(t, byte(0xff), got.Data)
	assert.Equal(t, 33, got.HalfBits)

	// decoded frames are published
	msg := <-b.app.mqtt.C
	assert.Equal(t, "dali/rx", msg.Topic)
}

func TestHandleTransfer(t *testing.T) {
	b := newTestBench(t, config.NewConfig())

	code, body := b.do(t, http.MethodPost, "/transfer", `{"address":1,"data":2}`)
	require.Equal(t, http.StatusOK, code, string(body))

	var got transferMessage
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, byte(0x01), got.Address)
	assert.Equal(t, byte(0x02), got.Data)

	f, ok := b.peer.Receive()
	require.True(t, ok)
	assert.Equal(t, uint16(0x0102), f.Bits)

	msg := <-b.app.mqtt.C
	assert.Equal(t, "dali/tx", msg.Topic)
	assert.True(t, msg.Retained)

	// an app does not decode its own frames
	assert.Nil(t, b.app.lastFrame())
}

func TestHandleTransferBadRequest(t *testing.T) {
	b := newTestBench(t, config.NewConfig())

	for _, body := range []string{
		`{"address":256,"data":1}`,
		`{"address":1,"data":-1}`,
		`{"address":1}`,
		`{}`,
		`{"address":`,
	} {
		code, _ := b.do(t, http.MethodPost, "/transfer", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}

	assert.Equal(t, manchester.Stats{}, b.app.dali.Stats())
}

func TestHandleTransferFails(t *testing.T) {
	b := newTestBench(t, config.NewConfig())
	b.port.DisableErr = errors.New("line busy")

	code, body := b.do(t, http.MethodPost, "/transfer", `{"address":1,"data":2}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, string(body), "line busy")
	assert.Equal(t, uint64(1), b.app.dali.Stats().Errors)
	assert.Empty(t, b.app.mqtt.C)
}

func TestRoutesDisabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Webserver.Webservices["transfer"] = false
	b := newTestBench(t, cfg)

	code, _ := b.do(t, http.MethodPost, "/transfer", `{"address":1,"data":2}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, manchester.Stats{}, b.app.dali.Stats())
}

func TestPublishWithoutTopic(t *testing.T) {
	cfg := config.NewConfig()
	cfg.MQTT.Topic = ""
	b := newTestBench(t, cfg)

	require.NoError(t, b.app.Transfer(0x10, 0x20))
	assert.Empty(t, b.app.mqtt.C)
}

// recordFrame returns the edge ticks of one transfer on a separate bus.
func recordFrame(t *testing.T, address, data byte) []uint64 {
	clock := loopback.NewSimClock(1e6, 1)
	bus := loopback.NewBus(clock)

	var ticks []uint64
	rec := bus.NewPort()
	rec.Attach(port.EdgeHandlerFunc(func(now uint64) {
		ticks = append(ticks, now)
	}))
	require.NoError(t, rec.EnableRx())

	tx := manchester.New(bus.NewPort(), clock)
	require.NoError(t, tx.Transfer(address, data))
	require.NotEmpty(t, ticks)
	return ticks
}

func TestReceivePublishesCompleteFrame(t *testing.T) {
	b := newTestBench(t, config.NewConfig())
	ticks := recordFrame(t, 0x01, 0xff)

	// replay at about bus speed, the receive loop sees every partial frame
	for _, now := range ticks {
		b.app.dali.OnEdge(now)
		time.Sleep(200 * time.Microsecond)
	}

	require.Eventually(t, func() bool {
		return b.app.lastFrame() != nil
	}, time.Second, time.Millisecond)
	time.Sleep(4 * b.app.settle)

	require.Len(t, b.app.mqtt.C, 1)
	msg := <-b.app.mqtt.C
	assert.Equal(t, "dali/rx", msg.Topic)

	var got frameMessage
	require.NoError(t, json.Unmarshal(msg.Payload, &got))
	assert.Equal(t, byte(0x01), got.Address)
	assert.Equal(t, byte(0xff), got.Data)
	assert.Equal(t, 33, got.HalfBits)
	assert.Equal(t, got.Bits, b.app.lastFrame().Bits)
}
