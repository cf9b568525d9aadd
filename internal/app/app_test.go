package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/gyro_odometer/internal/config"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
	"github.com/relabs-tech/gyro_odometer/internal/irq"
	"github.com/relabs-tech/gyro_odometer/internal/timeutil"
)

func newTestServer(t *testing.T) (*httptest.Server, *gyro.Simulator) {
	t.Helper()
	sim := gyro.NewSimulator()
	dev := gyro.New(sim, irq.NewFlags(), gyro.Options{Timeout: 100 * time.Millisecond, Retries: 1})
	require.NoError(t, dev.Init(context.Background()))

	writable, err := config.ParseAddressRanges("0x20-0x24")
	require.NoError(t, err)
	srv := httptest.NewServer(NewRegisterDebug(dev, writable).Handler())
	t.Cleanup(srv.Close)
	return srv, sim
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var first RegisterResponse
	require.NoError(t, conn.ReadJSON(&first))
	require.Equal(t, "register_map", first.Type)
	require.Len(t, first.RegisterMap, len(gyro.RegisterMap()))
	assert.Equal(t, "0x0F", first.RegisterMap[0].Address)
	assert.Equal(t, "WHO_AM_I", first.RegisterMap[0].Name)
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, cmd map[string]string) RegisterResponse {
	t.Helper()
	require.NoError(t, conn.WriteJSON(cmd))
	var resp RegisterResponse
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestRegisterDebug_Read(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, map[string]string{"action": "read", "addr": "0x0F"})
	assert.Equal(t, "register_data", resp.Type)
	assert.Equal(t, "0xD4", resp.Value)

	resp = roundTrip(t, conn, map[string]string{"action": "read", "addr": "zz"})
	assert.Equal(t, "error", resp.Type)
}

func TestRegisterDebug_ReadAll(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, map[string]string{"action": "read_all"})
	require.Equal(t, "register_data", resp.Type)
	assert.Equal(t, "0x6F", resp.Registers["0x20"])
	assert.Equal(t, "0x10", resp.Registers["0x23"])
}

func TestRegisterDebug_WriteHonoursRanges(t *testing.T) {
	srv, sim := newTestServer(t)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, map[string]string{"action": "write", "addr": "0x21", "value": "0x05"})
	assert.Equal(t, "write successful", resp.Message)
	assert.Equal(t, byte(0x05), sim.Register(gyro.RegCtrl2))

	resp = roundTrip(t, conn, map[string]string{"action": "write", "addr": "0x2E", "value": "0x40"})
	assert.Equal(t, "error", resp.Type)
	assert.Contains(t, resp.Message, "not in allowed write ranges")
	assert.Equal(t, byte(0x00), sim.Register(gyro.RegFIFOCtrl))
}

func TestRegisterDebug_InitAndExport(t *testing.T) {
	srv, sim := newTestServer(t)
	conn := dial(t, srv)

	roundTrip(t, conn, map[string]string{"action": "write", "addr": "0x20", "value": "0x07"})
	resp := roundTrip(t, conn, map[string]string{"action": "init"})
	assert.Equal(t, "initialized", resp.Status)
	assert.Equal(t, gyro.Ctrl1Config, sim.Register(gyro.RegCtrl1))

	resp = roundTrip(t, conn, map[string]string{"action": "export_config"})
	require.Equal(t, "export_config", resp.Type)
	var doc RegisterConfigFile
	require.NoError(t, json.Unmarshal([]byte(resp.Config), &doc))
	assert.Equal(t, 1, doc.Version)
	assert.Equal(t, "0xD4", doc.Registers["0x0F"])
	assert.True(t, strings.HasSuffix(resp.Filename, "_registers.json"))
}

func TestRegisterDebug_UnknownAction(t *testing.T) {
	srv, _ := newTestServer(t)
	conn := dial(t, srv)

	resp := roundTrip(t, conn, map[string]string{"action": "set_spi_speed"})
	assert.Equal(t, "error", resp.Type)
	assert.Equal(t, "unknown action: set_spi_speed", resp.Message)

	resp = roundTrip(t, conn, map[string]string{})
	assert.Equal(t, "missing or invalid action field", resp.Message)
}

func TestRegisterDebug_Sample(t *testing.T) {
	srv, _ := newTestServer(t)

	res, err := http.Get(srv.URL + "/api/sample")
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body struct {
		Raw   gyro.RawSample `json:"raw"`
		Rates gyro.Rates     `json:"rad_s"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	assert.InDelta(t, gyro.Scale(body.Raw.Z), body.Rates.Z, 1e-12)
}

func TestParseHexByte(t *testing.T) {
	for in, want := range map[string]byte{"0x2E": 0x2E, "2e": 0x2E, "0XFF": 0xFF, " 0x0F ": 0x0F} {
		got, err := parseHexByte(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "0x100", "0xG1"} {
		_, err := parseHexByte(in)
		assert.Error(t, err, in)
	}
}

func TestTriggerOnEnter(t *testing.T) {
	flags := irq.NewFlags()
	triggerOnEnter(strings.NewReader("\n"), flags)
	assert.Equal(t, irq.StartTrigger, flags.Take(irq.StartTrigger))

	// EOF without a newline is not a press
	triggerOnEnter(strings.NewReader("x"), flags)
	assert.Equal(t, irq.Flag(0), flags.Take(irq.StartTrigger))
}

func TestDebounce(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	n := 0
	fn := debounce(clock, 50*time.Millisecond, func() { n++ })

	fn()
	clock.Advance(10 * time.Millisecond)
	fn()
	clock.Advance(50 * time.Millisecond)
	fn()
	assert.Equal(t, 2, n)
}

func TestSessionConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Countdown = time.Second
	cfg.ResultHold = 0
	sc := sessionConfig(cfg)
	assert.Equal(t, time.Second, sc.Countdown)
	assert.Equal(t, time.Duration(0), sc.ResultHold)
	assert.Equal(t, 20*time.Second, sc.RecordDuration)
	assert.Equal(t, 300, sc.Capacity)
}

func TestOpenHardware_Simulate(t *testing.T) {
	cfg := config.Defaults()
	cfg.Simulate = true
	hw, err := OpenHardware(cfg)
	require.NoError(t, err)
	defer hw.Close()

	require.NotNil(t, hw.Sim)
	assert.Nil(t, hw.Start)
	assert.NotNil(t, hw.DataReady)
}
