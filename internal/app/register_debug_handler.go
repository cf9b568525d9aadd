// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/gyro_odometer/internal/config"
	"github.com/relabs-tech/gyro_odometer/internal/gyro"
)

// RegisterResponse is every message the tool sends.
type RegisterResponse struct {
	Type        string            `json:"type"` // "register_data", "register_map", "status", "error", "export_config"
	Device      string            `json:"device,omitempty"`
	Address     string            `json:"addr,omitempty"`
	Value       string            `json:"value,omitempty"`
	Registers   map[string]string `json:"registers,omitempty"` // for bulk read
	Timestamp   string            `json:"timestamp,omitempty"`
	Message     string            `json:"message,omitempty"`
	Status      string            `json:"status,omitempty"`
	RegisterMap []RegisterInfo    `json:"register_map,omitempty"`
	Config      string            `json:"config,omitempty"`
	Filename    string            `json:"filename,omitempty"`
}

// RegisterInfo is gyro.RegisterInfo with a printable address.
type RegisterInfo struct {
	Address string `json:"address"`
	gyro.RegisterInfo
}

// RegisterConfigFile is the JSON document produced by export_config.
type RegisterConfigFile struct {
	Version   int               `json:"version"`
	Device    string            `json:"device"`
	Timestamp string            `json:"timestamp"`
	Registers map[string]string `json:"registers"` // hex address -> hex value
}

// registerCmd is any request from the browser.
type registerCmd struct {
	Action  string `json:"action"` // "get_map", "read", "read_all", "write", "init", "export_config"
	Address string `json:"addr,omitempty"`
	Value   string `json:"value,omitempty"`
}

const deviceName = "l3gd20"

// RegisterDebug serves the gyro register map over a websocket. Bus access
// from all connections is serialized.
type RegisterDebug struct {
	mu       sync.Mutex
	dev      *gyro.Device
	writable []config.AddressRange
	timeout  time.Duration
	upgrader websocket.Upgrader
}

// NewRegisterDebug exposes dev. Writes are refused outside writable.
func NewRegisterDebug(dev *gyro.Device, writable []config.AddressRange) *RegisterDebug {
	return &RegisterDebug{
		dev:      dev,
		writable: writable,
		timeout:  2 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// local debugging tool, any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the tool's routes.
func (rd *RegisterDebug) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", rd.HandleWS)
	mux.HandleFunc("/api/sample", rd.HandleSample)
	return mux
}

// HandleWS handles one websocket session.
func (rd *RegisterDebug) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := rd.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("register_debug: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if err := conn.WriteJSON(rd.registerMap()); err != nil {
		log.Printf("register_debug: error sending register map: %v", err)
		return
	}

	for {
		var cmd registerCmd
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("register_debug: websocket error: %v", err)
			}
			return
		}
		if err := conn.WriteJSON(rd.dispatch(r.Context(), cmd)); err != nil {
			log.Printf("register_debug: write error: %v", err)
			return
		}
	}
}

func (rd *RegisterDebug) dispatch(ctx context.Context, cmd registerCmd) RegisterResponse {
	ctx, cancel := context.WithTimeout(ctx, rd.timeout)
	defer cancel()

	rd.mu.Lock()
	defer rd.mu.Unlock()

	switch cmd.Action {
	case "get_map":
		return rd.registerMap()
	case "read":
		return rd.handleRead(ctx, cmd)
	case "read_all":
		return rd.handleReadAll(ctx)
	case "write":
		return rd.handleWrite(ctx, cmd)
	case "init":
		return rd.handleInit(ctx)
	case "export_config":
		return rd.handleExport(ctx)
	case "":
		return errorResponse("missing or invalid action field")
	default:
		return errorResponse(fmt.Sprintf("unknown action: %s", cmd.Action))
	}
}

func (rd *RegisterDebug) handleRead(ctx context.Context, cmd registerCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	value, err := rd.dev.ReadRegister(ctx, addr)
	if err != nil {
		return errorResponse(fmt.Sprintf("read error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    deviceName,
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (rd *RegisterDebug) handleReadAll(ctx context.Context) RegisterResponse {
	regs, err := rd.readAll(ctx)
	if err != nil {
		return errorResponse(fmt.Sprintf("read all error: %v", err))
	}
	return RegisterResponse{
		Type:      "register_data",
		Device:    deviceName,
		Registers: regs,
		Timestamp: time.Now().Format(time.RFC3339),
	}
}

func (rd *RegisterDebug) handleWrite(ctx context.Context, cmd registerCmd) RegisterResponse {
	addr, err := parseHexByte(cmd.Address)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid address format: %s", cmd.Address))
	}
	value, err := parseHexByte(cmd.Value)
	if err != nil {
		return errorResponse(fmt.Sprintf("invalid value format: %s", cmd.Value))
	}
	if !rd.isWritable(addr) {
		return errorResponse(fmt.Sprintf("register 0x%02X not in allowed write ranges", addr))
	}
	if err := rd.dev.WriteRegister(ctx, addr, value); err != nil {
		return errorResponse(fmt.Sprintf("write error: %v", err))
	}
	log.Printf("register_debug: wrote 0x%02X to 0x%02X", value, addr)
	return RegisterResponse{
		Type:      "register_data",
		Device:    deviceName,
		Address:   fmt.Sprintf("0x%02X", addr),
		Value:     fmt.Sprintf("0x%02X", value),
		Timestamp: time.Now().Format(time.RFC3339),
		Message:   "write successful",
	}
}

func (rd *RegisterDebug) handleInit(ctx context.Context) RegisterResponse {
	if err := rd.dev.Init(ctx); err != nil {
		return errorResponse(fmt.Sprintf("reinit error: %v", err))
	}
	return RegisterResponse{
		Type:    "status",
		Device:  deviceName,
		Status:  "initialized",
		Message: "gyro reinitialized successfully",
	}
}

func (rd *RegisterDebug) handleExport(ctx context.Context) RegisterResponse {
	regs, err := rd.readAll(ctx)
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	now := time.Now()
	doc, err := json.Marshal(RegisterConfigFile{
		Version:   1,
		Device:    deviceName,
		Timestamp: now.Format(time.RFC3339),
		Registers: regs,
	})
	if err != nil {
		return errorResponse(fmt.Sprintf("export error: %v", err))
	}
	return RegisterResponse{
		Type:     "export_config",
		Device:   deviceName,
		Message:  "config exported",
		Config:   string(doc),
		Filename: fmt.Sprintf("%s_%s_registers.json", deviceName, now.Format("20060102_150405")),
	}
}

func (rd *RegisterDebug) readAll(ctx context.Context) (map[string]string, error) {
	registers, err := rd.dev.ReadAllRegisters(ctx)
	if err != nil {
		return nil, err
	}
	regMap := make(map[string]string, len(registers))
	for addr, value := range registers {
		regMap[fmt.Sprintf("0x%02X", addr)] = fmt.Sprintf("0x%02X", value)
	}
	return regMap, nil
}

func (rd *RegisterDebug) registerMap() RegisterResponse {
	regs := gyro.RegisterMap()
	mapped := make([]RegisterInfo, len(regs))
	for i, r := range regs {
		mapped[i] = RegisterInfo{Address: fmt.Sprintf("0x%02X", r.Address), RegisterInfo: r}
	}
	return RegisterResponse{
		Type:        "register_map",
		Device:      deviceName,
		RegisterMap: mapped,
	}
}

// isWritable reports whether addr is in a configured write range.
func (rd *RegisterDebug) isWritable(addr byte) bool {
	for _, r := range rd.writable {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// HandleSample serves one scaled sample as JSON.
func (rd *RegisterDebug) HandleSample(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ctx, cancel := context.WithTimeout(r.Context(), rd.timeout)
	defer cancel()

	rd.mu.Lock()
	s, err := rd.dev.ReadSample(ctx)
	rd.mu.Unlock()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}

	json.NewEncoder(w).Encode(struct {
		Raw   gyro.RawSample `json:"raw"`
		Rates gyro.Rates     `json:"rad_s"`
		Time  string         `json:"time"`
	}{s, s.Rates(), time.Now().Format(time.RFC3339Nano)})
}

func errorResponse(message string) RegisterResponse {
	return RegisterResponse{Type: "error", Message: message}
}

// parseHexByte accepts "0x2E" or "2E".
func parseHexByte(s string) (byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}
