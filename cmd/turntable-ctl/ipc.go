package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"
)

// Wire types, duplicated from turntabled for a standalone binary.

type eventEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type periodData struct {
	PeriodUS int64 `json:"period_us"`
}

type ipcResponse struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	Inhibited *bool  `json:"inhibited,omitempty"`
}

// newPeriodEvent builds a fine_speed_sample or revolution_tick envelope.
func newPeriodEvent(typ string, periodUS int64) (eventEnvelope, error) {
	data, err := json.Marshal(periodData{PeriodUS: periodUS})
	if err != nil {
		return eventEnvelope{}, err
	}
	return eventEnvelope{Type: typ, Data: data}, nil
}

// maxPeriodUS is the largest period the daemon accepts (fits a time.Duration).
const maxPeriodUS = math.MaxInt64 / int64(time.Microsecond)

// parsePeriod parses a period argument in microseconds.
func parsePeriod(s string) (int64, error) {
	us, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid period %q: %w", s, err)
	}
	if us <= 0 || us > maxPeriodUS {
		return 0, fmt.Errorf("period must be 1..%d microseconds, got %d", maxPeriodUS, us)
	}
	return us, nil
}

// sendEvent writes one line-delimited JSON event and reads the response.
func sendEvent(socketPath string, env eventEnvelope) (ipcResponse, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(env)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send event: %w", err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != "ok" {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}
