// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jeranaias/rigchat/internal/ollama"
)

type scriptedProber struct {
	mu      sync.Mutex
	results []ollama.HealthStatus
	calls   int
}

func (p *scriptedProber) CheckHealth(context.Context) ollama.HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.calls
	if i >= len(p.results) {
		i = len(p.results) - 1
	}
	p.calls++
	return p.results[i]
}

func TestMonitor_NotifiesOnlyOnChange(t *testing.T) {
	p := &scriptedProber{results: []ollama.HealthStatus{
		{Connected: true, URL: "u"},
		{Connected: true, URL: "u"},
		{Connected: false, URL: "u", Error: "refused"},
		{Connected: false, URL: "u", Error: "refused"},
		{Connected: true, URL: "u"},
	}}
	m := NewMonitor(p)

	var got []bool
	m.Subscribe(func(s Status) { got = append(got, s.Connected) })

	for i := 0; i < 5; i++ {
		m.Check(context.Background())
	}

	want := []bool{true, false, true}
	if len(got) != len(want) {
		t.Fatalf("got %v notifications, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d = %v, want %v", i, got[i], want[i])
		}
	}

	st, ok := m.Status()
	if !ok || !st.Connected {
		t.Errorf("Status() = %+v, %v", st, ok)
	}
}

func TestMonitor_StatusBeforeFirstCheck(t *testing.T) {
	m := NewMonitor(&scriptedProber{results: []ollama.HealthStatus{{}}})
	if _, ok := m.Status(); ok {
		t.Error("expected no status before the first probe")
	}
}

func TestMonitor_StartStop(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	client := ollama.NewClientWithConfig(&ollama.ClientConfig{BaseURL: srv.URL})
	m := NewMonitor(client, WithInterval(10*time.Millisecond), WithTimeout(time.Second))

	connected := make(chan struct{}, 1)
	m.Subscribe(func(s Status) {
		if s.Connected {
			select {
			case connected <- struct{}{}:
			default:
			}
		}
	})

	m.Start(context.Background())
	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor never reported connected")
	}

	deadline := time.Now().Add(2 * time.Second)
	for hits.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	m.Stop()
	m.Stop()

	if hits.Load() < 3 {
		t.Errorf("expected repeated probes, got %d", hits.Load())
	}
}
