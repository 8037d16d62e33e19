// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package notify

import (
	"testing"
	"time"
)

func TestCenter_AddAndRemove(t *testing.T) {
	c := NewCenter()

	id := c.Error("Save failed", "disk full")
	if got := c.List(); len(got) != 1 || got[0].Kind != KindError || !got[0].Sticky() {
		t.Fatalf("List() = %+v", got)
	}
	if !c.Remove(id) {
		t.Error("Remove() = false, want true")
	}
	if c.Remove(id) {
		t.Error("second Remove() = true, want false")
	}
	if len(c.List()) != 0 {
		t.Error("expected empty list")
	}
}

func TestCenter_AutoDismiss(t *testing.T) {
	c := NewCenter()
	gone := make(chan struct{})
	c.Subscribe(func(items []Notification) {
		if len(items) == 0 {
			select {
			case <-gone:
			default:
				close(gone)
			}
		}
	})

	c.Add(KindInfo, "hi", "", 10*time.Millisecond)

	select {
	case <-gone:
	case <-time.After(2 * time.Second):
		t.Fatal("notification was not auto-dismissed")
	}
}

func TestCenter_DefaultDurations(t *testing.T) {
	tests := []struct {
		name string
		add  func(c *Center)
		kind Kind
		want time.Duration
	}{
		{"success", func(c *Center) { c.Success("a", "") }, KindSuccess, 5 * time.Second},
		{"info", func(c *Center) { c.Info("a", "") }, KindInfo, 5 * time.Second},
		{"warning", func(c *Center) { c.Warn("a", "") }, KindWarning, 7 * time.Second},
		{"error", func(c *Center) { c.Error("a", "") }, KindError, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCenter()
			tt.add(c)
			items := c.List()
			if len(items) != 1 {
				t.Fatalf("got %d items", len(items))
			}
			if items[0].Kind != tt.kind || items[0].Duration != tt.want {
				t.Errorf("got kind=%s duration=%v, want %s %v", items[0].Kind, items[0].Duration, tt.kind, tt.want)
			}
			c.Clear()
		})
	}
}

func TestCenter_CapDropsOldest(t *testing.T) {
	c := NewCenter()
	first := c.Error("first", "")
	for i := 0; i < MaxNotifications; i++ {
		c.Error("more", "")
	}

	items := c.List()
	if len(items) != MaxNotifications {
		t.Fatalf("len = %d, want %d", len(items), MaxNotifications)
	}
	for _, n := range items {
		if n.ID == first {
			t.Error("oldest notification should have been dropped")
		}
	}
}
