package lifecycle

import "testing"

func TestIsShuttingDown_DefaultFalse(t *testing.T) {
	Reset()
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true, want false by default")
	}
}

func TestSetShuttingDown(t *testing.T) {
	Reset()
	defer Reset()
	SetShuttingDown(true)
	if !IsShuttingDown() {
		t.Error("IsShuttingDown() = false after SetShuttingDown(true), want true")
	}
	SetShuttingDown(false)
	if IsShuttingDown() {
		t.Error("IsShuttingDown() = true after SetShuttingDown(false), want false")
	}
}

func TestIsReady(t *testing.T) {
	Reset()
	defer Reset()
	if IsReady() {
		t.Fatal("IsReady() = true before MarkReady")
	}
	MarkReady()
	if !IsReady() {
		t.Fatal("IsReady() = false after MarkReady")
	}
	SetShuttingDown(true)
	if IsReady() {
		t.Error("IsReady() = true while shutting down")
	}
}
