package obslog

import "testing"

func TestNewDefaultsToInfoOnBadLevel(t *testing.T) {
	log, err := New("not-a-level", false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if log == nil {
		t.Fatal("want non-nil logger")
	}
	defer log.Sync() //nolint:errcheck
}

func TestNoopDiscardsWithoutPanicking(t *testing.T) {
	log := Noop()
	log.Info("hello")
}
