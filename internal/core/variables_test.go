package core

import (
	"context"
	"sync"
	"testing"
)

func TestMapVariables(t *testing.T) {
	vars := NewVariables()
	vars.Set("key", "value")
	val, ok := vars.Get("key")
	if !ok || val != "value" {
		t.Errorf("expected 'value', got %v", val)
	}
	_, ok = vars.Get("missing")
	if ok {
		t.Error("expected not found")
	}
}

func TestMapVariables_ConcurrentAccess(t *testing.T) {
	vars := NewVariables()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vars.Set("index", i)
			vars.Get("index")
		}(i)
	}
	wg.Wait()

	if _, ok := vars.Get("index"); !ok {
		t.Error("expected index to be set")
	}
}

func TestContextWithCallIndex(t *testing.T) {
	ctx := context.Background()
	if idx := CallIndexFromContext(ctx); idx != 0 {
		t.Errorf("expected 0, got %d", idx)
	}
	ctx = ContextWithCallIndex(ctx, 42)
	if idx := CallIndexFromContext(ctx); idx != 42 {
		t.Errorf("expected 42, got %d", idx)
	}
}
