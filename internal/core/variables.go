package core

import (
	"context"
	"sync"
)

// Variables provides values for placeholder substitution in a call.
type Variables interface {
	Get(key string) (any, bool)
	Set(key string, value any)
}

// MapVariables is a map-based Variables implementation, safe for concurrent use.
type MapVariables struct {
	mu   sync.RWMutex
	data map[string]any
}

func NewVariables() *MapVariables {
	return &MapVariables{data: make(map[string]any)}
}

func (v *MapVariables) Get(key string) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.data[key]
	return val, ok
}

func (v *MapVariables) Set(key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.data[key] = value
}

// Context key for passing the call index to transports.
type contextKey string

const callIndexContextKey contextKey = "callIndex"

func ContextWithCallIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, callIndexContextKey, index)
}

func CallIndexFromContext(ctx context.Context) int {
	if idx, ok := ctx.Value(callIndexContextKey).(int); ok {
		return idx
	}
	return 0
}
