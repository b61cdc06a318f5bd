package service

import (
	"context"
	"encoding/json"
	"time"
)

func (m *memCache) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if m.getErr != nil {
		return false, m.getErr
	}
	b, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (m *memCache) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if m.setErr != nil {
		return m.setErr
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.entries[key] = b
	return nil
}

func (m *memCache) Invalidate(ctx context.Context) error {
	m.invalidate++
	m.entries = map[string][]byte{}
	return nil
}

func (m *memCache) Ping(ctx context.Context) error { return nil }

func (m *memCache) Close() error { return nil }
