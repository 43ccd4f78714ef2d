package cache

import (
	"context"
	"fmt"
	"time"
)

type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (hit bool, err error)
	SetJSON(ctx context.Context, key string, val any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Key helpers so every caller spells the same key the same way.

func ReportKey(sessionID string) string {
	return fmt.Sprintf("interview:report:%s", sessionID)
}

func SummaryKey(sessionID string) string {
	return fmt.Sprintf("interview:summary:%s", sessionID)
}

func RefreshTokenKey(token string) string {
	return fmt.Sprintf("auth:refresh:%s", token)
}
