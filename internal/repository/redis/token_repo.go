package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/mediocregopher/radix/v3"
)

const revokedPrefix = "murmur:revoked:"

// TokenBlocklist keeps revoked token ids in Redis with a TTL matching the
// token's remaining lifetime, so entries vanish once the token expires anyway.
type TokenBlocklist struct {
	client radix.Client
}

func NewTokenBlocklist(client radix.Client) *TokenBlocklist {
	return &TokenBlocklist{client: client}
}

func (b *TokenBlocklist) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	secs := int(ttl.Round(time.Second).Seconds())
	if secs <= 0 {
		return nil
	}
	return b.client.Do(radix.Cmd(nil, "SET", revokedPrefix+tokenID, "1", "EX", strconv.Itoa(secs)))
}

func (b *TokenBlocklist) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	var n int
	if err := b.client.Do(radix.Cmd(&n, "EXISTS", revokedPrefix+tokenID)); err != nil {
		return false, err
	}
	return n > 0, nil
}
