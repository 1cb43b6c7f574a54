// Package registry mirrors live reader sessions into Redis so operators and
// sibling bridge instances can see which clients are attached where. Entries
// carry a TTL and are refreshed on traffic, so a crashed bridge's sessions
// age out on their own.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const sessionTTL = 300 * time.Second

// Registry records session presence. A nil *Registry (or one built with a
// nil client) is a no-op, so callers never need to guard for the disabled
// configuration.
type Registry struct {
	rdb      *redis.Client
	bridgeID string
	log      zerolog.Logger
}

// New returns a registry backed by rdb. Pass a nil client to disable.
func New(rdb *redis.Client, bridgeID string, log zerolog.Logger) *Registry {
	if rdb == nil {
		return nil
	}
	return &Registry{rdb: rdb, bridgeID: bridgeID, log: log}
}

func (r *Registry) key(connID string) string {
	return fmt.Sprintf("card:sess:%s", connID)
}

// Register stores the session with its bridge and client address.
func (r *Registry) Register(ctx context.Context, connID, clientAddr string) {
	if r == nil {
		return
	}
	value := fmt.Sprintf("%s:%s", r.bridgeID, clientAddr)
	if err := r.rdb.Set(ctx, r.key(connID), value, sessionTTL).Err(); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("session register failed")
	}
}

// Touch refreshes the session TTL after activity.
func (r *Registry) Touch(ctx context.Context, connID string) {
	if r == nil {
		return
	}
	if err := r.rdb.Expire(ctx, r.key(connID), sessionTTL).Err(); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("session touch failed")
	}
}

// Remove deletes the session entry on close.
func (r *Registry) Remove(ctx context.Context, connID string) {
	if r == nil {
		return
	}
	if err := r.rdb.Del(ctx, r.key(connID)).Err(); err != nil {
		r.log.Warn().Err(err).Str("conn_id", connID).Msg("session remove failed")
	}
}
