package cache

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent from the cache.
var ErrMiss = errors.New("cache miss")

const ticketListTTL = 30 * time.Second

type ValkeyClient struct {
	client       *redis.Client
	usersHashKey string
}

func NewValkeyClient() (*ValkeyClient, error) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	password := os.Getenv("VALKEY_PASSWORD")
	usersHashKey := os.Getenv("VALKEY_USERS_HASH_KEY")
	if usersHashKey == "" {
		usersHashKey = "users:auth"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyClient{
		client:       rdb,
		usersHashKey: usersHashKey,
	}, nil
}

// GetAuth resolves a credential pair to a user id and role. Cache entries
// hold "id:role" so authorization does not need a DB round trip on a hit.
func (v *ValkeyClient) GetAuth(ctx context.Context, email, passwordHash string) (int64, string, error) {
	cacheKey := authKey(email, passwordHash)

	value, err := v.client.HGet(ctx, v.usersHashKey, cacheKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, "", ErrMiss
		}
		return 0, "", fmt.Errorf("cache lookup error: %w", err)
	}

	idStr, role, ok := strings.Cut(value, ":")
	if !ok {
		return 0, "", fmt.Errorf("malformed auth cache entry %q", value)
	}
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid user ID in cache: %w", err)
	}

	return userID, role, nil
}

// SetAuth stores a resolved credential pair after a DB lookup.
func (v *ValkeyClient) SetAuth(ctx context.Context, email, passwordHash string, userID int64, role string) error {
	cacheKey := authKey(email, passwordHash)
	value := fmt.Sprintf("%d:%s", userID, role)
	return v.client.HSet(ctx, v.usersHashKey, cacheKey, value).Err()
}

func authKey(email, passwordHash string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + passwordHash))
}

// GetTicketListRaw returns the cached JSON body for a ticket list page.
// Keys carry the current list version so a bump invalidates every page at
// once without scanning.
func (v *ValkeyClient) GetTicketListRaw(ctx context.Context, filterKey string) ([]byte, error) {
	version, err := v.ticketListVersion(ctx)
	if err != nil {
		return nil, err
	}

	raw, err := v.client.Get(ctx, ticketListKey(version, filterKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("cache lookup error: %w", err)
	}
	return raw, nil
}

// SetTicketList stores a serialized ticket list page.
func (v *ValkeyClient) SetTicketList(ctx context.Context, filterKey string, raw []byte) error {
	version, err := v.ticketListVersion(ctx)
	if err != nil {
		return err
	}
	return v.client.Set(ctx, ticketListKey(version, filterKey), raw, ticketListTTL).Err()
}

// BumpTicketListVersion invalidates all cached ticket list pages. Called
// after any catalog or inventory mutation; stale pages expire on their
// own TTL.
func (v *ValkeyClient) BumpTicketListVersion(ctx context.Context) error {
	return v.client.Incr(ctx, "tickets:list:version").Err()
}

func (v *ValkeyClient) ticketListVersion(ctx context.Context) (int64, error) {
	version, err := v.client.Get(ctx, "tickets:list:version").Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("cache lookup error: %w", err)
	}
	return version, nil
}

func ticketListKey(version int64, filterKey string) string {
	return fmt.Sprintf("tickets:list:v%d:%s", version, filterKey)
}

func (v *ValkeyClient) Close() error {
	return v.client.Close()
}
