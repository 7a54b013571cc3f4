package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightsaga/config"
	"github.com/Domenick1991/flightsaga/internal/domain"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     redis.UniversalClient
	flightsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, flightsTTL time.Duration) *RedisCache {
	return NewRedisCacheWithClient(
		redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		flightsTTL,
	)
}

func NewRedisCacheWithClient(client redis.UniversalClient, flightsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, flightsTTL: flightsTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetFlights returns nil, nil on a cache miss.
func (c *RedisCache) GetFlights(ctx context.Context) ([]domain.Flight, error) {
	data, err := c.client.Get(ctx, flightsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var flights []domain.Flight
	if err := json.Unmarshal(data, &flights); err != nil {
		return nil, err
	}
	return flights, nil
}

func (c *RedisCache) SetFlights(ctx context.Context, flights []domain.Flight) error {
	payload, err := json.Marshal(flights)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, flightsKey(), payload, c.flightsTTL).Err()
}

func (c *RedisCache) InvalidateFlights(ctx context.Context) error {
	return c.client.Del(ctx, flightsKey()).Err()
}

// GetMetadata returns nil, nil on a cache miss.
func (c *RedisCache) GetMetadata(ctx context.Context, flightID string) (*domain.FlightMetadata, error) {
	data, err := c.client.Get(ctx, metadataKey(flightID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var meta domain.FlightMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// SetMetadata caches schedule data. It never changes after creation, so the
// entry lives ten times longer than the flight list.
func (c *RedisCache) SetMetadata(ctx context.Context, meta *domain.FlightMetadata) error {
	payload, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, metadataKey(meta.FlightID), payload, 10*c.flightsTTL).Err()
}

// AcquireInFlightLock marks a reservation for (flightID, email) as running.
// It returns acquired=false when another reservation for the same identity
// holds it. The token must be handed back to ReleaseInFlightLock.
func (c *RedisCache) AcquireInFlightLock(ctx context.Context, flightID, email string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	acquired, err := c.client.SetNX(ctx, inFlightKey(flightID, email), token, ttl).Result()
	if err != nil || !acquired {
		return "", false, err
	}
	return token, true, nil
}

// releaseInFlight deletes the lock only while it still holds the caller's
// token. A lock that expired and was taken by another reservation stays.
var releaseInFlight = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (c *RedisCache) ReleaseInFlightLock(ctx context.Context, flightID, email, token string) error {
	return releaseInFlight.Run(ctx, c.client, []string{inFlightKey(flightID, email)}, token).Err()
}

func flightsKey() string {
	return "cache:flights"
}

func metadataKey(flightID string) string {
	return "cache:flight:" + flightID + ":metadata"
}

func inFlightKey(flightID, email string) string {
	return fmt.Sprintf("lock:booking:%s:%s", flightID, strings.ToLower(email))
}
