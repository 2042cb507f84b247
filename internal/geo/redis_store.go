package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/squadra-app/livetrack/internal/models"
)

// RedisStore implements RiderStore using Redis GEO commands plus a hash of
// per-rider metadata. Fixes are written with GEOADD so an ops console can run
// proximity queries against the same keys.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, password, prefix string) *RedisStore {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return &RedisStore{client: c, prefix: prefix}
}

// Ping reports Redis connectivity; the consumer's readiness probe uses it.
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisStore) Upsert(ctx context.Context, fix models.RiderFix) error {
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}
	if err := r.client.GeoAdd(ctx, r.geoKey(fix.RideID), &redis.GeoLocation{
		Longitude: fix.Longitude,
		Latitude:  fix.Latitude,
		Name:      fix.UserID,
	}).Err(); err != nil {
		return err
	}
	if err := r.client.SAdd(ctx, r.memberKey(fix.RideID), fix.UserID).Err(); err != nil {
		return err
	}
	return r.client.HSet(ctx, r.fixKey(fix.RideID, fix.UserID), map[string]interface{}{
		"heading":  fix.Heading,
		"speed":    fix.Speed,
		"accuracy": fix.Accuracy,
		"updated":  fix.Timestamp.Format(time.RFC3339),
	}).Err()
}

func (r *RedisStore) List(ctx context.Context, rideID string) ([]models.RiderFix, error) {
	members, err := r.client.SMembers(ctx, r.memberKey(rideID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}
	positions, err := r.client.GeoPos(ctx, r.geoKey(rideID), members...).Result()
	if err != nil {
		return nil, err
	}
	out := make([]models.RiderFix, 0, len(members))
	for i, userID := range members {
		if i >= len(positions) || positions[i] == nil {
			continue
		}
		fix := models.RiderFix{
			RideID:    rideID,
			UserID:    userID,
			Latitude:  positions[i].Latitude,
			Longitude: positions[i].Longitude,
		}
		if m, err := r.client.HGetAll(ctx, r.fixKey(rideID, userID)).Result(); err == nil {
			fix.Heading = parseFloat(m["heading"])
			fix.Speed = parseFloat(m["speed"])
			fix.Accuracy = parseFloat(m["accuracy"])
			if ts, err := time.Parse(time.RFC3339, m["updated"]); err == nil {
				fix.Timestamp = ts
			}
		}
		out = append(out, fix)
	}
	return out, nil
}

func parseFloat(v string) float64 {
	f, _ := strconv.ParseFloat(v, 64)
	return f
}

func (r *RedisStore) geoKey(rideID string) string    { return r.prefix + ":ride:" + rideID + ":geo" }
func (r *RedisStore) memberKey(rideID string) string { return r.prefix + ":ride:" + rideID + ":members" }
func (r *RedisStore) fixKey(rideID, userID string) string {
	return r.prefix + ":ride:" + rideID + ":fix:" + userID
}
