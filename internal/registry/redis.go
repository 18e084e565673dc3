package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adamscao/certvault/internal/models"
)

// DefaultRedisKey is the key the browser registry persisted its list under
const DefaultRedisKey = "certificates"

// RedisRegistry persists the whole registry as one JSON array under a
// single key. Every append reads the entire list, appends and writes the
// entire list back inside a WATCH transaction.
type RedisRegistry struct {
	client redis.UniversalClient
	key    string
}

// getter is satisfied by both the client and a WATCH transaction
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// NewRedisRegistry creates a registry stored under key
func NewRedisRegistry(client redis.UniversalClient, key string) *RedisRegistry {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisRegistry{client: client, key: key}
}

// Append adds rec to the persisted list
func (r *RedisRegistry) Append(ctx context.Context, rec *models.CertificateRecord) error {
	key := models.NormalizeCertificateID(rec.CertificateID)

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		records, err := r.load(ctx, tx)
		if err != nil {
			return err
		}

		for _, existing := range records {
			if models.NormalizeCertificateID(existing.CertificateID) == key {
				return ErrDuplicateIdentifier
			}
		}

		records = append(records, rec)
		payload, err := json.Marshal(records)
		if err != nil {
			return fmt.Errorf("failed to encode registry: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, r.key, payload, 0)
			return nil
		})
		return err
	}, r.key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrConcurrentWrite
	}
	if err != nil && !errors.Is(err, ErrDuplicateIdentifier) {
		return fmt.Errorf("failed to append certificate record: %w", err)
	}
	return err
}

// FindByIdentifier scans the persisted list for a matching identifier
func (r *RedisRegistry) FindByIdentifier(ctx context.Context, id string) (*models.CertificateRecord, error) {
	records, err := r.load(ctx, r.client)
	if err != nil {
		return nil, err
	}

	want := models.NormalizeCertificateID(id)
	for _, rec := range records {
		if models.NormalizeCertificateID(rec.CertificateID) == want {
			return rec, nil
		}
	}
	return nil, ErrNotFound
}

// List returns the persisted list without document bytes
func (r *RedisRegistry) List(ctx context.Context) ([]*models.CertificateRecord, error) {
	records, err := r.load(ctx, r.client)
	if err != nil {
		return nil, err
	}
	for i, rec := range records {
		records[i] = rec.WithoutDocument()
	}
	return records, nil
}

// CountIssuedSince counts records issued by issuer at or after since
func (r *RedisRegistry) CountIssuedSince(ctx context.Context, issuer string, since time.Time) (int, error) {
	records, err := r.load(ctx, r.client)
	if err != nil {
		return 0, err
	}
	return countIssuedSince(records, issuer, since), nil
}

func (r *RedisRegistry) load(ctx context.Context, c getter) ([]*models.CertificateRecord, error) {
	data, err := c.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var records []*models.CertificateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	return records, nil
}
