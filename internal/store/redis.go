// redis.go -- go-redis credential document store.
//
// Each credential is one JSON document keyed by email, plus a secondary key
// mapping the customer id to that email. Writes that must keep email
// uniqueness run as Lua scripts so the check and the write are one step.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	credentialEmailPrefix    = "credential:email:"
	credentialCustomerPrefix = "credential:customer:"
)

func credentialEmailKey(email string) string { return credentialEmailPrefix + email }

func credentialCustomerKey(customerID int) string {
	return fmt.Sprintf("%s%d", credentialCustomerPrefix, customerID)
}

// RedisStore wraps a Redis client holding credential documents.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisClient parses redisURL, connects, and pings.
// Call once at startup; the client is shared and safe for concurrent use.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, err
	}
	return rdb, nil
}

// NewRedisStore returns a credential store over an existing client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// Close shuts down the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// CheckHealth pings Redis.
func (s *RedisStore) CheckHealth(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// insertScript writes the document only when neither key exists.
// KEYS[1] = email key, KEYS[2] = customer key, ARGV[1] = document, ARGV[2] = email.
// Returns 1 on insert, 0 when either key is taken.
var insertScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 or redis.call('EXISTS', KEYS[2]) == 1 then
    return 0
end
redis.call('SET', KEYS[1], ARGV[1])
redis.call('SET', KEYS[2], ARGV[2])
return 1
`)

// replaceScript swaps the customer's document, moving it to a new email key if needed.
// KEYS[1] = customer key, ARGV[1] = email key prefix, ARGV[2] = new email, ARGV[3] = document.
// Returns 1 on replace, 0 when the customer has no document, -1 when the new email is taken.
var replaceScript = redis.NewScript(`
local old = redis.call('GET', KEYS[1])
if not old then
    return 0
end
local newKey = ARGV[1] .. ARGV[2]
if old ~= ARGV[2] then
    if redis.call('EXISTS', newKey) == 1 then
        return -1
    end
    redis.call('DEL', ARGV[1] .. old)
end
redis.call('SET', newKey, ARGV[3])
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)

// Insert stores a new credential document.
// Returns ErrDuplicateKey if the email or the customer already has one.
func (s *RedisStore) Insert(ctx context.Context, cred *Credential) error {
	doc, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	n, err := insertScript.Run(ctx, s.rdb,
		[]string{credentialEmailKey(cred.EmailAddress), credentialCustomerKey(cred.CustomerID)},
		doc, cred.EmailAddress,
	).Int()
	if err != nil {
		return fmt.Errorf("inserting credential: %w", err)
	}
	if n == 0 {
		return ErrDuplicateKey
	}
	return nil
}

// ReplaceByCustomerID overwrites the customer's whole document with cred.
// cred.CustomerID is forced to customerID.
func (s *RedisStore) ReplaceByCustomerID(ctx context.Context, customerID int, cred *Credential) error {
	c := *cred
	c.CustomerID = customerID
	doc, err := json.Marshal(&c)
	if err != nil {
		return fmt.Errorf("marshaling credential: %w", err)
	}

	n, err := replaceScript.Run(ctx, s.rdb,
		[]string{credentialCustomerKey(customerID)},
		credentialEmailPrefix, c.EmailAddress, doc,
	).Int()
	if err != nil {
		return fmt.Errorf("replacing credential: %w", err)
	}
	switch n {
	case 0:
		return ErrCredentialNotFound
	case -1:
		return ErrDuplicateKey
	}
	return nil
}

// FindByEmail returns the document stored under email, matched exactly (no case folding).
func (s *RedisStore) FindByEmail(ctx context.Context, email string) (*Credential, error) {
	raw, err := s.rdb.Get(ctx, credentialEmailKey(email)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching credential: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(raw, &cred); err != nil {
		return nil, fmt.Errorf("parsing credential: %w", err)
	}
	return &cred, nil
}

// FindByCustomerID resolves the customer's email through the secondary key.
func (s *RedisStore) FindByCustomerID(ctx context.Context, customerID int) (*Credential, error) {
	email, err := s.rdb.Get(ctx, credentialCustomerKey(customerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCredentialNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching credential index: %w", err)
	}
	return s.FindByEmail(ctx, email)
}

// ExistsByEmail reports whether a document is stored under email.
func (s *RedisStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	n, err := s.rdb.Exists(ctx, credentialEmailKey(email)).Result()
	if err != nil {
		return false, fmt.Errorf("checking credential: %w", err)
	}
	return n == 1, nil
}

// IsAdmin reports whether email has a credential with the Admin role.
func (s *RedisStore) IsAdmin(ctx context.Context, email string) (bool, error) {
	cred, err := s.FindByEmail(ctx, email)
	if errors.Is(err, ErrCredentialNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return cred.Role == RoleAdmin, nil
}
