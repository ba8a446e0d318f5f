package user

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when no account matches the lookup.
var ErrNotFound = errors.New("user not found")

// ErrUsernameTaken is returned by Create when the username is already
// registered, case-insensitively.
var ErrUsernameTaken = errors.New("username already taken")

// ErrEmailTaken is returned by Create when the email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// ErrUnavailable wraps backend failures.
var ErrUnavailable = errors.New("user store unavailable")

const (
	createStatusOK            int64 = 0
	createStatusUsernameTaken int64 = 1
	createStatusEmailTaken    int64 = 2
)

// createScript claims both uniqueness indexes and writes the account hash
// in one atomic step, so two concurrent registrations can never both win
// the same username or email.
const createScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 1
end
if redis.call("EXISTS", KEYS[2]) == 1 then
  return 2
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("HSET", KEYS[3],
  "id", ARGV[1],
  "username", ARGV[2],
  "email", ARGV[3],
  "pass", ARGV[4],
  "verified", "0",
  "created", ARGV[5])
return 0
`

var createLua = redis.NewScript(createScript)

// Record is one stored account.
type Record struct {
	ID            string
	Username      string
	Email         string
	PasswordHash  string
	EmailVerified bool
	CreatedAt     time.Time
}

// Redacted returns a copy safe to hand to callers outside the engine,
// with the password hash stripped.
func (r *Record) Redacted() *Record {
	c := *r
	c.PasswordHash = ""
	return &c
}

// Store is the Redis-backed account registry. Usernames and emails are
// unique case-insensitively; lookups go through lowercase index keys that
// point at the account id.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a registry backed by the given Redis client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "bb"
	}
	return &Store{redis: client, prefix: prefix}
}

func (s *Store) idKey(id string) string {
	return s.prefix + ":user:id:" + id
}

func (s *Store) nameKey(username string) string {
	return s.prefix + ":user:name:" + strings.ToLower(username)
}

func (s *Store) emailKey(email string) string {
	return s.prefix + ":user:email:" + strings.ToLower(email)
}

// Create registers a new account. The email is stored lowercased; the
// username keeps its original casing but is indexed case-insensitively.
func (s *Store) Create(ctx context.Context, username, email, passwordHash string) (*Record, error) {
	if username == "" || email == "" || passwordHash == "" {
		return nil, errors.New("username, email, and password hash are required")
	}

	id := uuid.NewString()
	email = strings.ToLower(email)
	now := time.Now()

	keys := []string{s.nameKey(username), s.emailKey(email), s.idKey(id)}
	result, err := createLua.Run(ctx, s.redis, keys, id, username, email, passwordHash, now.Unix()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	code, ok := result.(int64)
	if !ok {
		return nil, fmt.Errorf("%w: invalid create script response", ErrUnavailable)
	}
	switch code {
	case createStatusOK:
		return &Record{
			ID:           id,
			Username:     username,
			Email:        email,
			PasswordHash: passwordHash,
			CreatedAt:    time.Unix(now.Unix(), 0),
		}, nil
	case createStatusUsernameTaken:
		return nil, ErrUsernameTaken
	case createStatusEmailTaken:
		return nil, ErrEmailTaken
	default:
		return nil, fmt.Errorf("%w: unknown create script status", ErrUnavailable)
	}
}

// GetByID returns the account with the given id.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	fields, err := s.redis.HGetAll(ctx, s.idKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(fields) == 0 {
		return nil, ErrNotFound
	}
	return recordFromFields(fields)
}

// GetByUsername resolves a username, case-insensitively.
func (s *Store) GetByUsername(ctx context.Context, username string) (*Record, error) {
	return s.getByIndex(ctx, s.nameKey(username))
}

// GetByEmail resolves an email, case-insensitively.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Record, error) {
	return s.getByIndex(ctx, s.emailKey(email))
}

// GetByIdentifier resolves a login identifier: anything containing "@" is
// treated as an email, everything else as a username.
func (s *Store) GetByIdentifier(ctx context.Context, identifier string) (*Record, error) {
	if strings.Contains(identifier, "@") {
		return s.GetByEmail(ctx, identifier)
	}
	return s.GetByUsername(ctx, identifier)
}

func (s *Store) getByIndex(ctx context.Context, indexKey string) (*Record, error) {
	id, err := s.redis.Get(ctx, indexKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return s.GetByID(ctx, id)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	return s.setField(ctx, id, "pass", passwordHash)
}

// MarkEmailVerified flags the account's email as verified. Idempotent.
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	return s.setField(ctx, id, "verified", "1")
}

func (s *Store) setField(ctx context.Context, id, field, value string) error {
	key := s.idKey(id)

	exists, err := s.redis.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if exists == 0 {
		return ErrNotFound
	}

	if err := s.redis.HSet(ctx, key, field, value).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Delete removes the account and both of its uniqueness indexes.
func (s *Store) Delete(ctx context.Context, id string) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.redis.Del(ctx, s.idKey(id), s.nameKey(rec.Username), s.emailKey(rec.Email)).Err()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func recordFromFields(fields map[string]string) (*Record, error) {
	id := fields["id"]
	if id == "" {
		return nil, fmt.Errorf("%w: account record missing id", ErrUnavailable)
	}

	created, err := strconv.ParseInt(fields["created"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad account created-at", ErrUnavailable)
	}

	return &Record{
		ID:            id,
		Username:      fields["username"],
		Email:         fields["email"],
		PasswordHash:  fields["pass"],
		EmailVerified: fields["verified"] == "1",
		CreatedAt:     time.Unix(created, 0),
	}, nil
}
