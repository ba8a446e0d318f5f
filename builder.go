package authkit

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/bookbuddy/authkit/mailer"
	"github.com/bookbuddy/authkit/password"
	"github.com/bookbuddy/authkit/session"
	"github.com/bookbuddy/authkit/token"
	"github.com/bookbuddy/authkit/user"
)

// Builder assembles an Engine from a Config and its collaborators. A
// Builder is single-use; configure it, call Build once, and discard it.
type Builder struct {
	config    Config
	redis     redis.UniversalClient
	mailer    mailer.Mailer
	auditSink AuditSink
	purger    DataPurger

	built bool
}

// New returns a Builder preloaded with the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the entire configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the Redis client backing every store.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMailer sets the outbound email collaborator.
func (b *Builder) WithMailer(m mailer.Mailer) *Builder {
	b.mailer = m
	return b
}

// WithAuditSink sets the destination for audit events. Without one, audit
// events are dispatched to a NoOpSink.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithDataPurger sets the collaborator that removes a user's owned data
// outside this module during account deletion. Optional; without one only
// auth state is deleted.
func (b *Builder) WithDataPurger(p DataPurger) *Builder {
	b.purger = p
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, wires the stores, and returns the
// Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.mailer == nil {
		return nil, errors.New("mailer required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	codec, err := token.NewManager(token.Config{
		AccessSecret:  cfg.Token.AccessSecret,
		RefreshSecret: cfg.Token.RefreshSecret,
		AccessTTL:     cfg.Token.AccessTTL,
		RefreshTTL:    cfg.Token.RefreshTTL,
		Issuer:        cfg.Token.Issuer,
		Audience:      cfg.Token.Audience,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(password.Config{
		Cost: cfg.Password.Cost,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:    cfg,
		users:     user.NewStore(b.redis, cfg.RedisPrefix),
		sessions:  session.NewStore(b.redis, cfg.RedisPrefix),
		tokens:    newSingleUseStore(b.redis, cfg.RedisPrefix, cfg.Tokens.ExpiredRetention),
		codes:     newCodeStore(b.redis, cfg.RedisPrefix, cfg.Codes),
		history:   newHistoryStore(b.redis, cfg.RedisPrefix, cfg.History),
		deletions: newDeletionStore(b.redis, cfg.RedisPrefix, cfg.History.Retention),
		codec:     codec,
		hasher:    hasher,
		mailer:    b.mailer,
		purger:    b.purger,
		audit:     newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:   NewMetrics(cfg.Metrics),
	}

	b.built = true

	return engine, nil
}
