package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shashiranjanraj/campusmart/config"
	"github.com/shashiranjanraj/campusmart/pkg/cache"
	"github.com/shashiranjanraj/campusmart/pkg/docstore"
	"github.com/shashiranjanraj/campusmart/pkg/event"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

// AccountsCollection holds one document per account.
const AccountsCollection = "accounts"

const minPasswordLen = 6

// Options configures a Service.
type Options struct {
	Secret        []byte
	TokenTTL      time.Duration
	MaxAttempts   int
	AttemptWindow time.Duration
	// HashCost is the bcrypt cost; zero means bcrypt.DefaultCost.
	HashCost int
	Now      func() time.Time
}

// OptionsFromConfig reads JWT_SECRET, JWT_TTL, AUTH_MAX_ATTEMPTS and
// AUTH_ATTEMPT_WINDOW.
func OptionsFromConfig() Options {
	return Options{
		Secret:        []byte(config.JWTSecret()),
		TokenTTL:      config.JWTTTL(),
		MaxAttempts:   config.AuthMaxAttempts(),
		AttemptWindow: config.AuthAttemptWindow(),
	}
}

type accountDoc struct {
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"passwordHash"`
	CreatedAt    time.Time `bson:"createdAt"`
}

// Service is the Provider backed by the document store and the cache.
type Service struct {
	store  docstore.Store
	cache  cache.Store
	events *event.Dispatcher
	opts   Options
}

var _ Provider = (*Service)(nil)

// NewService wires a Service. A nil dispatcher uses event.Default.
func NewService(store docstore.Store, c cache.Store, events *event.Dispatcher, opts Options) *Service {
	if events == nil {
		events = event.Default
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 24 * time.Hour
	}
	return &Service{store: store, cache: c, events: events, opts: opts}
}

// ── Accounts ─────────────────────────────────────────────────────────────────

func (s *Service) CreateAccount(ctx context.Context, email, password string) (Account, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Account{}, err
	}
	if utf8.RuneCountInString(password) < minPasswordLen {
		return Account{}, newError(CodeWeakPassword, fmt.Sprintf("password must be at least %d characters", minPasswordLen), nil)
	}

	if _, _, err := s.findByEmail(ctx, email); err == nil {
		return Account{}, newError(CodeEmailInUse, email, nil)
	} else if CodeOf(err) != CodeUserNotFound {
		return Account{}, err
	}

	hash, err := hashPassword(password, s.opts.HashCost)
	if err != nil {
		return Account{}, err
	}
	now := s.opts.Now().UTC()
	uid, err := s.store.Add(ctx, AccountsCollection, accountDoc{Email: email, PasswordHash: hash, CreatedAt: now})
	if err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return Account{}, newError(CodeEmailInUse, email, err)
		}
		return Account{}, backendError("create account", err)
	}

	logger.WithCtx(ctx).Info("identity: account created", "uid", uid)
	return Account{UID: uid, Email: email, CreatedAt: now}, nil
}

func (s *Service) findByEmail(ctx context.Context, email string) (Account, accountDoc, error) {
	docs, err := s.store.Find(ctx, docstore.From(AccountsCollection).Where("email", docstore.Eq, email))
	if err != nil {
		return Account{}, accountDoc{}, backendError("find account", err)
	}
	if len(docs) == 0 {
		return Account{}, accountDoc{}, newError(CodeUserNotFound, email, nil)
	}
	var doc accountDoc
	if err := docs[0].Decode(&doc); err != nil {
		return Account{}, accountDoc{}, backendError("decode account", err)
	}
	return Account{UID: docs[0].ID, Email: doc.Email, CreatedAt: doc.CreatedAt}, doc, nil
}

// ── Sessions ─────────────────────────────────────────────────────────────────

func (s *Service) SignIn(ctx context.Context, email, password string) (Credential, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return Credential{}, err
	}
	if s.throttled(ctx, email) {
		return Credential{}, newError(CodeTooMany, "try again later", nil)
	}

	acct, doc, err := s.findByEmail(ctx, email)
	if err != nil {
		if CodeOf(err) == CodeUserNotFound {
			s.recordFailure(ctx, email)
		}
		return Credential{}, err
	}
	if !checkPassword(doc.PasswordHash, password) {
		s.recordFailure(ctx, email)
		return Credential{}, newError(CodeWrongPassword, "", nil)
	}
	if s.cache != nil {
		_ = s.cache.Del(ctx, attemptsKey(email))
	}

	now := s.opts.Now()
	token, claims, err := issueToken(s.opts.Secret, acct, now, s.opts.TokenTTL)
	if err != nil {
		return Credential{}, err
	}

	s.events.Fire(EventSignedIn, StateChange{UID: acct.UID, SignedIn: true})
	return Credential{Account: acct, Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// SignOut revokes token until it would have expired. Signing out an invalid
// or already revoked token is a no-op.
func (s *Service) SignOut(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	now := s.opts.Now()
	claims, err := parseToken(s.opts.Secret, token, now)
	if err != nil {
		return nil
	}
	if s.cache != nil {
		ttl := claims.ExpiresAt.Sub(now)
		if err := s.cache.Set(ctx, revokedKey(claims.ID), true, ttl); err != nil {
			return newError(CodeNetworkFailure, "revoke token", err)
		}
	}
	s.events.Fire(EventSignedOut, StateChange{UID: claims.Subject, SignedIn: false})
	return nil
}

func (s *Service) Verify(ctx context.Context, token string) (Account, error) {
	claims, err := parseToken(s.opts.Secret, token, s.opts.Now())
	if err != nil {
		return Account{}, newError(CodeInvalidToken, "", err)
	}
	var revoked bool
	if s.cache != nil && s.cache.Get(ctx, revokedKey(claims.ID), &revoked) && revoked {
		return Account{}, newError(CodeInvalidToken, "", errRevoked)
	}
	return Account{UID: claims.Subject, Email: claims.Email}, nil
}

func (s *Service) OnAuthStateChanged(fn func(StateChange)) func() {
	stop1 := s.events.Listen(EventSignedIn, func(p any) {
		if sc, ok := p.(StateChange); ok {
			fn(sc)
		}
	})
	stop2 := s.events.Listen(EventSignedOut, func(p any) {
		if sc, ok := p.(StateChange); ok {
			fn(sc)
		}
	})
	return func() {
		stop1()
		stop2()
	}
}

// ── Throttling ───────────────────────────────────────────────────────────────

func (s *Service) throttled(ctx context.Context, email string) bool {
	if s.cache == nil || s.opts.MaxAttempts <= 0 {
		return false
	}
	var n int
	return s.cache.Get(ctx, attemptsKey(email), &n) && n >= s.opts.MaxAttempts
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if s.cache == nil || s.opts.MaxAttempts <= 0 {
		return
	}
	if _, err := s.cache.Incr(ctx, attemptsKey(email), s.opts.AttemptWindow); err != nil {
		logger.WithCtx(ctx).Warn("identity: record failed sign-in", "error", err)
	}
}

func attemptsKey(email string) string { return "campusmart:signin:" + email }
func revokedKey(jti string) string    { return "campusmart:revoked:" + jti }

// ── Helpers ──────────────────────────────────────────────────────────────────

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", newError(CodeInvalidEmail, email, nil)
	}
	return email, nil
}

// backendError maps a document store failure onto an identity error.
// Context errors pass through untouched.
func backendError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, docstore.ErrUnavailable) {
		return newError(CodeNetworkFailure, op, err)
	}
	return fmt.Errorf("identity: %s: %w", op, err)
}
