package engine

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/config"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/domain"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/engine/auth"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/events"
	"github.com/Zeyad-Hassan-1/TaskManagerAPI/internal/repo"
)

// Engine runs every mutation as authorize, guard, mutate and append event inside one
// transaction. Reads authorize against the database directly.
type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Now    func() time.Time
	Log    *zap.Logger
}

func New(db *sql.DB, cfg *config.Config) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Config: cfg,
		Now:    time.Now,
		Log:    zap.NewNop(),
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) stamp() string {
	return e.now().UTC().Format(time.RFC3339)
}

func (e Engine) log() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

// Policy returns the authorization policy from the workspace config.
func (e Engine) Policy() auth.Policy {
	return e.Config.AuthPolicy()
}

// Authorizer reads memberships outside any transaction.
func (e Engine) Authorizer() auth.Authorizer {
	st := e.Repo.Members()
	st.Now = e.now
	return auth.New(st, st, e.Policy())
}

// txScope carries everything a mutation needs inside its transaction.
type txScope struct {
	tx    *sql.Tx
	store repo.Store
	authz auth.Authorizer
}

// inTx runs fn in an immediate transaction. Check and write share it, so a guard such as
// the assignee count cannot be invalidated between reading and removing.
func (e Engine) inTx(ctx context.Context, fn func(s txScope) error) error {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	st := e.Repo.Tx(tx)
	st.Now = e.now
	if err := fn(txScope{tx: tx, store: st, authz: auth.New(st, st, e.Policy())}); err != nil {
		return err
	}
	return tx.Commit()
}

// record logs the outcome of op. Denials are expected traffic and stay at debug.
func (e Engine) record(op string, err error, fields ...zap.Field) {
	if err == nil {
		e.log().Info(op, fields...)
		return
	}
	var ae *auth.Error
	if errors.As(err, &ae) || errors.Is(err, repo.ErrNotFound) {
		e.log().Debug(op+" denied", append(fields, zap.Strings("codes", auth.Codes(err)), zap.Error(err))...)
		return
	}
	e.log().Error(op+" failed", append(fields, zap.Error(err))...)
}

func required(code, field, value string) error {
	if strings.TrimSpace(value) == "" {
		return auth.Validation(code, "%s is required", field)
	}
	return nil
}

// PrincipalOptions registers a principal. ID defaults to a new uuid.
type PrincipalOptions struct {
	ID    string
	Name  string
	Email string
}

func (e Engine) RegisterPrincipal(ctx context.Context, opts PrincipalOptions) (domain.Principal, error) {
	p := domain.Principal{
		ID:        strings.TrimSpace(opts.ID),
		Name:      strings.TrimSpace(opts.Name),
		Email:     strings.TrimSpace(opts.Email),
		CreatedAt: e.stamp(),
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	err := e.inTx(ctx, func(s txScope) error {
		if err := e.Repo.InsertPrincipal(ctx, s.tx, p); err != nil {
			return err
		}
		return e.Events.Append(ctx, s.tx, events.Record{
			Type: events.PrincipalRegistered, ResourceKind: "principal", ResourceID: p.ID, ActorID: p.ID,
		})
	})
	e.record("principal registered", err, zap.String("principal", p.ID))
	return p, err
}

// CreateAPIKey issues a new key for principalID. The plaintext key is only returned here.
func (e Engine) CreateAPIKey(ctx context.Context, principalID, name string) (string, domain.APIKey, error) {
	if _, err := e.Repo.GetPrincipal(ctx, nil, principalID); err != nil {
		return "", domain.APIKey{}, err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "tm_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:          uuid.NewString(),
		PrincipalID: principalID,
		Name:        name,
		KeyHash:     repo.HashAPIKey(plain),
		CreatedAt:   e.stamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	e.record("api key created", nil, zap.String("principal", principalID), zap.String("key_id", key.ID))
	return plain, key, nil
}

// ListAPIKeys returns the keys issued to principalID, newest first.
func (e Engine) ListAPIKeys(ctx context.Context, principalID string) ([]domain.APIKey, error) {
	if _, err := e.Repo.GetPrincipal(ctx, nil, principalID); err != nil {
		return nil, err
	}
	return e.Repo.ListAPIKeys(ctx, principalID)
}

// RevokeAPIKey deletes a key so it no longer authenticates.
func (e Engine) RevokeAPIKey(ctx context.Context, id string) error {
	err := e.Repo.DeleteAPIKey(ctx, id)
	e.record("api key revoked", err, zap.String("key_id", id))
	return err
}

// requirePrincipal reports a missing principal as NotFound.
func (e Engine) requirePrincipal(ctx context.Context, tx *sql.Tx, id string) error {
	if err := required("principal_required", "principal id", id); err != nil {
		return err
	}
	_, err := e.Repo.GetPrincipal(ctx, tx, id)
	return err
}

// requireResource reports a missing team, project or task as NotFound.
func (e Engine) requireResource(ctx context.Context, tx *sql.Tx, res auth.Resource) error {
	if err := res.Validate(); err != nil {
		return err
	}
	var err error
	switch res.Kind {
	case auth.ScopeTeam:
		_, err = e.Repo.GetTeam(ctx, tx, res.ID)
	case auth.ScopeProject:
		_, err = e.Repo.GetProject(ctx, tx, res.ID)
	case auth.ScopeTask:
		_, err = e.Repo.GetTask(ctx, tx, res.ID)
	}
	return err
}
