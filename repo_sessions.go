package auth

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions stores bearer sessions keyed by token. Token keyed tables do
// not fit the uuid handlers of go-repository-bun and are queried with bun.
// An expiration equal to now counts as expired, matching Session.IsActive.
type Sessions interface {
	FindByToken(ctx context.Context, token string) (*Session, error)
	Create(ctx context.Context, session *Session) (*Session, error)
	DeleteByToken(ctx context.Context, token string) (int, error)
	DeleteByIdentity(ctx context.Context, identityID uuid.UUID) (int, error)
	DeleteByIdentities(ctx context.Context, identityIDs []uuid.UUID) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
	CountByIdentity(ctx context.Context, identityID uuid.UUID) (int, error)
}

// ActionTokens stores action tokens keyed by token
type ActionTokens interface {
	FindByToken(ctx context.Context, token string) (*ActionToken, error)
	Create(ctx context.Context, token *ActionToken) (*ActionToken, error)
	DeleteByToken(ctx context.Context, token string) (int, error)
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type sessions struct {
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	return &sessions{db: db}
}

func (r *sessions) FindByToken(ctx context.Context, token string) (*Session, error) {
	record := &Session{}
	err := conn(ctx, r.db).NewSelect().
		Model(record).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, internalError(err, "failed to retrieve session")
	}
	return record, nil
}

func (r *sessions) Create(ctx context.Context, session *Session) (*Session, error) {
	if _, err := conn(ctx, r.db).NewInsert().Model(session).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to create session")
	}
	return session, nil
}

func (r *sessions) DeleteByToken(ctx context.Context, token string) (int, error) {
	return r.delete(ctx, "token = ?", token)
}

func (r *sessions) DeleteByIdentity(ctx context.Context, identityID uuid.UUID) (int, error) {
	return r.delete(ctx, "identity_id = ?", identityID)
}

func (r *sessions) DeleteByIdentities(ctx context.Context, identityIDs []uuid.UUID) (int, error) {
	if len(identityIDs) == 0 {
		return 0, nil
	}
	return r.delete(ctx, "identity_id IN (?)", bun.In(identityIDs))
}

func (r *sessions) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.delete(ctx, "expiration_date <= ?", now)
}

func (r *sessions) CountByIdentity(ctx context.Context, identityID uuid.UUID) (int, error) {
	count, err := conn(ctx, r.db).NewSelect().
		Model((*Session)(nil)).
		Where("identity_id = ?", identityID).
		Count(ctx)
	if err != nil {
		return 0, internalError(err, "failed to count sessions")
	}
	return count, nil
}

func (r *sessions) delete(ctx context.Context, where string, args ...any) (int, error) {
	res, err := conn(ctx, r.db).NewDelete().
		Model((*Session)(nil)).
		Where(where, args...).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to delete sessions")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

type actionTokens struct {
	db *bun.DB
}

var _ ActionTokens = (*actionTokens)(nil)

func NewActionTokensRepository(db *bun.DB) ActionTokens {
	return &actionTokens{db: db}
}

func (r *actionTokens) FindByToken(ctx context.Context, token string) (*ActionToken, error) {
	record := &ActionToken{}
	err := conn(ctx, r.db).NewSelect().
		Model(record).
		Where("token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, nil
		}
		return nil, internalError(err, "failed to retrieve action token")
	}
	return record, nil
}

func (r *actionTokens) Create(ctx context.Context, token *ActionToken) (*ActionToken, error) {
	if _, err := conn(ctx, r.db).NewInsert().Model(token).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to create action token")
	}
	return token, nil
}

func (r *actionTokens) DeleteByToken(ctx context.Context, token string) (int, error) {
	return r.delete(ctx, "token = ?", token)
}

func (r *actionTokens) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	return r.delete(ctx, "expires_at IS NOT NULL AND expires_at <= ?", now)
}

func (r *actionTokens) delete(ctx context.Context, where string, args ...any) (int, error) {
	res, err := conn(ctx, r.db).NewDelete().
		Model((*ActionToken)(nil)).
		Where(where, args...).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to delete action tokens")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
