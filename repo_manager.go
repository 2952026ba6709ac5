package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories. RunInTx joins the
// transaction already carried by the context.
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Validate() error
	Users() Users
	Credentials() Credentials
	Roles() Roles
	Sessions() Sessions
	ActionTokens() ActionTokens
	Organisations() Organisations
	Establishments() Establishments
	Accounts() Accounts
}

var txCtxKey = &contextKey{"tx"}

type contextKey struct {
	name string
}

func withTx(ctx context.Context, tx bun.Tx) context.Context {
	return context.WithValue(ctx, txCtxKey, tx)
}

func txFromContext(ctx context.Context) (bun.Tx, bool) {
	tx, ok := ctx.Value(txCtxKey).(bun.Tx)
	return tx, ok
}

// conn returns the transaction carried by ctx or db
func conn(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// modelStore maps a uuid keyed go-repository-bun repository onto the
// transaction carried by the context and the package error taxonomy
type modelStore[T any] struct {
	db    *bun.DB
	repo  repository.Repository[T]
	idOf  func(T) *uuid.UUID
	label string
}

func newModelStore[T any](db *bun.DB, label string, newRecord func() T, idOf func(T) *uuid.UUID) modelStore[T] {
	handlers := repository.ModelHandlers[T]{
		NewRecord: newRecord,
		GetID: func(record T) uuid.UUID {
			if id := idOf(record); id != nil {
				return *id
			}
			return uuid.Nil
		},
		SetID: func(record T, id uuid.UUID) {
			if target := idOf(record); target != nil {
				*target = id
			}
		},
		GetIdentifier: func() string {
			return "id"
		},
	}
	return modelStore[T]{
		db:    db,
		repo:  repository.NewRepository[T](db, handlers),
		idOf:  idOf,
		label: label,
	}
}

func (s modelStore[T]) get(ctx context.Context, id uuid.UUID) (T, error) {
	record, err := s.repo.GetByIDTx(ctx, conn(ctx, s.db), id.String())
	if err != nil {
		var zero T
		if repository.IsRecordNotFound(err) {
			return zero, s.missing(id)
		}
		return zero, internalError(err, "failed to retrieve "+s.label)
	}
	return record, nil
}

// find returns the first record matching criteria or the zero value
func (s modelStore[T]) find(ctx context.Context, criteria ...repository.SelectCriteria) (T, error) {
	record, err := s.repo.GetTx(ctx, conn(ctx, s.db), criteria...)
	if err != nil {
		var zero T
		if repository.IsRecordNotFound(err) {
			return zero, nil
		}
		return zero, internalError(err, "failed to retrieve "+s.label)
	}
	return record, nil
}

func (s modelStore[T]) list(ctx context.Context, criteria ...repository.SelectCriteria) ([]T, int, error) {
	records, total, err := s.repo.ListTx(ctx, conn(ctx, s.db), criteria...)
	if err != nil {
		return nil, 0, internalError(err, "failed to list "+s.label+" records")
	}
	if records == nil {
		records = []T{}
	}
	return records, total, nil
}

func (s modelStore[T]) create(ctx context.Context, record T) (T, error) {
	if id := s.idOf(record); id != nil && *id == uuid.Nil {
		*id = uuid.New()
	}
	created, err := s.repo.CreateTx(ctx, conn(ctx, s.db), record)
	if err != nil {
		var zero T
		return zero, internalError(err, "failed to create "+s.label)
	}
	return created, nil
}

// update writes every column but the key and creation time, so fields
// reset to their zero value (enabled=false, empty description) persist.
func (s modelStore[T]) update(ctx context.Context, record T) (T, error) {
	var zero T
	id := *s.idOf(record)
	res, err := conn(ctx, s.db).NewUpdate().
		Model(record).
		WherePK().
		ExcludeColumn("id", "created_at").
		Returning("*").
		Exec(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, s.missing(id)
		}
		return zero, internalError(err, "failed to update "+s.label)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return zero, s.missing(id)
	}
	return record, nil
}

func (s modelStore[T]) missing(id uuid.UUID) error {
	return notFound("%s %s not found", s.label, id).
		WithMetadata(map[string]any{"id": id.String()})
}

func (s modelStore[T]) delete(ctx context.Context, id uuid.UUID) error {
	record, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteTx(ctx, conn(ctx, s.db), record); err != nil {
		return internalError(err, "failed to delete "+s.label)
	}
	return nil
}

func where(query string, args ...any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(query, args...)
	}
}

func orderBy(orders ...string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.OrderExpr(strings.Join(orders, ", "))
	}
}

func paginate(page Pagination) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Limit(page.Limit).Offset(page.offset())
	}
}

// nameContains filters on a case insensitive substring of the name column.
// LOWER + LIKE behaves as ILIKE on both Postgres and SQLite.
func nameContains(name string) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		name = strings.TrimSpace(name)
		if name == "" {
			return q
		}
		return q.Where("LOWER(?TableAlias.name) LIKE ? ESCAPE '!'", "%"+escapeLike(strings.ToLower(name))+"%")
	}
}

func escapeLike(s string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return r.Replace(s)
}

type txManager struct {
	db *bun.DB
}

func (m txManager) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if tx, ok := txFromContext(ctx); ok {
		return f(ctx, tx)
	}

	return m.db.RunInTx(ctx, opts, func(ctx context.Context, tx bun.Tx) error {
		return f(withTx(ctx, tx), tx)
	})
}

type mngr struct {
	txManager
	users          Users
	credentials    Credentials
	roles          Roles
	sessions       Sessions
	actionTokens   ActionTokens
	organisations  Organisations
	establishments Establishments
	accounts       Accounts
}

// NewRepositoryManager builds every repository over db
func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		txManager:      txManager{db: db},
		users:          NewUsersRepository(db),
		credentials:    NewCredentialsRepository(db),
		roles:          NewRolesRepository(db),
		sessions:       NewSessionsRepository(db),
		actionTokens:   NewActionTokensRepository(db),
		organisations:  NewOrganisationsRepository(db),
		establishments: NewEstablishmentsRepository(db),
		accounts:       NewAccountsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository manager needs a database")
	}

	checks := map[string]bool{
		"users":          m.users == nil,
		"credentials":    m.credentials == nil,
		"roles":          m.roles == nil,
		"sessions":       m.sessions == nil,
		"actionTokens":   m.actionTokens == nil,
		"organisations":  m.organisations == nil,
		"establishments": m.establishments == nil,
		"accounts":       m.accounts == nil,
	}
	for name, missing := range checks {
		if missing {
			return errors.New("repository " + name + " should be initialized")
		}
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) Users() Users                   { return m.users }
func (m mngr) Credentials() Credentials       { return m.credentials }
func (m mngr) Roles() Roles                   { return m.roles }
func (m mngr) Sessions() Sessions             { return m.sessions }
func (m mngr) ActionTokens() ActionTokens     { return m.actionTokens }
func (m mngr) Organisations() Organisations   { return m.organisations }
func (m mngr) Establishments() Establishments { return m.establishments }
func (m mngr) Accounts() Accounts             { return m.accounts }
