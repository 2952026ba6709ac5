package auth

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Organisations stores organisations
type Organisations interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Organisation, error)
	FindByName(ctx context.Context, name string) (*Organisation, error)
	Create(ctx context.Context, org *Organisation) (*Organisation, error)
	Update(ctx context.Context, org *Organisation) (*Organisation, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, name string, page Pagination) ([]*Organisation, int, error)
}

// Establishments stores establishments scoped by organisation
type Establishments interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Establishment, error)
	FindByName(ctx context.Context, organisationID uuid.UUID, name string) (*Establishment, error)
	Create(ctx context.Context, est *Establishment) (*Establishment, error)
	Update(ctx context.Context, est *Establishment) (*Establishment, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByOrganisation(ctx context.Context, organisationID uuid.UUID) (int, error)
	IDsByOrganisation(ctx context.Context, organisationID uuid.UUID) ([]uuid.UUID, error)
	Search(ctx context.Context, organisationID *uuid.UUID, name string, page Pagination) ([]*Establishment, int, error)
}

// AccountFilter narrows account searches. Nil fields do not filter.
type AccountFilter struct {
	UserID          *uuid.UUID
	OrganisationID  *uuid.UUID
	EstablishmentID *uuid.UUID
}

// Accounts stores user accounts
type Accounts interface {
	GetByID(ctx context.Context, id uuid.UUID) (*UserAccount, error)
	FindByTenant(ctx context.Context, userID, organisationID, establishmentID uuid.UUID) (*UserAccount, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAccount, error)
	Create(ctx context.Context, account *UserAccount) (*UserAccount, error)
	Update(ctx context.Context, account *UserAccount) (*UserAccount, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteByEstablishments(ctx context.Context, establishmentIDs []uuid.UUID) (int, error)
	IDsByEstablishments(ctx context.Context, establishmentIDs []uuid.UUID) ([]uuid.UUID, error)
	Search(ctx context.Context, filter AccountFilter, page Pagination) ([]*UserAccount, int, error)
}

type organisations struct {
	modelStore[*Organisation]
}

var _ Organisations = (*organisations)(nil)

func NewOrganisationsRepository(db *bun.DB) Organisations {
	return &organisations{
		modelStore: newModelStore(db, "organisation",
			func() *Organisation { return &Organisation{} },
			func(o *Organisation) *uuid.UUID {
				if o == nil {
					return nil
				}
				return &o.ID
			},
		),
	}
}

func (r *organisations) GetByID(ctx context.Context, id uuid.UUID) (*Organisation, error) {
	return r.get(ctx, id)
}

func (r *organisations) FindByName(ctx context.Context, name string) (*Organisation, error) {
	return r.find(ctx, where("?TableAlias.name = ?", name))
}

func (r *organisations) Create(ctx context.Context, org *Organisation) (*Organisation, error) {
	return r.create(ctx, org)
}

func (r *organisations) Update(ctx context.Context, org *Organisation) (*Organisation, error) {
	return r.update(ctx, org)
}

func (r *organisations) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *organisations) Search(ctx context.Context, name string, page Pagination) ([]*Organisation, int, error) {
	return r.list(ctx,
		nameContains(name),
		orderBy("LOWER(?TableAlias.name) ASC"),
		paginate(page),
	)
}

type establishments struct {
	modelStore[*Establishment]
}

var _ Establishments = (*establishments)(nil)

func NewEstablishmentsRepository(db *bun.DB) Establishments {
	return &establishments{
		modelStore: newModelStore(db, "establishment",
			func() *Establishment { return &Establishment{} },
			func(e *Establishment) *uuid.UUID {
				if e == nil {
					return nil
				}
				return &e.ID
			},
		),
	}
}

func (r *establishments) GetByID(ctx context.Context, id uuid.UUID) (*Establishment, error) {
	return r.get(ctx, id)
}

func (r *establishments) FindByName(ctx context.Context, organisationID uuid.UUID, name string) (*Establishment, error) {
	return r.find(ctx, where("?TableAlias.organisation_id = ? AND ?TableAlias.name = ?", organisationID, name))
}

func (r *establishments) Create(ctx context.Context, est *Establishment) (*Establishment, error) {
	return r.create(ctx, est)
}

func (r *establishments) Update(ctx context.Context, est *Establishment) (*Establishment, error) {
	return r.update(ctx, est)
}

func (r *establishments) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *establishments) DeleteByOrganisation(ctx context.Context, organisationID uuid.UUID) (int, error) {
	res, err := conn(ctx, r.db).NewDelete().
		Model((*Establishment)(nil)).
		Where("organisation_id = ?", organisationID).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to delete establishments")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *establishments) IDsByOrganisation(ctx context.Context, organisationID uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	err := conn(ctx, r.db).NewSelect().
		Model((*Establishment)(nil)).
		Column("id").
		Where("organisation_id = ?", organisationID).
		Scan(ctx, &ids)
	if err != nil {
		return nil, internalError(err, "failed to list establishments")
	}
	return ids, nil
}

func (r *establishments) Search(ctx context.Context, organisationID *uuid.UUID, name string, page Pagination) ([]*Establishment, int, error) {
	criteria := []repository.SelectCriteria{nameContains(name)}
	if organisationID != nil {
		criteria = append(criteria, where("?TableAlias.organisation_id = ?", *organisationID))
	}
	criteria = append(criteria, orderBy("LOWER(?TableAlias.name) ASC"), paginate(page))
	return r.list(ctx, criteria...)
}

type accounts struct {
	modelStore[*UserAccount]
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{
		modelStore: newModelStore(db, "user account",
			func() *UserAccount { return &UserAccount{} },
			func(a *UserAccount) *uuid.UUID {
				if a == nil {
					return nil
				}
				return &a.ID
			},
		),
	}
}

func (r *accounts) GetByID(ctx context.Context, id uuid.UUID) (*UserAccount, error) {
	return r.get(ctx, id)
}

func (r *accounts) FindByTenant(ctx context.Context, userID, organisationID, establishmentID uuid.UUID) (*UserAccount, error) {
	return r.find(ctx, where(
		"?TableAlias.user_id = ? AND ?TableAlias.organisation_id = ? AND ?TableAlias.establishment_id = ?",
		userID, organisationID, establishmentID,
	))
}

// ListByUser returns the accounts of userID, oldest first
func (r *accounts) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAccount, error) {
	records, _, err := r.list(ctx,
		where("?TableAlias.user_id = ?", userID),
		orderBy("?TableAlias.created_at ASC", "?TableAlias.id ASC"),
	)
	return records, err
}

func (r *accounts) Create(ctx context.Context, account *UserAccount) (*UserAccount, error) {
	return r.create(ctx, account)
}

func (r *accounts) Update(ctx context.Context, account *UserAccount) (*UserAccount, error) {
	return r.update(ctx, account)
}

func (r *accounts) Delete(ctx context.Context, id uuid.UUID) error {
	return r.delete(ctx, id)
}

func (r *accounts) DeleteByEstablishments(ctx context.Context, establishmentIDs []uuid.UUID) (int, error) {
	if len(establishmentIDs) == 0 {
		return 0, nil
	}
	res, err := conn(ctx, r.db).NewDelete().
		Model((*UserAccount)(nil)).
		Where("establishment_id IN (?)", bun.In(establishmentIDs)).
		Exec(ctx)
	if err != nil {
		return 0, internalError(err, "failed to delete user accounts")
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (r *accounts) IDsByEstablishments(ctx context.Context, establishmentIDs []uuid.UUID) ([]uuid.UUID, error) {
	ids := []uuid.UUID{}
	if len(establishmentIDs) == 0 {
		return ids, nil
	}
	err := conn(ctx, r.db).NewSelect().
		Model((*UserAccount)(nil)).
		Column("id").
		Where("establishment_id IN (?)", bun.In(establishmentIDs)).
		Scan(ctx, &ids)
	if err != nil {
		return nil, internalError(err, "failed to list user accounts")
	}
	return ids, nil
}

func (r *accounts) Search(ctx context.Context, filter AccountFilter, page Pagination) ([]*UserAccount, int, error) {
	var criteria []repository.SelectCriteria
	if filter.UserID != nil {
		criteria = append(criteria, where("?TableAlias.user_id = ?", *filter.UserID))
	}
	if filter.OrganisationID != nil {
		criteria = append(criteria, where("?TableAlias.organisation_id = ?", *filter.OrganisationID))
	}
	if filter.EstablishmentID != nil {
		criteria = append(criteria, where("?TableAlias.establishment_id = ?", *filter.EstablishmentID))
	}
	criteria = append(criteria,
		orderBy("?TableAlias.created_at ASC", "?TableAlias.id ASC"),
		paginate(page),
	)
	return r.list(ctx, criteria...)
}
