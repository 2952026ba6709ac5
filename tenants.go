package auth

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TenantDirectory manages organisations and their establishments.
// Organisation names are unique, establishment names are unique
// within their organisation.
type TenantDirectory struct {
	repo   RepositoryManager
	clock  Clock
	logger Logger
}

// NewTenantDirectory creates a new tenant directory
func NewTenantDirectory(repo RepositoryManager) *TenantDirectory {
	return &TenantDirectory{
		repo:   repo,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (d *TenantDirectory) WithLogger(logger Logger) *TenantDirectory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

// WithClock sets the clock used for timestamps
func (d *TenantDirectory) WithClock(clock Clock) *TenantDirectory {
	d.clock = clock
	return d
}

// CreateOrganisation stores a new organisation
func (d *TenantDirectory) CreateOrganisation(ctx context.Context, name string) (*Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "organisation name is required")
	}

	var org *Organisation
	err := d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		existing, err := d.repo.Organisations().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyExists("organisation %q already exists", name)
		}

		now := d.clock.now()
		org, err = d.repo.Organisations().Create(ctx, &Organisation{
			Name:      name,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// UpdateOrganisation renames an organisation
func (d *TenantDirectory) UpdateOrganisation(ctx context.Context, id uuid.UUID, name string) (*Organisation, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "organisation name is required")
	}

	var org *Organisation
	err := d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		current, err := d.repo.Organisations().GetByID(ctx, id)
		if err != nil {
			return err
		}

		existing, err := d.repo.Organisations().FindByName(ctx, name)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != id {
			return alreadyExists("organisation %q already exists", name)
		}

		current.Name = name
		current.UpdatedAt = d.clock.now()
		org, err = d.repo.Organisations().Update(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return org, nil
}

// GetOrganisation returns the organisation with id
func (d *TenantDirectory) GetOrganisation(ctx context.Context, id uuid.UUID) (*Organisation, error) {
	return d.repo.Organisations().GetByID(ctx, id)
}

// GetOrganisationByName returns the organisation named name
func (d *TenantDirectory) GetOrganisationByName(ctx context.Context, name string) (*Organisation, error) {
	org, err := d.repo.Organisations().FindByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, notFound("organisation %q not found", name)
	}
	return org, nil
}

// SearchOrganisations lists organisations whose name contains name
func (d *TenantDirectory) SearchOrganisations(ctx context.Context, name string, page Pagination) (Page[*Organisation], error) {
	page = page.normalize()
	records, total, err := d.repo.Organisations().Search(ctx, name, page)
	if err != nil {
		return Page[*Organisation]{}, err
	}
	return NewPage(records, page.Page, page.Limit, total), nil
}

// DeleteOrganisation removes the organisation with its establishments,
// their accounts and the sessions of those accounts
func (d *TenantDirectory) DeleteOrganisation(ctx context.Context, id uuid.UUID) error {
	return d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		if _, err := d.repo.Organisations().GetByID(ctx, id); err != nil {
			return err
		}

		estIDs, err := d.repo.Establishments().IDsByOrganisation(ctx, id)
		if err != nil {
			return err
		}

		if err := d.deleteAccountsOf(ctx, estIDs); err != nil {
			return err
		}

		n, err := d.repo.Establishments().DeleteByOrganisation(ctx, id)
		if err != nil {
			return err
		}

		d.logger.Info("deleting organisation %s with %d establishment(s)", id, n)
		return d.repo.Organisations().Delete(ctx, id)
	})
}

// CreateEstablishment stores a new establishment under organisationID
func (d *TenantDirectory) CreateEstablishment(ctx context.Context, organisationID uuid.UUID, name string) (*Establishment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "establishment name is required")
	}

	var est *Establishment
	err := d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		if _, err := d.repo.Organisations().GetByID(ctx, organisationID); err != nil {
			return err
		}

		existing, err := d.repo.Establishments().FindByName(ctx, organisationID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyExists("establishment %q already exists in organisation %s", name, organisationID)
		}

		now := d.clock.now()
		est, err = d.repo.Establishments().Create(ctx, &Establishment{
			OrganisationID: organisationID,
			Name:           name,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return est, nil
}

// UpdateEstablishment renames an establishment within its organisation
func (d *TenantDirectory) UpdateEstablishment(ctx context.Context, id uuid.UUID, name string) (*Establishment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, badRequest(TextCodeValidation, "establishment name is required")
	}

	var est *Establishment
	err := d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		current, err := d.repo.Establishments().GetByID(ctx, id)
		if err != nil {
			return err
		}

		existing, err := d.repo.Establishments().FindByName(ctx, current.OrganisationID, name)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID != id {
			return alreadyExists("establishment %q already exists in organisation %s", name, current.OrganisationID)
		}

		current.Name = name
		current.UpdatedAt = d.clock.now()
		est, err = d.repo.Establishments().Update(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return est, nil
}

// GetEstablishment returns the establishment with id
func (d *TenantDirectory) GetEstablishment(ctx context.Context, id uuid.UUID) (*Establishment, error) {
	return d.repo.Establishments().GetByID(ctx, id)
}

// GetEstablishmentByName returns the establishment named name in organisationID
func (d *TenantDirectory) GetEstablishmentByName(ctx context.Context, organisationID uuid.UUID, name string) (*Establishment, error) {
	est, err := d.repo.Establishments().FindByName(ctx, organisationID, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if est == nil {
		return nil, notFound("establishment %q not found in organisation %s", name, organisationID)
	}
	return est, nil
}

// SearchEstablishments lists establishments whose name contains name,
// optionally restricted to one organisation
func (d *TenantDirectory) SearchEstablishments(ctx context.Context, organisationID *uuid.UUID, name string, page Pagination) (Page[*Establishment], error) {
	page = page.normalize()
	records, total, err := d.repo.Establishments().Search(ctx, organisationID, name, page)
	if err != nil {
		return Page[*Establishment]{}, err
	}
	return NewPage(records, page.Page, page.Limit, total), nil
}

// DeleteEstablishment removes the establishment, its accounts and
// the sessions of those accounts
func (d *TenantDirectory) DeleteEstablishment(ctx context.Context, id uuid.UUID) error {
	return d.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		if _, err := d.repo.Establishments().GetByID(ctx, id); err != nil {
			return err
		}

		if err := d.deleteAccountsOf(ctx, []uuid.UUID{id}); err != nil {
			return err
		}

		return d.repo.Establishments().Delete(ctx, id)
	})
}

// ResolvePair loads an organisation and one of its establishments by name
func (d *TenantDirectory) ResolvePair(ctx context.Context, organisation, establishment string) (*Organisation, *Establishment, error) {
	org, err := d.GetOrganisationByName(ctx, organisation)
	if err != nil {
		return nil, nil, err
	}

	est, err := d.GetEstablishmentByName(ctx, org.ID, establishment)
	if err != nil {
		return nil, nil, err
	}

	return org, est, nil
}

func (d *TenantDirectory) deleteAccountsOf(ctx context.Context, establishmentIDs []uuid.UUID) error {
	accountIDs, err := d.repo.Accounts().IDsByEstablishments(ctx, establishmentIDs)
	if err != nil {
		return err
	}

	sessions, err := d.repo.Sessions().DeleteByIdentities(ctx, accountIDs)
	if err != nil {
		return err
	}

	accounts, err := d.repo.Accounts().DeleteByEstablishments(ctx, establishmentIDs)
	if err != nil {
		return err
	}

	if accounts > 0 {
		d.logger.Info("deleted %d account(s) and %d session(s)", accounts, sessions)
	}
	return nil
}
