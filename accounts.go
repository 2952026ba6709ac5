package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// CreateAccountRequest binds a user to a tenant pairing
type CreateAccountRequest struct {
	UserID          uuid.UUID `json:"user_id"`
	OrganisationID  uuid.UUID `json:"organisation_id"`
	EstablishmentID uuid.UUID `json:"establishment_id"`
	Roles           []string  `json:"roles"`
}

// UpdateAccountRequest changes an account. Nil fields are left as they are,
// a non nil Roles replaces the whole role set.
type UpdateAccountRequest struct {
	OrganisationID  *uuid.UUID `json:"organisation_id,omitempty"`
	EstablishmentID *uuid.UUID `json:"establishment_id,omitempty"`
	Roles           []string   `json:"roles,omitempty"`
}

// AccountBinder manages user accounts. An account references an
// establishment of its own organisation, and a user holds at most one
// account per tenant pairing.
type AccountBinder struct {
	repo   RepositoryManager
	roles  *RoleRegistry
	clock  Clock
	logger Logger
}

// NewAccountBinder creates a new account binder
func NewAccountBinder(repo RepositoryManager, roles *RoleRegistry) *AccountBinder {
	return &AccountBinder{
		repo:   repo,
		roles:  roles,
		logger: defLogger{},
	}
}

// WithLogger sets the logger
func (b *AccountBinder) WithLogger(logger Logger) *AccountBinder {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// WithClock sets the clock used for timestamps
func (b *AccountBinder) WithClock(clock Clock) *AccountBinder {
	b.clock = clock
	return b
}

// Create stores a new account
func (b *AccountBinder) Create(ctx context.Context, req CreateAccountRequest) (*UserAccount, error) {
	var account *UserAccount
	err := b.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		if _, err := b.repo.Users().GetByID(ctx, req.UserID); err != nil {
			return err
		}

		if err := b.checkTenant(ctx, req.OrganisationID, req.EstablishmentID); err != nil {
			return err
		}

		roles, err := b.roles.ResolveNames(ctx, req.Roles)
		if err != nil {
			return err
		}

		existing, err := b.repo.Accounts().FindByTenant(ctx, req.UserID, req.OrganisationID, req.EstablishmentID)
		if err != nil {
			return err
		}
		if existing != nil {
			return alreadyExists("user %s already has an account in establishment %s", req.UserID, req.EstablishmentID)
		}

		now := b.clock.now()
		account, err = b.repo.Accounts().Create(ctx, &UserAccount{
			UserID:          req.UserID,
			OrganisationID:  req.OrganisationID,
			EstablishmentID: req.EstablishmentID,
			Roles:           roleNames(roles),
			CreatedAt:       now,
			UpdatedAt:       now,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Update moves an account to another tenant pairing or replaces its roles
func (b *AccountBinder) Update(ctx context.Context, id uuid.UUID, req UpdateAccountRequest) (*UserAccount, error) {
	var account *UserAccount
	err := b.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		current, err := b.repo.Accounts().GetByID(ctx, id)
		if err != nil {
			return err
		}

		orgID, estID := current.OrganisationID, current.EstablishmentID
		if req.OrganisationID != nil {
			orgID = *req.OrganisationID
		}
		if req.EstablishmentID != nil {
			estID = *req.EstablishmentID
		}

		if orgID != current.OrganisationID || estID != current.EstablishmentID {
			if err := b.checkTenant(ctx, orgID, estID); err != nil {
				return err
			}

			existing, err := b.repo.Accounts().FindByTenant(ctx, current.UserID, orgID, estID)
			if err != nil {
				return err
			}
			if existing != nil && existing.ID != id {
				return alreadyExists("user %s already has an account in establishment %s", current.UserID, estID)
			}
		}

		if req.Roles != nil {
			roles, err := b.roles.ResolveNames(ctx, req.Roles)
			if err != nil {
				return err
			}
			current.Roles = roleNames(roles)
		}

		current.OrganisationID = orgID
		current.EstablishmentID = estID
		current.UpdatedAt = b.clock.now()
		account, err = b.repo.Accounts().Update(ctx, current)
		return err
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

// Get returns the account with id
func (b *AccountBinder) Get(ctx context.Context, id uuid.UUID) (*UserAccount, error) {
	return b.repo.Accounts().GetByID(ctx, id)
}

// Find returns the account of userID in the tenant pairing or nil
func (b *AccountBinder) Find(ctx context.Context, userID, organisationID, establishmentID uuid.UUID) (*UserAccount, error) {
	return b.repo.Accounts().FindByTenant(ctx, userID, organisationID, establishmentID)
}

// ListByUser returns every account of userID, oldest first
func (b *AccountBinder) ListByUser(ctx context.Context, userID uuid.UUID) ([]*UserAccount, error) {
	return b.repo.Accounts().ListByUser(ctx, userID)
}

// Search lists accounts matching filter
func (b *AccountBinder) Search(ctx context.Context, filter AccountFilter, page Pagination) (Page[*UserAccount], error) {
	page = page.normalize()
	records, total, err := b.repo.Accounts().Search(ctx, filter, page)
	if err != nil {
		return Page[*UserAccount]{}, err
	}
	return NewPage(records, page.Page, page.Limit, total), nil
}

// Delete removes the account and its sessions
func (b *AccountBinder) Delete(ctx context.Context, id uuid.UUID) error {
	return b.repo.RunInTx(ctx, nil, func(ctx context.Context, _ bun.Tx) error {
		if _, err := b.repo.Sessions().DeleteByIdentity(ctx, id); err != nil {
			return err
		}
		return b.repo.Accounts().Delete(ctx, id)
	})
}

func (b *AccountBinder) checkTenant(ctx context.Context, organisationID, establishmentID uuid.UUID) error {
	org, err := b.repo.Organisations().GetByID(ctx, organisationID)
	if err != nil {
		return err
	}

	est, err := b.repo.Establishments().GetByID(ctx, establishmentID)
	if err != nil {
		return err
	}

	if est.OrganisationID != org.ID {
		return badRequest(TextCodeTenantMismatch, "establishment %s does not belong to organisation %s", est.ID, org.ID)
	}
	return nil
}
