package address

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Input is the payload for creating or updating an address book entry.
type Input struct {
	FullName   string `validate:"required,max=120"`
	Line1      string `validate:"required,max=200"`
	Line2      string `validate:"max=200"`
	City       string `validate:"required,max=100"`
	State      string `validate:"required,max=10"`
	PostalCode string `validate:"required,max=20"`
	Country    string `validate:"required,iso3166_1_alpha2"`
	Phone      string `validate:"required,e164"`
	Email      string `validate:"required,email"`
	IsDefault  bool
}

// Service manages the saved-address book. At most one entry per user
// is the default; every mutation that touches the flag swaps it
// atomically.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, in Input) (*models.AddressBookEntry, error)
	Update(ctx context.Context, userID, id uuid.UUID, in Input) (*models.AddressBookEntry, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	List(ctx context.Context, userID uuid.UUID) ([]models.AddressBookEntry, error)
	SetDefault(ctx context.Context, userID, id uuid.UUID) (*models.AddressBookEntry, error)
}

type service struct {
	repo     Repository
	tx       txRunner
	validate *validator.Validate
}

// NewService builds the address service.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:     repo,
		tx:       tx,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}, nil
}

// Create adds an entry. The first entry in an empty book always
// becomes the default regardless of the requested flag.
func (s *service) Create(ctx context.Context, userID uuid.UUID, in Input) (*models.AddressBookEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	count, err := s.repo.CountByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count addresses")
	}

	entry := entryFromInput(userID, in)
	entry.IsDefault = in.IsDefault || count == 0

	if !entry.IsDefault {
		if err := s.repo.Create(ctx, entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create address")
		}
		return entry, nil
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		return txRepo.Create(ctx, entry)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "create default address")
	}
	return entry, nil
}

// Update rewrites an entry in place. Clearing the default flag on the
// current default is rejected: the invariant is exactly one default
// while the book is non-empty.
func (s *service) Update(ctx context.Context, userID, id uuid.UUID, in Input) (*models.AddressBookEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	if err := s.validateInput(in); err != nil {
		return nil, err
	}

	entry, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if entry.IsDefault && !in.IsDefault {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot unset the default address; set another entry as default instead")
	}

	applyInput(entry, in)

	if !in.IsDefault || entry.IsDefault {
		entry.IsDefault = entry.IsDefault || in.IsDefault
		if err := s.repo.Save(ctx, entry); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update address")
		}
		return entry, nil
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		entry.IsDefault = true
		return txRepo.Save(ctx, entry)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "update default address")
	}
	return entry, nil
}

// Delete removes an entry. Deleting the default promotes the most
// recently created survivor so the invariant holds.
func (s *service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}

	entry, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return err
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Delete(ctx, id, userID); err != nil {
			return err
		}
		if !entry.IsDefault {
			return nil
		}
		survivors, err := txRepo.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(survivors) == 0 {
			return nil
		}
		next := survivors[0]
		next.IsDefault = true
		return txRepo.Save(ctx, &next)
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "delete address")
	}
	return nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.AddressBookEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}
	entries, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return entries, nil
}

// SetDefault promotes one entry and demotes the rest in a single
// transaction.
func (s *service) SetDefault(ctx context.Context, userID, id uuid.UUID) (*models.AddressBookEntry, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "authenticated user required")
	}

	entry, err := s.loadOwned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if entry.IsDefault {
		return entry, nil
	}

	txErr := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.ClearDefault(ctx, userID); err != nil {
			return err
		}
		entry.IsDefault = true
		return txRepo.Save(ctx, entry)
	})
	if txErr != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, txErr, "set default address")
	}
	return entry, nil
}

func (s *service) loadOwned(ctx context.Context, userID, id uuid.UUID) (*models.AddressBookEntry, error) {
	entry, err := s.repo.GetByIDAndUser(ctx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load address")
	}
	return entry, nil
}

// validateInput aggregates every field failure into one validation
// error so the client can fix the whole form in one round trip.
func (s *service) validateInput(in Input) error {
	var agg error
	details := map[string]string{}

	if err := s.validate.Struct(in); err != nil {
		var invalid validator.ValidationErrors
		if !errors.As(err, &invalid) {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address")
		}
		for _, fieldErr := range invalid {
			field := strings.ToLower(fieldErr.Field())
			details[field] = fieldErr.Tag()
			agg = multierr.Append(agg, fmt.Errorf("%s failed %s", field, fieldErr.Tag()))
		}
	}

	if _, flagged := details["phone"]; !flagged {
		if err := phoneMatchesCountry(in.Phone, in.Country); err != nil {
			details["phone"] = "country_code"
			agg = multierr.Append(agg, err)
		}
	}

	if agg == nil {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, agg, "invalid address").WithDetails(details)
}

// countryDialCodes covers the countries we ship to.
var countryDialCodes = map[string]string{
	"US": "+1",
	"CA": "+1",
	"MX": "+52",
	"GB": "+44",
	"FR": "+33",
	"DE": "+49",
	"ES": "+34",
	"IT": "+39",
	"CN": "+86",
	"JP": "+81",
	"AU": "+61",
}

// phoneMatchesCountry rejects a phone whose calling code does not
// belong to the declared country. Countries outside the shipping
// table fall back to the plain E.164 check.
func phoneMatchesCountry(phone, country string) error {
	prefix, known := countryDialCodes[strings.ToUpper(strings.TrimSpace(country))]
	if !known {
		return nil
	}
	if !strings.HasPrefix(strings.TrimSpace(phone), prefix) {
		return fmt.Errorf("phone does not match country %s calling code %s", country, prefix)
	}
	return nil
}

func entryFromInput(userID uuid.UUID, in Input) *models.AddressBookEntry {
	return &models.AddressBookEntry{
		UserID:     userID,
		FullName:   strings.TrimSpace(in.FullName),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		State:      strings.ToUpper(strings.TrimSpace(in.State)),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		Phone:      strings.TrimSpace(in.Phone),
		Email:      strings.TrimSpace(in.Email),
	}
}

func applyInput(entry *models.AddressBookEntry, in Input) {
	entry.FullName = strings.TrimSpace(in.FullName)
	entry.Line1 = strings.TrimSpace(in.Line1)
	entry.Line2 = strings.TrimSpace(in.Line2)
	entry.City = strings.TrimSpace(in.City)
	entry.State = strings.ToUpper(strings.TrimSpace(in.State))
	entry.PostalCode = strings.TrimSpace(in.PostalCode)
	entry.Country = strings.ToUpper(strings.TrimSpace(in.Country))
	entry.Phone = strings.TrimSpace(in.Phone)
	entry.Email = strings.TrimSpace(in.Email)
}
