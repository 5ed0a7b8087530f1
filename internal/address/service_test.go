package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/theluxmining/commerce-backend/pkg/db/models"
	pkgerrors "github.com/theluxmining/commerce-backend/pkg/errors"
)

func validInput() Input {
	return Input{
		FullName:   "Ada Lovelace",
		Line1:      "12 Analytical Way",
		City:       "Reno",
		State:      "NV",
		PostalCode: "89501",
		Country:    "US",
		Phone:      "+17755550100",
		Email:      "ada@example.com",
	}
}

func TestCreateFirstEntryBecomesDefault(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	entry, err := svc.Create(context.Background(), userID, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !entry.IsDefault {
		t.Fatal("first address must become the default")
	}
}

func TestCreateDefaultSwapsPreviousDefault(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	first, err := svc.Create(context.Background(), userID, validInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	in := validInput()
	in.Line1 = "99 New Road"
	in.IsDefault = true
	second, err := svc.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !second.IsDefault {
		t.Fatal("new entry must be default")
	}
	if repo.entries[first.ID].IsDefault {
		t.Fatal("previous default must be demoted")
	}
	assertSingleDefault(t, repo, userID)
}

func TestSetDefaultLeavesExactlyOne(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	first, _ := svc.Create(context.Background(), userID, validInput())
	in := validInput()
	in.Line1 = "99 New Road"
	second, err := svc.Create(context.Background(), userID, in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.SetDefault(context.Background(), userID, second.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.entries[first.ID].IsDefault || !repo.entries[second.ID].IsDefault {
		t.Fatal("default flag not swapped")
	}
	assertSingleDefault(t, repo, userID)
}

func TestUpdateCannotUnsetDefault(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	entry, _ := svc.Create(context.Background(), userID, validInput())

	in := validInput()
	in.IsDefault = false
	_, err := svc.Update(context.Background(), userID, entry.ID, in)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDeleteDefaultPromotesSurvivor(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	first, _ := svc.Create(context.Background(), userID, validInput())
	in := validInput()
	in.Line1 = "99 New Road"
	second, _ := svc.Create(context.Background(), userID, in)

	// first is still default (second was created without the flag).
	if err := svc.Delete(context.Background(), userID, first.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !repo.entries[second.ID].IsDefault {
		t.Fatal("survivor must be promoted to default")
	}
	assertSingleDefault(t, repo, userID)
}

func TestValidationAggregatesFieldErrors(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubAddressRepo())

	in := Input{
		Phone:   "not-a-phone",
		Email:   "not-an-email",
		Country: "USA", // must be alpha-2
	}
	_, err := svc.Create(context.Background(), uuid.New(), in)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"fullname", "line1", "city", "state", "postalcode", "country", "phone", "email"} {
		if _, present := details[field]; !present {
			t.Fatalf("expected %s in details: %v", field, details)
		}
	}
}

func TestValidationRejectsPhoneFromWrongCountry(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubAddressRepo())

	in := validInput()
	in.Phone = "+447911123456" // UK number on a US address
	_, err := svc.Create(context.Background(), uuid.New(), in)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["phone"] != "country_code" {
		t.Fatalf("expected phone country_code failure: %v", details)
	}
}

func TestValidationRequiresPhoneAndEmail(t *testing.T) {
	t.Parallel()

	svc := newTestService(t, newStubAddressRepo())

	in := validInput()
	in.Phone = ""
	in.Email = ""
	in.State = ""
	_, err := svc.Create(context.Background(), uuid.New(), in)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	typed := pkgerrors.As(err)
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	for _, field := range []string{"phone", "email", "state"} {
		if details[field] != "required" {
			t.Fatalf("expected %s required failure: %v", field, details)
		}
	}
}

func TestOperationsHideForeignEntries(t *testing.T) {
	t.Parallel()

	owner := uuid.New()
	stranger := uuid.New()
	repo := newStubAddressRepo()
	svc := newTestService(t, repo)

	entry, _ := svc.Create(context.Background(), owner, validInput())

	if _, err := svc.SetDefault(context.Background(), stranger, entry.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.Delete(context.Background(), stranger, entry.ID); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func assertSingleDefault(t *testing.T, repo *stubAddressRepo, userID uuid.UUID) {
	t.Helper()
	defaults := 0
	for _, entry := range repo.entries {
		if entry.UserID == userID && entry.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, stubTxRunner{})
	if err != nil {
		t.Fatalf("building service: %v", err)
	}
	return svc
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubAddressRepo struct {
	entries map[uuid.UUID]*models.AddressBookEntry
	order   []uuid.UUID
}

func newStubAddressRepo() *stubAddressRepo {
	return &stubAddressRepo{entries: map[uuid.UUID]*models.AddressBookEntry{}}
}

func (s *stubAddressRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubAddressRepo) Create(ctx context.Context, entry *models.AddressBookEntry) error {
	entry.ID = uuid.New()
	s.entries[entry.ID] = entry
	s.order = append(s.order, entry.ID)
	return nil
}

func (s *stubAddressRepo) GetByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*models.AddressBookEntry, error) {
	entry, ok := s.entries[id]
	if !ok || entry.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	return entry, nil
}

func (s *stubAddressRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.AddressBookEntry, error) {
	var out []models.AddressBookEntry
	// newest first, like the SQL implementation
	for i := len(s.order) - 1; i >= 0; i-- {
		entry, ok := s.entries[s.order[i]]
		if ok && entry.UserID == userID {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *stubAddressRepo) Save(ctx context.Context, entry *models.AddressBookEntry) error {
	s.entries[entry.ID] = entry
	return nil
}

func (s *stubAddressRepo) Delete(ctx context.Context, id, userID uuid.UUID) error {
	entry, ok := s.entries[id]
	if !ok || entry.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	delete(s.entries, id)
	return nil
}

func (s *stubAddressRepo) ClearDefault(ctx context.Context, userID uuid.UUID) error {
	for _, entry := range s.entries {
		if entry.UserID == userID {
			entry.IsDefault = false
		}
	}
	return nil
}

func (s *stubAddressRepo) CountByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, entry := range s.entries {
		if entry.UserID == userID {
			count++
		}
	}
	return count, nil
}
