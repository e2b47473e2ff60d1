// identity.go -- Registration, login and credential changes.
//
// Sequences the profile row (Postgres) and the credential document (Redis).
// The two writes are not transactional: a failed credential insert deletes
// the profile row it just created, but a crash between the writes leaves an
// orphan profile with no credential.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofrs/uuid/v5"
	"github.com/nyaruka/phonenumbers"

	"github.com/MGallo-Code/bikeville/internal/faults"
	"github.com/MGallo-Code/bikeville/internal/store"
)

// CredentialStore defines the credential document operations the service needs.
// Satisfied by *store.RedisStore.
type CredentialStore interface {
	// Insert stores a new document; store.ErrDuplicateKey if the email or customer is taken.
	Insert(ctx context.Context, cred *store.Credential) error

	// ReplaceByCustomerID overwrites the customer's document.
	ReplaceByCustomerID(ctx context.Context, customerID int, cred *store.Credential) error

	// FindByEmail returns store.ErrCredentialNotFound on a miss.
	FindByEmail(ctx context.Context, email string) (*store.Credential, error)

	// FindByCustomerID returns store.ErrCredentialNotFound on a miss.
	FindByCustomerID(ctx context.Context, customerID int) (*store.Credential, error)

	ExistsByEmail(ctx context.Context, email string) (bool, error)

	IsAdmin(ctx context.Context, email string) (bool, error)
}

// ProfileStore defines the customer table operations the service needs.
// Satisfied by *store.PostgresStore.
type ProfileStore interface {
	CreateCustomer(ctx context.Context, c *store.Customer) (int, error)

	// GetCustomer returns store.ErrCustomerNotFound on a miss.
	GetCustomer(ctx context.Context, id int) (*store.Customer, error)

	ListCustomers(ctx context.Context) ([]store.Customer, error)

	// UpdateCustomer returns store.ErrCustomerNotFound if the row is gone.
	UpdateCustomer(ctx context.Context, c *store.Customer) error

	// DeleteCustomer returns store.ErrCustomerNotFound if the row is gone.
	DeleteCustomer(ctx context.Context, id int) error
}

// AdminBootstrap is the email/password pair that registers as Admin.
// Either field empty disables promotion.
type AdminBootstrap struct {
	Email    string
	Password string
}

func (a AdminBootstrap) matches(email, password string) bool {
	return a.Email != "" && a.Password != "" && email == a.Email && password == a.Password
}

// IdentityService implements registration, login and credential updates.
type IdentityService struct {
	Credentials CredentialStore
	Profiles    ProfileStore
	Hasher      *Hasher
	Tokens      *TokenIssuer
	Admin       AdminBootstrap
	// PhoneRegion is the ISO region assumed for phone numbers without a
	// country prefix, e.g. "IT".
	PhoneRegion string

	now func() time.Time
}

func (s *IdentityService) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// errInvalidCredentials is the only message a failed login ever returns.
const errInvalidCredentials = "invalid credentials"

// RegisterInput is the registration payload.
type RegisterInput struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	EmailAddress string `json:"emailAddress"`
	Password     string `json:"password"`
	CompanyName  string `json:"companyName"`
	Phone        string `json:"phone"`
	Gender       string `json:"gender"`
}

// titles maps the registration gender to the profile title.
var titles = map[string]string{
	"Male":   "Mr.",
	"Female": "Ms.",
	"Other":  "Other",
}

func (in RegisterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.EmailAddress, validation.Required, validation.Length(5, 254), is.Email),
		validation.Field(&in.Password, validation.Required, validation.By(passwordRule)),
		validation.Field(&in.CompanyName, validation.Length(0, 128)),
		validation.Field(&in.Gender, validation.In("Male", "Female", "Other")),
	)
}

// passwordRule enforces 8..128: runes for the minimum, bytes for the maximum.
func passwordRule(value any) error {
	pw, _ := value.(string)
	if utf8.RuneCountInString(pw) < 8 {
		return errors.New("must be at least 8 characters")
	}
	if len(pw) > 128 {
		return errors.New("must be at most 128 bytes")
	}
	return nil
}

// Register creates the profile row and then the credential document.
// Returns the new customer id.
func (s *IdentityService) Register(ctx context.Context, in RegisterInput) (int, error) {
	if err := in.Validate(); err != nil {
		return 0, faults.Wrap(err, faults.CodeBadRequest, err.Error())
	}
	phone, err := normalizePhone(in.Phone, s.PhoneRegion)
	if err != nil {
		return 0, err
	}

	// Fast path only; the atomic insert below is what enforces uniqueness.
	exists, err := s.Credentials.ExistsByEmail(ctx, in.EmailAddress)
	if err != nil {
		return 0, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return 0, faults.Conflict("Email address already exists in the system.")
	}

	role := store.RoleCustomer
	if s.Admin.matches(in.EmailAddress, in.Password) {
		role = store.RoleAdmin
	}

	hash, salt, err := s.Hasher.HashNew(in.Password)
	if err != nil {
		return 0, err
	}

	rowguid, err := uuid.NewV4()
	if err != nil {
		return 0, fmt.Errorf("generating rowguid: %w", err)
	}
	profile := &store.Customer{
		FirstName:    capitalizeFirst(in.FirstName),
		LastName:     capitalizeFirst(in.LastName),
		CompanyName:  optional(capitalizeFirst(in.CompanyName)),
		Phone:        phone,
		EmailAddress: in.EmailAddress,
		RowGUID:      rowguid,
		ModifiedDate: s.clock().UTC(),
	}
	if t, ok := titles[in.Gender]; ok {
		profile.Title = &t
	}

	customerID, err := s.Profiles.CreateCustomer(ctx, profile)
	if err != nil {
		return 0, err
	}

	credID, err := uuid.NewV7()
	if err != nil {
		s.compensate(ctx, customerID)
		return 0, fmt.Errorf("generating credential id: %w", err)
	}
	cred := &store.Credential{
		ID:            credID,
		CustomerID:    customerID,
		EmailAddress:  in.EmailAddress,
		PasswordHash:  hash,
		PasswordSalt:  salt,
		Role:          role,
		HashAlgorithm: s.Hasher.Algorithm,
	}
	if err := s.Credentials.Insert(ctx, cred); err != nil {
		s.compensate(ctx, customerID)
		if errors.Is(err, store.ErrDuplicateKey) {
			return 0, faults.Wrap(err, faults.CodeConflict, "Email address already exists in the system.")
		}
		return 0, err
	}

	slog.Info("customer registered", "customer_id", customerID, "role", role)
	return customerID, nil
}

// restoreEmail moves a credential back after the profile write failed.
// A failed restore leaves login and profile emails apart until the next update.
func (s *IdentityService) restoreEmail(ctx context.Context, previous *store.Credential) {
	if err := s.Credentials.ReplaceByCustomerID(context.WithoutCancel(ctx), previous.CustomerID, previous); err != nil {
		slog.Error("credential email not restored after failed profile update",
			"customer_id", previous.CustomerID, "email", previous.EmailAddress, "error", err)
	}
}

// compensate removes a profile row whose credential could not be written.
func (s *IdentityService) compensate(ctx context.Context, customerID int) {
	if err := s.Profiles.DeleteCustomer(context.WithoutCancel(ctx), customerID); err != nil {
		slog.Error("orphan profile left after failed registration",
			"customer_id", customerID, "error", err)
	}
}

// Login verifies email and password and issues a token.
// Every rejection is the same 401 so callers cannot tell which part was wrong.
func (s *IdentityService) Login(ctx context.Context, email, password string) (string, Identity, error) {
	if email == "" || password == "" {
		return "", Identity{}, faults.Unauthorized(errInvalidCredentials)
	}

	cred, err := s.Credentials.FindByEmail(ctx, email)
	if errors.Is(err, store.ErrCredentialNotFound) {
		verifyDummy(password, s.Hasher.Algorithm)
		return "", Identity{}, faults.Unauthorized(errInvalidCredentials)
	}
	if err != nil {
		return "", Identity{}, err
	}

	if !VerifyPassword(password, cred.PasswordHash, cred.PasswordSalt, cred.HashAlgorithm) {
		return "", Identity{}, faults.Unauthorized(errInvalidCredentials)
	}

	id := Identity{Email: cred.EmailAddress, ID: cred.CustomerID, Role: cred.Role}
	profile, err := s.Profiles.GetCustomer(ctx, cred.CustomerID)
	switch {
	case err == nil:
		id.FirstName, id.LastName = profile.FirstName, profile.LastName
	case errors.Is(err, store.ErrCustomerNotFound):
		slog.Warn("credential without profile", "customer_id", cred.CustomerID)
	default:
		return "", Identity{}, err
	}

	token, _, err := s.Tokens.Issue(id)
	if err != nil {
		return "", Identity{}, err
	}
	return token, id, nil
}

// IsAdmin reports whether email belongs to an Admin credential.
func (s *IdentityService) IsAdmin(ctx context.Context, email string) (bool, error) {
	return s.Credentials.IsAdmin(ctx, email)
}

// UpdateEmail moves the customer's credential to a new email.
// Conflict if another customer owns it; no-op if it is unchanged.
func (s *IdentityService) UpdateEmail(ctx context.Context, customerID int, email string) error {
	_, err := s.moveEmail(ctx, customerID, email)
	return err
}

// moveEmail replaces the credential's email and returns the credential as it
// was before the move, or nil when the email was already current.
func (s *IdentityService) moveEmail(ctx context.Context, customerID int, email string) (*store.Credential, error) {
	if err := validation.Validate(email, validation.Required, validation.Length(5, 254), is.Email); err != nil {
		return nil, faults.Wrap(err, faults.CodeBadRequest, "emailAddress: "+err.Error())
	}

	cred, err := s.Credentials.FindByCustomerID(ctx, customerID)
	if errors.Is(err, store.ErrCredentialNotFound) {
		return nil, faults.NotFound("credential not found")
	}
	if err != nil {
		return nil, err
	}
	if cred.EmailAddress == email {
		return nil, nil
	}

	exists, err := s.Credentials.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, faults.Conflict("Email address already exists in the system.")
	}

	updated := *cred
	updated.EmailAddress = email
	err = s.Credentials.ReplaceByCustomerID(ctx, customerID, &updated)
	switch {
	case errors.Is(err, store.ErrDuplicateKey):
		return nil, faults.Wrap(err, faults.CodeConflict, "Email address already exists in the system.")
	case errors.Is(err, store.ErrCredentialNotFound):
		return nil, faults.Wrap(err, faults.CodeNotFound, "credential not found")
	case err != nil:
		return nil, err
	}
	return cred, nil
}

// --- Profiles ---

// UpdateProfileInput is the editable part of a customer profile.
// An empty EmailAddress leaves the login email unchanged.
type UpdateProfileInput struct {
	Title        string `json:"title"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	CompanyName  string `json:"companyName"`
	EmailAddress string `json:"emailAddress"`
	Phone        string `json:"phone"`
}

func (in UpdateProfileInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Length(0, 8)),
		validation.Field(&in.FirstName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.LastName, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.CompanyName, validation.Length(0, 128)),
		validation.Field(&in.EmailAddress, validation.Length(5, 254), is.Email),
	)
}

// GetProfile returns one customer profile.
func (s *IdentityService) GetProfile(ctx context.Context, customerID int) (*store.Customer, error) {
	c, err := s.Profiles.GetCustomer(ctx, customerID)
	if errors.Is(err, store.ErrCustomerNotFound) {
		return nil, faults.NotFound("customer not found")
	}
	return c, err
}

// ListProfiles returns every customer profile.
func (s *IdentityService) ListProfiles(ctx context.Context) ([]store.Customer, error) {
	list, err := s.Profiles.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []store.Customer{}
	}
	return list, nil
}

// UpdateProfile overwrites the profile and, when the email changes, moves the
// credential first so a conflicting email leaves the profile untouched.
func (s *IdentityService) UpdateProfile(ctx context.Context, customerID int, in UpdateProfileInput) (*store.Customer, error) {
	if err := in.Validate(); err != nil {
		return nil, faults.Wrap(err, faults.CodeBadRequest, err.Error())
	}
	phone, err := normalizePhone(in.Phone, s.PhoneRegion)
	if err != nil {
		return nil, err
	}

	c, err := s.GetProfile(ctx, customerID)
	if err != nil {
		return nil, err
	}

	var previous *store.Credential
	if in.EmailAddress != "" {
		if previous, err = s.moveEmail(ctx, customerID, in.EmailAddress); err != nil {
			return nil, err
		}
		c.EmailAddress = in.EmailAddress
	}

	c.Title = optional(in.Title)
	c.FirstName = capitalizeFirst(in.FirstName)
	c.LastName = capitalizeFirst(in.LastName)
	c.CompanyName = optional(capitalizeFirst(in.CompanyName))
	c.Phone = phone
	c.ModifiedDate = s.clock().UTC()

	if err := s.Profiles.UpdateCustomer(ctx, c); err != nil {
		if previous != nil {
			s.restoreEmail(ctx, previous)
		}
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, faults.NotFound("customer not found")
		}
		return nil, err
	}
	return c, nil
}

// DeleteProfile removes the customer row and its cart. The credential is kept,
// so the email still logs in and stays taken until an operator clears it.
func (s *IdentityService) DeleteProfile(ctx context.Context, customerID int) error {
	err := s.Profiles.DeleteCustomer(ctx, customerID)
	if errors.Is(err, store.ErrCustomerNotFound) {
		return faults.NotFound("customer not found")
	}
	return err
}

// --- Helpers ---

// capitalizeFirst upper-cases the first letter and lower-cases the rest.
func capitalizeFirst(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// normalizePhone parses raw in region and returns it in international format.
// Empty input is stored as NULL.
func normalizePhone(raw, region string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if region == "" {
		region = "IT"
	}
	num, err := phonenumbers.Parse(raw, region)
	if err != nil || !phonenumbers.IsValidNumber(num) {
		return nil, faults.Wrap(
			fmt.Errorf("phone %q: %w", raw, faults.ErrInvalidArgument),
			faults.CodeBadRequest, "phone: must be a valid phone number")
	}
	formatted := phonenumbers.Format(num, phonenumbers.INTERNATIONAL)
	return &formatted, nil
}
