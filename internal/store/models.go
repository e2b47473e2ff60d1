// models.go -- Shared domain types for the store package.
// Used by both Postgres (catalog database) and Redis (credential documents).
package store

import (
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
)

// ErrCredentialNotFound is returned by credential lookups when no document matches.
// Callers use errors.Is to distinguish a true miss from a Redis failure.
var ErrCredentialNotFound = errors.New("credential not found")

// ErrDuplicateKey is returned by Insert and ReplaceByCustomerID when the email
// (or the customer) already owns a credential document.
var ErrDuplicateKey = errors.New("duplicate key")

// ErrCustomerNotFound is returned by customer queries when no row matches.
var ErrCustomerNotFound = errors.New("customer not found")

// ErrCartItemNotFound is returned by cart queries when the customer has no row for the product.
var ErrCartItemNotFound = errors.New("cart item not found")

// Roles stored on credentials and embedded in tokens.
const (
	RoleCustomer = "Customer"
	RoleAdmin    = "Admin"
)

// Credential is the login document kept in the credential store, one per email
// and one per customer. PasswordHash and PasswordSalt are base64 strings.
// HashAlgorithm is empty for documents written before it was recorded (hmac-sha256).
type Credential struct {
	ID            uuid.UUID `json:"id"`
	CustomerID    int       `json:"customerId"`
	EmailAddress  string    `json:"emailAddress"`
	PasswordHash  string    `json:"passwordHash"`
	PasswordSalt  string    `json:"passwordSalt"`
	Role          string    `json:"role"`
	HashAlgorithm string    `json:"hashAlgorithm,omitempty"`
}

// Customer represents a row in the customer table (the profile record).
// Nullable columns are pointers; nil means SQL NULL.
type Customer struct {
	ID           int       `json:"customerId"`
	Title        *string   `json:"title"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	CompanyName  *string   `json:"companyName"`
	Phone        *string   `json:"phone"`
	EmailAddress string    `json:"emailAddress"`
	RowGUID      uuid.UUID `json:"rowguid"`
	ModifiedDate time.Time `json:"modifiedDate"`
}

// ErrorLog represents a row in the error_log table.
// ErrorTime is civil time in the logger's configured zone.
type ErrorLog struct {
	ID             int
	ErrorTime      time.Time
	UserName       string
	ErrorNumber    int32
	ErrorSeverity  int
	ErrorState     *int
	ErrorProcedure *string
	ErrorLine      *int
	ErrorMessage   string
}

// CartItem represents a row in the user_cart table.
// AddedAt is civil time in the cart's configured zone; reads come back labelled UTC.
type CartItem struct {
	ID         int       `json:"id"`
	Name       string    `json:"name"`
	CustomerID int       `json:"customerId"`
	OrderQty   int       `json:"orderQty"`
	ProductID  int       `json:"productId"`
	UnitPrice  float64   `json:"unitPrice"`
	AddedAt    time.Time `json:"addedAt"`
}
