// stores.go
//
// Shared mock implementations of the store interfaces consumed by auth, cart
// and errlog. Imported by test files across packages to avoid duplicate mock
// definitions.
package testutil

import (
	"context"
	"slices"
	"sync"

	"github.com/MGallo-Code/bikeville/internal/store"
)

// MockCredentials implements auth.CredentialStore for tests.
// Always stateful...documents are kept by email with a customer index, like the
// real store. Insert and ReplaceByCustomerID are atomic under mu.
// Use *Err fields to inject errors for specific operations.
type MockCredentials struct {
	// Error injection...zero value means no error
	InsertErr  error
	ReplaceErr error
	FindErr    error
	ExistsErr  error

	Docs       map[string]*store.Credential // keyed by email
	ByCustomer map[int]string               // customer id -> email

	// ExistsOverride forces ExistsByEmail to report false, so tests can
	// reach the atomic insert with a duplicate email.
	ExistsOverride bool

	mu sync.Mutex
}

// NewMockCredentials returns a MockCredentials seeded with creds.
func NewMockCredentials(creds ...*store.Credential) *MockCredentials {
	m := &MockCredentials{
		Docs:       make(map[string]*store.Credential),
		ByCustomer: make(map[int]string),
	}
	for _, c := range creds {
		cp := *c
		m.Docs[c.EmailAddress] = &cp
		m.ByCustomer[c.CustomerID] = c.EmailAddress
	}
	return m
}

func (m *MockCredentials) Insert(_ context.Context, cred *store.Credential) error {
	if m.InsertErr != nil {
		return m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Docs[cred.EmailAddress]; ok {
		return store.ErrDuplicateKey
	}
	if _, ok := m.ByCustomer[cred.CustomerID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *cred
	m.Docs[cred.EmailAddress] = &cp
	m.ByCustomer[cred.CustomerID] = cred.EmailAddress
	return nil
}

func (m *MockCredentials) ReplaceByCustomerID(_ context.Context, customerID int, cred *store.Credential) error {
	if m.ReplaceErr != nil {
		return m.ReplaceErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	old, ok := m.ByCustomer[customerID]
	if !ok {
		return store.ErrCredentialNotFound
	}
	if old != cred.EmailAddress {
		if _, taken := m.Docs[cred.EmailAddress]; taken {
			return store.ErrDuplicateKey
		}
		delete(m.Docs, old)
	}
	cp := *cred
	cp.CustomerID = customerID
	m.Docs[cp.EmailAddress] = &cp
	m.ByCustomer[customerID] = cp.EmailAddress
	return nil
}

func (m *MockCredentials) FindByEmail(_ context.Context, email string) (*store.Credential, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Docs[email]
	if !ok {
		return nil, store.ErrCredentialNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockCredentials) FindByCustomerID(ctx context.Context, customerID int) (*store.Credential, error) {
	if m.FindErr != nil {
		return nil, m.FindErr
	}
	m.mu.Lock()
	email, ok := m.ByCustomer[customerID]
	m.mu.Unlock()
	if !ok {
		return nil, store.ErrCredentialNotFound
	}
	return m.FindByEmail(ctx, email)
}

func (m *MockCredentials) ExistsByEmail(_ context.Context, email string) (bool, error) {
	if m.ExistsErr != nil {
		return false, m.ExistsErr
	}
	if m.ExistsOverride {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.Docs[email]
	return ok, nil
}

func (m *MockCredentials) IsAdmin(_ context.Context, email string) (bool, error) {
	if m.FindErr != nil {
		return false, m.FindErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Docs[email]
	return ok && c.Role == store.RoleAdmin, nil
}

// Count returns the number of stored documents.
func (m *MockCredentials) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Docs)
}

// MockProfiles implements auth.ProfileStore for tests.
// Ids are assigned sequentially from 1.
type MockProfiles struct {
	CreateErr error
	GetErr    error
	ListErr   error
	UpdateErr error
	DeleteErr error

	Customers map[int]*store.Customer
	Deleted   []int // ids passed to DeleteCustomer, in order

	nextID int
	mu     sync.Mutex
}

// NewMockProfiles returns a MockProfiles seeded with customers.
func NewMockProfiles(customers ...*store.Customer) *MockProfiles {
	m := &MockProfiles{Customers: make(map[int]*store.Customer)}
	for _, c := range customers {
		cp := *c
		m.Customers[c.ID] = &cp
		m.nextID = max(m.nextID, c.ID)
	}
	return m
}

func (m *MockProfiles) CreateCustomer(_ context.Context, c *store.Customer) (int, error) {
	if m.CreateErr != nil {
		return 0, m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Customers == nil {
		m.Customers = make(map[int]*store.Customer)
	}
	m.nextID++
	cp := *c
	cp.ID = m.nextID
	m.Customers[cp.ID] = &cp
	return cp.ID, nil
}

func (m *MockProfiles) GetCustomer(_ context.Context, id int) (*store.Customer, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Customers[id]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockProfiles) ListCustomers(_ context.Context) ([]store.Customer, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.Customer, 0, len(m.Customers))
	for _, c := range m.Customers {
		out = append(out, *c)
	}
	slices.SortFunc(out, func(a, b store.Customer) int { return a.ID - b.ID })
	return out, nil
}

func (m *MockProfiles) UpdateCustomer(_ context.Context, c *store.Customer) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Customers[c.ID]; !ok {
		return store.ErrCustomerNotFound
	}
	cp := *c
	m.Customers[c.ID] = &cp
	return nil
}

func (m *MockProfiles) DeleteCustomer(_ context.Context, id int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Deleted = append(m.Deleted, id)
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	if _, ok := m.Customers[id]; !ok {
		return store.ErrCustomerNotFound
	}
	delete(m.Customers, id)
	return nil
}

// Count returns the number of stored profiles.
func (m *MockProfiles) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Customers)
}

// MockErrorLog implements errlog.Repository, recording every row written.
type MockErrorLog struct {
	InsertErr error

	Records []store.ErrorLog

	mu sync.Mutex
}

func (m *MockErrorLog) InsertErrorLog(_ context.Context, e *store.ErrorLog) (int, error) {
	if m.InsertErr != nil {
		return 0, m.InsertErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, *e)
	return len(m.Records), nil
}

// Len returns the number of recorded rows.
func (m *MockErrorLog) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

// Last returns the most recent row, or nil when none was written.
func (m *MockErrorLog) Last() *store.ErrorLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return nil
	}
	e := m.Records[len(m.Records)-1]
	return &e
}

// MockCart implements cart.Store for tests.
type MockCart struct {
	ListErr   error
	AddErr    error
	GetErr    error
	UpdateErr error
	DeleteErr error

	Items map[int]*store.CartItem // keyed by row id

	nextID int
	mu     sync.Mutex
}

// NewMockCart returns a MockCart seeded with items.
func NewMockCart(items ...*store.CartItem) *MockCart {
	m := &MockCart{Items: make(map[int]*store.CartItem)}
	for _, it := range items {
		cp := *it
		m.Items[it.ID] = &cp
		m.nextID = max(m.nextID, it.ID)
	}
	return m
}

func (m *MockCart) ListCartItems(_ context.Context, customerID int) ([]store.CartItem, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []store.CartItem{}
	for _, it := range m.Items {
		if it.CustomerID == customerID {
			out = append(out, *it)
		}
	}
	slices.SortFunc(out, func(a, b store.CartItem) int { return a.ID - b.ID })
	return out, nil
}

func (m *MockCart) AddCartItem(_ context.Context, it *store.CartItem) (*store.CartItem, error) {
	if m.AddErr != nil {
		return nil, m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Items == nil {
		m.Items = make(map[int]*store.CartItem)
	}
	m.nextID++
	cp := *it
	cp.ID = m.nextID
	m.Items[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (m *MockCart) GetCartItem(_ context.Context, customerID, productID int) (*store.CartItem, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *store.CartItem
	for _, it := range m.Items {
		if it.CustomerID == customerID && it.ProductID == productID && (found == nil || it.ID < found.ID) {
			found = it
		}
	}
	if found == nil {
		return nil, store.ErrCartItemNotFound
	}
	cp := *found
	return &cp, nil
}

func (m *MockCart) UpdateCartItemQty(_ context.Context, id, qty int) error {
	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.Items[id]
	if !ok {
		return store.ErrCartItemNotFound
	}
	it.OrderQty = qty
	return nil
}

func (m *MockCart) DeleteCartItem(_ context.Context, id int) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.Items[id]; !ok {
		return store.ErrCartItemNotFound
	}
	delete(m.Items, id)
	return nil
}
