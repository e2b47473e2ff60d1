// service.go

// Package cart keeps each customer's shopping-cart rows.
package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/MGallo-Code/bikeville/internal/faults"
	"github.com/MGallo-Code/bikeville/internal/store"
)

// DefaultTimezone is the civil zone AddedAt is recorded in.
const DefaultTimezone = "Europe/Rome"

// Store is the persistence the cart needs. Satisfied by *store.PostgresStore.
type Store interface {
	ListCartItems(ctx context.Context, customerID int) ([]store.CartItem, error)
	AddCartItem(ctx context.Context, it *store.CartItem) (*store.CartItem, error)
	GetCartItem(ctx context.Context, customerID, productID int) (*store.CartItem, error)
	UpdateCartItemQty(ctx context.Context, id, qty int) error
	DeleteCartItem(ctx context.Context, id int) error
}

// Service applies cart operations for one customer at a time.
type Service struct {
	store    Store
	location *time.Location
	now      func() time.Time
}

// NewService returns a Service recording times in timezone (empty means DefaultTimezone).
func NewService(s Store, timezone string) (*Service, error) {
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("loading cart timezone %q: %w", timezone, err)
	}
	return &Service{store: s, location: loc, now: time.Now}, nil
}

// AddInput is the body of POST /api/orders. The owning customer comes from the token.
type AddInput struct {
	Name      string  `json:"name"`
	OrderQty  int     `json:"orderQty"`
	ProductID int     `json:"productId"`
	UnitPrice float64 `json:"unitPrice"`
}

func (in AddInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 50)),
		validation.Field(&in.OrderQty, validation.Required, validation.Min(1)),
		validation.Field(&in.ProductID, validation.Required, validation.Min(1)),
		validation.Field(&in.UnitPrice, validation.Min(0.0)),
	)
}

// List returns the customer's cart, oldest first. Never nil.
func (s *Service) List(ctx context.Context, customerID int) ([]store.CartItem, error) {
	items, err := s.store.ListCartItems(ctx, customerID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []store.CartItem{}
	}
	return items, nil
}

// Add inserts a new cart row. Adding a product already in the cart creates a
// second row; quantities are not merged.
func (s *Service) Add(ctx context.Context, customerID int, in AddInput) (*store.CartItem, error) {
	if err := in.Validate(); err != nil {
		return nil, faults.Wrap(err, faults.CodeBadRequest, err.Error())
	}
	return s.store.AddCartItem(ctx, &store.CartItem{
		Name:       in.Name,
		CustomerID: customerID,
		OrderQty:   in.OrderQty,
		ProductID:  in.ProductID,
		UnitPrice:  in.UnitPrice,
		AddedAt:    s.now().In(s.location),
	})
}

// Increase adds one to the quantity of the customer's row for productID.
func (s *Service) Increase(ctx context.Context, customerID, productID int) (*store.CartItem, error) {
	it, err := s.find(ctx, customerID, productID)
	if err != nil {
		return nil, err
	}
	if err := s.store.UpdateCartItemQty(ctx, it.ID, it.OrderQty+1); err != nil {
		return nil, notFound(err)
	}
	it.OrderQty++
	return it, nil
}

// Decrease subtracts one from the quantity. A row at quantity 1 is deleted
// instead and removed reports true.
func (s *Service) Decrease(ctx context.Context, customerID, productID int) (it *store.CartItem, removed bool, err error) {
	it, err = s.find(ctx, customerID, productID)
	if err != nil {
		return nil, false, err
	}
	if it.OrderQty <= 1 {
		if err := s.store.DeleteCartItem(ctx, it.ID); err != nil {
			return nil, false, notFound(err)
		}
		return it, true, nil
	}
	if err := s.store.UpdateCartItemQty(ctx, it.ID, it.OrderQty-1); err != nil {
		return nil, false, notFound(err)
	}
	it.OrderQty--
	return it, false, nil
}

// Remove deletes the customer's row for productID.
func (s *Service) Remove(ctx context.Context, customerID, productID int) error {
	it, err := s.find(ctx, customerID, productID)
	if err != nil {
		return err
	}
	return notFound(s.store.DeleteCartItem(ctx, it.ID))
}

func (s *Service) find(ctx context.Context, customerID, productID int) (*store.CartItem, error) {
	it, err := s.store.GetCartItem(ctx, customerID, productID)
	if err != nil {
		return nil, notFound(err)
	}
	return it, nil
}

// notFound maps a missing row to a 404 fault; other errors pass through.
// A row deleted by a concurrent request between read and write also lands here.
func notFound(err error) error {
	if errors.Is(err, store.ErrCartItemNotFound) {
		return faults.Wrap(err, faults.CodeNotFound, "cart item not found")
	}
	return err
}
