// Package store handles all database and credential-store interactions.
//
// postgres.go -- pgxpool connection setup and queries against the catalog database.
// Creates a connection pool at startup, shared across all handlers.
// All queries use parameterized statements (no string concatenation).
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the store used to reach the catalog database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool, pings it, and returns a ready-to-use store.
// Call once at startup from main.go; the returned store is safe for concurrent use.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool}, nil
}

// Close shuts down the connection pool and releases all resources.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// CheckHealth pings the pool.
func (s *PostgresStore) CheckHealth(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Customers ---

const customerColumns = `customer_id, title, first_name, last_name, company_name, phone,
	email_address, rowguid, modified_date`

func scanCustomer(row pgx.Row) (*Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Title, &c.FirstName, &c.LastName, &c.CompanyName, &c.Phone,
		&c.EmailAddress, &c.RowGUID, &c.ModifiedDate)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCustomer inserts a profile row and returns the generated customer id.
// The caller generates RowGUID and sets ModifiedDate.
func (s *PostgresStore) CreateCustomer(ctx context.Context, c *Customer) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO customer (title, first_name, last_name, company_name, phone, email_address, rowguid, modified_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING customer_id`,
		c.Title, c.FirstName, c.LastName, c.CompanyName, c.Phone, c.EmailAddress, c.RowGUID, c.ModifiedDate,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting customer: %w", err)
	}
	return id, nil
}

// GetCustomer fetches one profile row. Returns ErrCustomerNotFound if absent.
func (s *PostgresStore) GetCustomer(ctx context.Context, id int) (*Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx,
		"SELECT "+customerColumns+" FROM customer WHERE customer_id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCustomerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching customer %d: %w", id, err)
	}
	return c, nil
}

// ListCustomers returns every profile row ordered by id.
func (s *PostgresStore) ListCustomers(ctx context.Context) ([]Customer, error) {
	rows, err := s.pool.Query(ctx, "SELECT "+customerColumns+" FROM customer ORDER BY customer_id")
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// UpdateCustomer overwrites the editable profile columns of an existing row.
// Returns ErrCustomerNotFound if no row has c.ID.
func (s *PostgresStore) UpdateCustomer(ctx context.Context, c *Customer) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE customer
		 SET title = $2, first_name = $3, last_name = $4, company_name = $5, phone = $6,
		     email_address = $7, modified_date = $8
		 WHERE customer_id = $1`,
		c.ID, c.Title, c.FirstName, c.LastName, c.CompanyName, c.Phone, c.EmailAddress, c.ModifiedDate)
	if err != nil {
		return fmt.Errorf("updating customer %d: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// DeleteCustomer removes a profile row and, by cascade, its cart.
// Returns ErrCustomerNotFound if no row has id.
func (s *PostgresStore) DeleteCustomer(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM customer WHERE customer_id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

// --- Error log ---

// InsertErrorLog appends one error record and returns its id.
func (s *PostgresStore) InsertErrorLog(ctx context.Context, e *ErrorLog) (int, error) {
	var id int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO error_log (error_time, user_name, error_number, error_severity, error_state,
		                        error_procedure, error_line, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING error_log_id`,
		e.ErrorTime, e.UserName, e.ErrorNumber, e.ErrorSeverity, e.ErrorState,
		e.ErrorProcedure, e.ErrorLine, e.ErrorMessage,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting error log: %w", err)
	}
	return id, nil
}

// --- Cart ---

const cartColumns = "id, name, customer_id, order_qty, product_id, unit_price, added_at"

func scanCartItem(row pgx.Row) (*CartItem, error) {
	var it CartItem
	if err := row.Scan(&it.ID, &it.Name, &it.CustomerID, &it.OrderQty, &it.ProductID, &it.UnitPrice, &it.AddedAt); err != nil {
		return nil, err
	}
	return &it, nil
}

// ListCartItems returns the cart rows of one customer, oldest first.
func (s *PostgresStore) ListCartItems(ctx context.Context, customerID int) ([]CartItem, error) {
	rows, err := s.pool.Query(ctx,
		"SELECT "+cartColumns+" FROM user_cart WHERE customer_id = $1 ORDER BY added_at, id", customerID)
	if err != nil {
		return nil, fmt.Errorf("listing cart: %w", err)
	}
	defer rows.Close()

	items := []CartItem{}
	for rows.Next() {
		it, err := scanCartItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning cart item: %w", err)
		}
		items = append(items, *it)
	}
	return items, rows.Err()
}

// AddCartItem inserts a cart row and returns it with its generated id.
func (s *PostgresStore) AddCartItem(ctx context.Context, it *CartItem) (*CartItem, error) {
	out, err := scanCartItem(s.pool.QueryRow(ctx,
		`INSERT INTO user_cart (name, customer_id, order_qty, product_id, unit_price, added_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+cartColumns,
		it.Name, it.CustomerID, it.OrderQty, it.ProductID, it.UnitPrice, it.AddedAt))
	if err != nil {
		return nil, fmt.Errorf("inserting cart item: %w", err)
	}
	return out, nil
}

// GetCartItem fetches the customer's row for a product. Returns ErrCartItemNotFound if absent.
func (s *PostgresStore) GetCartItem(ctx context.Context, customerID, productID int) (*CartItem, error) {
	it, err := scanCartItem(s.pool.QueryRow(ctx,
		"SELECT "+cartColumns+" FROM user_cart WHERE customer_id = $1 AND product_id = $2 ORDER BY id LIMIT 1",
		customerID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching cart item: %w", err)
	}
	return it, nil
}

// UpdateCartItemQty sets order_qty on one cart row.
func (s *PostgresStore) UpdateCartItemQty(ctx context.Context, id, qty int) error {
	tag, err := s.pool.Exec(ctx, "UPDATE user_cart SET order_qty = $2 WHERE id = $1", id, qty)
	if err != nil {
		return fmt.Errorf("updating cart item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}

// DeleteCartItem removes one cart row.
func (s *PostgresStore) DeleteCartItem(ctx context.Context, id int) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM user_cart WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting cart item %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCartItemNotFound
	}
	return nil
}
