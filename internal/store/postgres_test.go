package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
)

// --- Helpers ---

func strPtr(s string) *string { return &s }

func mustCreateCustomer(t *testing.T, ctx context.Context, s *PostgresStore, first, last string) *Customer {
	t.Helper()
	c := &Customer{
		Title:        strPtr("Ms."),
		FirstName:    first,
		LastName:     last,
		EmailAddress: first + "@example.com",
		RowGUID:      uuid.Must(uuid.NewV4()),
		ModifiedDate: time.Now().UTC().Truncate(time.Microsecond),
	}
	id, err := s.CreateCustomer(ctx, c)
	if err != nil {
		t.Fatalf("CreateCustomer failed: %v", err)
	}
	c.ID = id
	t.Cleanup(func() { s.DeleteCustomer(context.Background(), id) })
	return c
}

// --- Customers ---

func TestCustomerCRUD(t *testing.T) {
	ctx := context.Background()
	s := requirePostgres(t)

	t.Run("create then get returns stored values with NULLs preserved", func(t *testing.T) {
		c := mustCreateCustomer(t, ctx, s, "Ada", "Lovelace")

		got, err := s.GetCustomer(ctx, c.ID)
		if err != nil {
			t.Fatalf("GetCustomer failed: %v", err)
		}
		if got.FirstName != "Ada" || got.LastName != "Lovelace" {
			t.Errorf("name: got %q %q", got.FirstName, got.LastName)
		}
		if got.Title == nil || *got.Title != "Ms." {
			t.Errorf("title: expected Ms., got %v", got.Title)
		}
		if got.Phone != nil {
			t.Errorf("phone: expected NULL, got %q", *got.Phone)
		}
		if got.CompanyName != nil {
			t.Errorf("company_name: expected NULL, got %q", *got.CompanyName)
		}
		if got.RowGUID != c.RowGUID {
			t.Errorf("rowguid: expected %v, got %v", c.RowGUID, got.RowGUID)
		}
	})

	t.Run("missing id returns ErrCustomerNotFound", func(t *testing.T) {
		_, err := s.GetCustomer(ctx, -1)
		if !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound, got %v", err)
		}
	})

	t.Run("update overwrites editable columns", func(t *testing.T) {
		c := mustCreateCustomer(t, ctx, s, "Grace", "Hopper")
		c.Phone = strPtr("+39 02 1234567")
		c.EmailAddress = "grace@navy.mil"
		if err := s.UpdateCustomer(ctx, c); err != nil {
			t.Fatalf("UpdateCustomer failed: %v", err)
		}
		got, _ := s.GetCustomer(ctx, c.ID)
		if got.Phone == nil || *got.Phone != "+39 02 1234567" {
			t.Errorf("phone: got %v", got.Phone)
		}
		if got.EmailAddress != "grace@navy.mil" {
			t.Errorf("email: got %q", got.EmailAddress)
		}
	})

	t.Run("update of missing row returns ErrCustomerNotFound", func(t *testing.T) {
		err := s.UpdateCustomer(ctx, &Customer{ID: -1, FirstName: "x", LastName: "y"})
		if !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound, got %v", err)
		}
	})

	t.Run("list includes created rows in id order", func(t *testing.T) {
		a := mustCreateCustomer(t, ctx, s, "Alan", "Turing")
		b := mustCreateCustomer(t, ctx, s, "Barbara", "Liskov")
		list, err := s.ListCustomers(ctx)
		if err != nil {
			t.Fatalf("ListCustomers failed: %v", err)
		}
		ia, ib := -1, -1
		for i, c := range list {
			switch c.ID {
			case a.ID:
				ia = i
			case b.ID:
				ib = i
			}
		}
		if ia < 0 || ib < 0 || ia > ib {
			t.Errorf("expected both rows in id order, got positions %d and %d", ia, ib)
		}
	})

	t.Run("delete removes the row", func(t *testing.T) {
		c := mustCreateCustomer(t, ctx, s, "Temp", "Row")
		if err := s.DeleteCustomer(ctx, c.ID); err != nil {
			t.Fatalf("DeleteCustomer failed: %v", err)
		}
		if _, err := s.GetCustomer(ctx, c.ID); !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound after delete, got %v", err)
		}
		if err := s.DeleteCustomer(ctx, c.ID); !errors.Is(err, ErrCustomerNotFound) {
			t.Errorf("expected ErrCustomerNotFound on second delete, got %v", err)
		}
	})
}

// --- Error log ---

func TestInsertErrorLog(t *testing.T) {
	ctx := context.Background()
	s := requirePostgres(t)

	state := 404
	line := 42
	e := &ErrorLog{
		ErrorTime:      time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC),
		UserName:       "store_test@example.com",
		ErrorNumber:    -2146232740,
		ErrorSeverity:  4,
		ErrorState:     &state,
		ErrorProcedure: strPtr("handler.go"),
		ErrorLine:      &line,
		ErrorMessage:   "not found",
	}
	id, err := s.InsertErrorLog(ctx, e)
	if err != nil {
		t.Fatalf("InsertErrorLog failed: %v", err)
	}
	t.Cleanup(func() { s.pool.Exec(ctx, "DELETE FROM error_log WHERE error_log_id = $1", id) })

	var (
		user    string
		number  int32
		gotLine *int
		msg     string
	)
	err = s.pool.QueryRow(ctx,
		"SELECT user_name, error_number, error_line, error_message FROM error_log WHERE error_log_id = $1", id,
	).Scan(&user, &number, &gotLine, &msg)
	if err != nil {
		t.Fatalf("querying error_log: %v", err)
	}
	if user != e.UserName || number != e.ErrorNumber || msg != e.ErrorMessage {
		t.Errorf("row mismatch: %q %d %q", user, number, msg)
	}
	if gotLine == nil || *gotLine != 42 {
		t.Errorf("error_line: expected 42, got %v", gotLine)
	}

	t.Run("user name as long as the longest email is stored", func(t *testing.T) {
		long := strings.Repeat("a", 242) + "@example.com"
		id, err := s.InsertErrorLog(ctx, &ErrorLog{
			ErrorTime:    time.Now(),
			UserName:     long,
			ErrorNumber:  -2146233088,
			ErrorMessage: "boom",
		})
		if err != nil {
			t.Fatalf("InsertErrorLog failed: %v", err)
		}
		t.Cleanup(func() { s.pool.Exec(ctx, "DELETE FROM error_log WHERE error_log_id = $1", id) })

		var got string
		if err := s.pool.QueryRow(ctx, "SELECT user_name FROM error_log WHERE error_log_id = $1", id).Scan(&got); err != nil {
			t.Fatalf("querying error_log: %v", err)
		}
		if got != long {
			t.Errorf("user_name: expected %d chars, got %d", len(long), len(got))
		}
	})

	t.Run("nullable columns accept nil", func(t *testing.T) {
		id, err := s.InsertErrorLog(ctx, &ErrorLog{
			ErrorTime:    time.Now(),
			UserName:     "unknown",
			ErrorNumber:  -2146233088,
			ErrorMessage: "boom",
		})
		if err != nil {
			t.Fatalf("InsertErrorLog failed: %v", err)
		}
		s.pool.Exec(ctx, "DELETE FROM error_log WHERE error_log_id = $1", id)
	})
}

// --- Cart ---

func TestCartItems(t *testing.T) {
	ctx := context.Background()
	s := requirePostgres(t)
	c := mustCreateCustomer(t, ctx, s, "Cart", "Owner")

	t.Run("empty cart lists as empty slice", func(t *testing.T) {
		items, err := s.ListCartItems(ctx, c.ID)
		if err != nil {
			t.Fatalf("ListCartItems failed: %v", err)
		}
		if items == nil || len(items) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", items)
		}
	})

	added, err := s.AddCartItem(ctx, &CartItem{
		Name: "Road Bike", CustomerID: c.ID, OrderQty: 1, ProductID: 749, UnitPrice: 3578.27, AddedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AddCartItem failed: %v", err)
	}

	t.Run("add returns generated id and stored values", func(t *testing.T) {
		if added.ID == 0 {
			t.Error("expected generated id")
		}
		if added.UnitPrice != 3578.27 {
			t.Errorf("unit_price: expected 3578.27, got %v", added.UnitPrice)
		}
	})

	t.Run("added_at keeps the wall clock it was written with", func(t *testing.T) {
		rome, err := time.LoadLocation("Europe/Rome")
		if err != nil {
			t.Skipf("tzdata unavailable: %v", err)
		}
		at := time.Date(2024, 12, 24, 10, 30, 0, 0, rome)
		it, err := s.AddCartItem(ctx, &CartItem{
			Name: "Helmet", CustomerID: c.ID, OrderQty: 1, ProductID: 707, UnitPrice: 34.99, AddedAt: at,
		})
		if err != nil {
			t.Fatalf("AddCartItem failed: %v", err)
		}
		t.Cleanup(func() { s.DeleteCartItem(ctx, it.ID) })

		got, err := s.GetCartItem(ctx, c.ID, 707)
		if err != nil {
			t.Fatalf("GetCartItem failed: %v", err)
		}
		if h, m := got.AddedAt.Hour(), got.AddedAt.Minute(); h != 10 || m != 30 {
			t.Errorf("added_at: expected 10:30 wall clock, got %s", got.AddedAt)
		}
	})

	t.Run("get by product finds the row", func(t *testing.T) {
		got, err := s.GetCartItem(ctx, c.ID, 749)
		if err != nil {
			t.Fatalf("GetCartItem failed: %v", err)
		}
		if got.ID != added.ID {
			t.Errorf("id: expected %d, got %d", added.ID, got.ID)
		}
		if _, err := s.GetCartItem(ctx, c.ID, 1); !errors.Is(err, ErrCartItemNotFound) {
			t.Errorf("expected ErrCartItemNotFound, got %v", err)
		}
	})

	t.Run("quantity update is stored", func(t *testing.T) {
		if err := s.UpdateCartItemQty(ctx, added.ID, 3); err != nil {
			t.Fatalf("UpdateCartItemQty failed: %v", err)
		}
		got, _ := s.GetCartItem(ctx, c.ID, 749)
		if got.OrderQty != 3 {
			t.Errorf("order_qty: expected 3, got %d", got.OrderQty)
		}
	})

	t.Run("zero quantity violates the check constraint", func(t *testing.T) {
		if err := s.UpdateCartItemQty(ctx, added.ID, 0); err == nil {
			t.Error("expected error for order_qty 0")
		}
	})

	t.Run("delete removes the row and a second delete reports not found", func(t *testing.T) {
		if err := s.DeleteCartItem(ctx, added.ID); err != nil {
			t.Fatalf("DeleteCartItem failed: %v", err)
		}
		if err := s.DeleteCartItem(ctx, added.ID); !errors.Is(err, ErrCartItemNotFound) {
			t.Errorf("expected ErrCartItemNotFound, got %v", err)
		}
	})
}
