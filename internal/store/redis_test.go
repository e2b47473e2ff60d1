package store

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofrs/uuid/v5"
	"github.com/redis/go-redis/v9"
)

// --- Helpers ---

// newTestRedisStore returns a RedisStore backed by an in-process miniredis.
func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisStore(rdb), mr
}

func testCredential(customerID int, email string) *Credential {
	return &Credential{
		ID:           uuid.Must(uuid.NewV7()),
		CustomerID:   customerID,
		EmailAddress: email,
		PasswordHash: "aGFzaA==",
		PasswordSalt: "c2FsdDEy",
		Role:         RoleCustomer,
	}
}

// --- Insert + Find ---

func TestInsertAndFindCredential(t *testing.T) {
	ctx := context.Background()

	t.Run("round-trip by email and by customer id", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		cred := testCredential(7, "a@x.com")

		if err := rs.Insert(ctx, cred); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		got, err := rs.FindByEmail(ctx, "a@x.com")
		if err != nil {
			t.Fatalf("FindByEmail failed: %v", err)
		}
		if *got != *cred {
			t.Errorf("FindByEmail: expected %+v, got %+v", cred, got)
		}

		got, err = rs.FindByCustomerID(ctx, 7)
		if err != nil {
			t.Fatalf("FindByCustomerID failed: %v", err)
		}
		if got.EmailAddress != "a@x.com" {
			t.Errorf("FindByCustomerID email: expected a@x.com, got %q", got.EmailAddress)
		}
	})

	t.Run("lookup is case-sensitive", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		if err := rs.Insert(ctx, testCredential(1, "Case@x.com")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		_, err := rs.FindByEmail(ctx, "case@x.com")
		if !errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("missing email returns ErrCredentialNotFound", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		_, err := rs.FindByEmail(ctx, "nobody@x.com")
		if !errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
		_, err = rs.FindByCustomerID(ctx, 99)
		if !errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("duplicate email returns ErrDuplicateKey and keeps the first document", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		if err := rs.Insert(ctx, testCredential(1, "a@x.com")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		err := rs.Insert(ctx, testCredential(2, "a@x.com"))
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		got, _ := rs.FindByEmail(ctx, "a@x.com")
		if got.CustomerID != 1 {
			t.Errorf("CustomerID: expected 1, got %d", got.CustomerID)
		}
		if _, err := rs.FindByCustomerID(ctx, 2); !errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected no index for customer 2, got %v", err)
		}
	})

	t.Run("second credential for the same customer returns ErrDuplicateKey", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		if err := rs.Insert(ctx, testCredential(1, "a@x.com")); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		err := rs.Insert(ctx, testCredential(1, "b@x.com"))
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		if ok, _ := rs.ExistsByEmail(ctx, "b@x.com"); ok {
			t.Error("b@x.com should not have been written")
		}
	})

	t.Run("concurrent inserts of one email leave exactly one document", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		const n = 20
		var wg sync.WaitGroup
		var mu sync.Mutex
		ok, dup := 0, 0
		for i := 1; i <= n; i++ {
			wg.Add(1)
			go func(id int) {
				defer wg.Done()
				err := rs.Insert(ctx, testCredential(id, "race@x.com"))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					ok++
				case errors.Is(err, ErrDuplicateKey):
					dup++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(i)
		}
		wg.Wait()
		if ok != 1 || dup != n-1 {
			t.Errorf("expected 1 insert and %d duplicates, got %d and %d", n-1, ok, dup)
		}
	})

	t.Run("redis failure is wrapped, not reported as a miss", func(t *testing.T) {
		rs, mr := newTestRedisStore(t)
		mr.SetError("LOADING")
		_, err := rs.FindByEmail(ctx, "a@x.com")
		if err == nil || errors.Is(err, ErrCredentialNotFound) {
			t.Errorf("expected infrastructure error, got %v", err)
		}
	})
}

// --- ExistsByEmail / IsAdmin ---

func TestExistsByEmailAndIsAdmin(t *testing.T) {
	ctx := context.Background()
	rs, _ := newTestRedisStore(t)

	admin := testCredential(1, "admin@x.com")
	admin.Role = RoleAdmin
	if err := rs.Insert(ctx, admin); err != nil {
		t.Fatalf("Insert admin: %v", err)
	}
	if err := rs.Insert(ctx, testCredential(2, "user@x.com")); err != nil {
		t.Fatalf("Insert user: %v", err)
	}

	cases := []struct {
		email      string
		wantExists bool
		wantAdmin  bool
	}{
		{"admin@x.com", true, true},
		{"user@x.com", true, false},
		{"ghost@x.com", false, false},
	}
	for _, tc := range cases {
		t.Run(tc.email, func(t *testing.T) {
			exists, err := rs.ExistsByEmail(ctx, tc.email)
			if err != nil {
				t.Fatalf("ExistsByEmail: %v", err)
			}
			if exists != tc.wantExists {
				t.Errorf("ExistsByEmail: expected %v, got %v", tc.wantExists, exists)
			}
			admin, err := rs.IsAdmin(ctx, tc.email)
			if err != nil {
				t.Fatalf("IsAdmin: %v", err)
			}
			if admin != tc.wantAdmin {
				t.Errorf("IsAdmin: expected %v, got %v", tc.wantAdmin, admin)
			}
		})
	}
}

// --- ReplaceByCustomerID ---

func TestReplaceByCustomerID(t *testing.T) {
	ctx := context.Background()

	t.Run("changes email and moves the document", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		cred := testCredential(5, "old@x.com")
		if err := rs.Insert(ctx, cred); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}

		updated := *cred
		updated.EmailAddress = "new@x.com"
		if err := rs.ReplaceByCustomerID(ctx, 5, &updated); err != nil {
			t.Fatalf("ReplaceByCustomerID failed: %v", err)
		}

		if ok, _ := rs.ExistsByEmail(ctx, "old@x.com"); ok {
			t.Error("old email key should be removed")
		}
		got, err := rs.FindByCustomerID(ctx, 5)
		if err != nil {
			t.Fatalf("FindByCustomerID: %v", err)
		}
		if got.EmailAddress != "new@x.com" || got.PasswordHash != cred.PasswordHash {
			t.Errorf("unexpected document after replace: %+v", got)
		}
	})

	t.Run("same email replaces in place", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		cred := testCredential(5, "same@x.com")
		if err := rs.Insert(ctx, cred); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
		updated := *cred
		updated.Role = RoleAdmin
		if err := rs.ReplaceByCustomerID(ctx, 5, &updated); err != nil {
			t.Fatalf("ReplaceByCustomerID failed: %v", err)
		}
		got, _ := rs.FindByEmail(ctx, "same@x.com")
		if got.Role != RoleAdmin {
			t.Errorf("Role: expected Admin, got %q", got.Role)
		}
	})

	t.Run("email owned by another customer returns ErrDuplicateKey", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		rs.Insert(ctx, testCredential(1, "one@x.com"))
		rs.Insert(ctx, testCredential(2, "two@x.com"))

		err := rs.ReplaceByCustomerID(ctx, 2, testCredential(2, "one@x.com"))
		if !errors.Is(err, ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		got, _ := rs.FindByCustomerID(ctx, 2)
		if got.EmailAddress != "two@x.com" {
			t.Errorf("customer 2 email changed to %q", got.EmailAddress)
		}
	})

	t.Run("unknown customer returns ErrCredentialNotFound", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		err := rs.ReplaceByCustomerID(ctx, 42, testCredential(42, "x@x.com"))
		if !errors.Is(err, ErrCredentialNotFound) {
			t.Fatalf("expected ErrCredentialNotFound, got %v", err)
		}
	})

	t.Run("customer id in the document is forced to the target", func(t *testing.T) {
		rs, _ := newTestRedisStore(t)
		rs.Insert(ctx, testCredential(3, "three@x.com"))
		if err := rs.ReplaceByCustomerID(ctx, 3, testCredential(999, "three@x.com")); err != nil {
			t.Fatalf("ReplaceByCustomerID failed: %v", err)
		}
		got, _ := rs.FindByEmail(ctx, "three@x.com")
		if got.CustomerID != 3 {
			t.Errorf("CustomerID: expected 3, got %d", got.CustomerID)
		}
	})
}

func TestCheckHealthRedis(t *testing.T) {
	rs, mr := newTestRedisStore(t)
	if err := rs.CheckHealth(context.Background()); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	mr.Close()
	if err := rs.CheckHealth(context.Background()); err == nil {
		t.Error("expected error after redis shut down")
	}
}
