package models

import (
	"testing"
	"time"
)

func TestUUIDScan(t *testing.T) {
	cases := []struct {
		name  string
		value interface{}
		want  UUID
		fails bool
	}{
		{"string", "6ba7b810-9dad-41d1-80b4-00c04fd430c8", UUID("6ba7b810-9dad-41d1-80b4-00c04fd430c8"), false},
		{"bytes", []byte("6ba7b810-9dad-41d1-80b4-00c04fd430c8"), UUID("6ba7b810-9dad-41d1-80b4-00c04fd430c8"), false},
		{"nil", nil, UUID(""), false},
		{"unsupported", 42, UUID(""), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var u UUID
			err := u.Scan(tc.value)
			if tc.fails {
				if err == nil {
					t.Error("expected a scan error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Scan failed: %v", err)
			}
			if u != tc.want {
				t.Errorf("scanned = %q, want %q", u, tc.want)
			}
		})
	}
}

func TestOperationKindValid(t *testing.T) {
	for _, kind := range []OperationKind{OpCreate, OpUpdate, OpDelete} {
		if !kind.Valid() {
			t.Errorf("kind %q should be valid", kind)
		}
	}
	for _, kind := range []OperationKind{"", "upsert", "CREATE"} {
		if kind.Valid() {
			t.Errorf("kind %q should be invalid", kind)
		}
	}
}

func TestCollectionValid(t *testing.T) {
	valid := []Collection{
		CollectionProducts, CollectionSales, CollectionRestores,
		CollectionBranches, CollectionEmployees, CollectionBusiness,
	}
	for _, c := range valid {
		if !c.Valid() {
			t.Errorf("collection %q should be valid", c)
		}
	}
	for _, c := range []Collection{"", "invoices", "Products"} {
		if c.Valid() {
			t.Errorf("collection %q should be invalid", c)
		}
	}
}

func TestPendingOperationReady(t *testing.T) {
	now := time.Now()
	op := &PendingOperation{NextAttemptAt: 0}
	if !op.Ready(now) {
		t.Error("operation with no gate should be ready")
	}

	op.NextAttemptAt = now.Add(time.Minute).Unix()
	if op.Ready(now) {
		t.Error("operation inside its backoff window should not be ready")
	}
	if !op.Ready(now.Add(2 * time.Minute)) {
		t.Error("operation past its gate should be ready")
	}
}
