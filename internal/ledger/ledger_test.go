package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/opensource-identity/kestrel/internal/domain"
)

// auditStore implements the audit slice of domain.Repository in memory.
type auditStore struct {
	domain.Repository

	records map[string][]*domain.AuditRecord
	failing bool
}

func newAuditStore() *auditStore {
	return &auditStore{records: make(map[string][]*domain.AuditRecord)}
}

func (s *auditStore) SaveAuditRecord(_ context.Context, tenantID string, record *domain.AuditRecord) error {
	if s.failing {
		return errors.New("disk full")
	}
	key := tenantID + "/" + record.UserID
	clone := *record
	s.records[key] = append(s.records[key], &clone)
	return nil
}

func (s *auditStore) ListAuditRecords(_ context.Context, tenantID string, userID string) ([]*domain.AuditRecord, error) {
	return s.records[tenantID+"/"+userID], nil
}

func testEntry(userID string, i int) Entry {
	return Entry{
		TenantID:       "tenant-1",
		UserID:         userID,
		VerificationID: fmt.Sprintf("ver-%s-%d", userID, i),
		Outcome:        domain.OutcomeApproved,
		TrustScore:     90,
		RiskTier:       domain.TierLow,
		Timestamp:      time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).Add(time.Duration(i) * time.Minute),
	}
}

func TestLedgerAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("genesis block links to zero", func(t *testing.T) {
		l := New(newAuditStore())

		record, err := l.Append(ctx, testEntry("user-1", 0))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if record.PreviousHash != "0" {
			t.Errorf("expected genesis previous hash \"0\", got %q", record.PreviousHash)
		}
		if record.DataHash == "" || record.BlockHash == "" {
			t.Error("expected hashes to be populated")
		}
	})

	t.Run("blocks chain in order", func(t *testing.T) {
		store := newAuditStore()
		l := New(store)

		var prev *domain.AuditRecord
		for i := 0; i < 5; i++ {
			record, err := l.Append(ctx, testEntry("user-1", i))
			if err != nil {
				t.Fatalf("Append %d failed: %v", i, err)
			}
			if prev != nil && record.PreviousHash != prev.BlockHash {
				t.Errorf("block %d previous hash = %q, want %q", i, record.PreviousHash, prev.BlockHash)
			}
			prev = record
		}
	})

	t.Run("chains are isolated per user", func(t *testing.T) {
		l := New(newAuditStore())

		if _, err := l.Append(ctx, testEntry("user-1", 0)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		record, err := l.Append(ctx, testEntry("user-2", 0))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if record.PreviousHash != "0" {
			t.Errorf("expected fresh chain for second user, got previous hash %q", record.PreviousHash)
		}
	})

	t.Run("resumes existing chain from storage", func(t *testing.T) {
		store := newAuditStore()
		first := New(store)
		tail, err := first.Append(ctx, testEntry("user-1", 0))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		// A new ledger over the same store must continue, not restart.
		second := New(store)
		record, err := second.Append(ctx, testEntry("user-1", 1))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if record.PreviousHash != tail.BlockHash {
			t.Errorf("resumed chain previous hash = %q, want %q", record.PreviousHash, tail.BlockHash)
		}
	})

	t.Run("failed write leaves chain tip unchanged", func(t *testing.T) {
		store := newAuditStore()
		l := New(store)

		tail, err := l.Append(ctx, testEntry("user-1", 0))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}

		store.failing = true
		if _, err := l.Append(ctx, testEntry("user-1", 1)); err == nil {
			t.Fatal("expected append to fail")
		}

		store.failing = false
		record, err := l.Append(ctx, testEntry("user-1", 2))
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if record.PreviousHash != tail.BlockHash {
			t.Errorf("chain tip moved on failed write: got %q, want %q", record.PreviousHash, tail.BlockHash)
		}
	})
}

func TestVerifyChainIntegrity(t *testing.T) {
	ctx := context.Background()

	t.Run("intact chain is valid", func(t *testing.T) {
		store := newAuditStore()
		l := New(store)
		for i := 0; i < 4; i++ {
			if _, err := l.Append(ctx, testEntry("user-1", i)); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		report, err := l.VerifyChainIntegrity(ctx, "tenant-1", "user-1")
		if err != nil {
			t.Fatalf("VerifyChainIntegrity failed: %v", err)
		}
		if !report.IsValid {
			t.Errorf("expected valid chain, corrupted: %v", report.CorruptedRecords)
		}
		if report.RecordCount != 4 {
			t.Errorf("expected 4 records, got %d", report.RecordCount)
		}
	})

	t.Run("empty chain is valid", func(t *testing.T) {
		l := New(newAuditStore())

		report, err := l.VerifyChainIntegrity(ctx, "tenant-1", "nobody")
		if err != nil {
			t.Fatalf("VerifyChainIntegrity failed: %v", err)
		}
		if !report.IsValid || report.RecordCount != 0 {
			t.Errorf("expected valid empty report, got %+v", report)
		}
	})

	t.Run("tampered payload is reported without error", func(t *testing.T) {
		store := newAuditStore()
		l := New(store)
		for i := 0; i < 3; i++ {
			if _, err := l.Append(ctx, testEntry("user-1", i)); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		// Flip a stored outcome behind the ledger's back.
		tampered := store.records["tenant-1/user-1"][1]
		tampered.Outcome = domain.OutcomeRejected

		report, err := l.VerifyChainIntegrity(ctx, "tenant-1", "user-1")
		if err != nil {
			t.Fatalf("VerifyChainIntegrity failed: %v", err)
		}
		if report.IsValid {
			t.Fatal("expected tampering to be detected")
		}
		if len(report.CorruptedRecords) != 1 || report.CorruptedRecords[0] != tampered.RecordID {
			t.Errorf("expected only record %s flagged, got %v", tampered.RecordID, report.CorruptedRecords)
		}
	})

	t.Run("broken link is reported", func(t *testing.T) {
		store := newAuditStore()
		l := New(store)
		for i := 0; i < 3; i++ {
			if _, err := l.Append(ctx, testEntry("user-1", i)); err != nil {
				t.Fatalf("Append failed: %v", err)
			}
		}

		store.records["tenant-1/user-1"][2].PreviousHash = "deadbeef"

		report, err := l.VerifyChainIntegrity(ctx, "tenant-1", "user-1")
		if err != nil {
			t.Fatalf("VerifyChainIntegrity failed: %v", err)
		}
		if report.IsValid {
			t.Fatal("expected broken link to be detected")
		}
	})
}
