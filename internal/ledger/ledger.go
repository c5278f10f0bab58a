// Package ledger implements the tamper-evident audit trail. Records form
// a per-user hash chain: each block commits to its own payload and to the
// previous block hash, so any later mutation of a stored record breaks
// every hash downstream of it.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-identity/kestrel/internal/domain"
)

// genesisHash is the previous-hash value of the first block in a chain.
const genesisHash = "0"

// Entry is the decision snapshot sealed into one audit block.
type Entry struct {
	TenantID       string
	UserID         string
	VerificationID string
	Outcome        domain.Outcome
	TrustScore     int
	RiskTier       domain.RiskTier
	AlertCount     int
	Timestamp      time.Time
}

// Ledger appends audit blocks and verifies chain integrity. Appends for
// the same user are serialized so the chain never forks.
type Ledger struct {
	repo domain.Repository

	mu sync.Mutex
	// tipHash caches the latest block hash per tenant/user chain so a hot
	// chain does not re-read the tail on every append.
	tipHash map[string]string
}

// New creates a ledger over the given repository.
func New(repo domain.Repository) *Ledger {
	return &Ledger{
		repo:    repo,
		tipHash: make(map[string]string),
	}
}

// Append seals an entry into the user's chain and persists it. The write
// must succeed before the block becomes the chain tip; a failed write
// leaves the chain unchanged.
func (l *Ledger) Append(ctx context.Context, entry Entry) (*domain.AuditRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prevHash, err := l.tip(ctx, entry.TenantID, entry.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chain tip: %w", err)
	}

	record := &domain.AuditRecord{
		RecordID:       uuid.New().String(),
		TenantID:       entry.TenantID,
		UserID:         entry.UserID,
		VerificationID: entry.VerificationID,
		Timestamp:      entry.Timestamp,
		PreviousHash:   prevHash,
		Outcome:        entry.Outcome,
		TrustScore:     entry.TrustScore,
		RiskTier:       entry.RiskTier,
		AlertCount:     entry.AlertCount,
	}

	dataHash, err := hashRecordData(record)
	if err != nil {
		return nil, fmt.Errorf("failed to hash audit record: %w", err)
	}
	record.DataHash = dataHash
	record.BlockHash = hashBlock(dataHash, prevHash)

	if err := l.repo.SaveAuditRecord(ctx, entry.TenantID, record); err != nil {
		return nil, fmt.Errorf("failed to persist audit record: %w", err)
	}

	l.tipHash[chainKey(entry.TenantID, entry.UserID)] = record.BlockHash
	return record, nil
}

// VerifyChainIntegrity walks the user's chain in append order and
// recomputes every hash. Corruption is reported, never returned as an
// error; only a failure to read the chain errors out.
func (l *Ledger) VerifyChainIntegrity(ctx context.Context, tenantID, userID string) (*domain.IntegrityReport, error) {
	records, err := l.repo.ListAuditRecords(ctx, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load audit records: %w", err)
	}

	report := &domain.IntegrityReport{
		IsValid:     true,
		RecordCount: len(records),
	}

	prevHash := genesisHash
	for _, record := range records {
		corrupted := false

		dataHash, err := hashRecordData(record)
		if err != nil || dataHash != record.DataHash {
			corrupted = true
		}
		if record.PreviousHash != prevHash {
			corrupted = true
		}
		if hashBlock(record.DataHash, record.PreviousHash) != record.BlockHash {
			corrupted = true
		}

		if corrupted {
			report.IsValid = false
			report.CorruptedRecords = append(report.CorruptedRecords, record.RecordID)
		}

		// Continue the walk from the stored hash so a single corrupted
		// block does not cascade into reports for every later block.
		prevHash = record.BlockHash
	}

	return report, nil
}

// tip returns the latest block hash for a chain, reading the stored tail
// on first use.
func (l *Ledger) tip(ctx context.Context, tenantID, userID string) (string, error) {
	key := chainKey(tenantID, userID)
	if hash, ok := l.tipHash[key]; ok {
		return hash, nil
	}

	records, err := l.repo.ListAuditRecords(ctx, tenantID, userID)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return genesisHash, nil
	}
	return records[len(records)-1].BlockHash, nil
}

func chainKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

// hashRecordData hashes the canonical JSON form of the block payload.
// The chain fields themselves are excluded: DataHash covers what the
// block says, BlockHash covers where it sits.
func hashRecordData(record *domain.AuditRecord) (string, error) {
	payload := struct {
		RecordID       string          `json:"recordId"`
		TenantID       string          `json:"tenantId"`
		UserID         string          `json:"userId"`
		VerificationID string          `json:"verificationId"`
		Timestamp      time.Time       `json:"timestamp"`
		Outcome        domain.Outcome  `json:"outcome"`
		TrustScore     int             `json:"trustScore"`
		RiskTier       domain.RiskTier `json:"riskTier"`
		AlertCount     int             `json:"alertCount"`
	}{
		RecordID:       record.RecordID,
		TenantID:       record.TenantID,
		UserID:         record.UserID,
		VerificationID: record.VerificationID,
		Timestamp:      record.Timestamp,
		Outcome:        record.Outcome,
		TrustScore:     record.TrustScore,
		RiskTier:       record.RiskTier,
		AlertCount:     record.AlertCount,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// hashBlock links a block to its predecessor.
func hashBlock(dataHash, previousHash string) string {
	sum := sha256.Sum256([]byte(dataHash + previousHash))
	return hex.EncodeToString(sum[:])
}
