package commands

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"psephos/contexts/governance/notifications/adapters/memory"
	"psephos/contexts/governance/notifications/domain/entities"
	domainerrors "psephos/contexts/governance/notifications/domain/errors"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func TestEnqueueReceiptSnapshotsHashes(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	queue := QueueUseCase{Messages: store, Clock: clock}

	message, err := queue.EnqueueReceipt(context.Background(), ReceiptNotice{
		ElectionID:   7,
		ElectionName: "Board 2026",
		Recipient:    "voter@example.org",
		BallotID:     42,
		ContentHash:  "content-abc",
		ChainHash:    "chain-def",
		Nonce:        "nonce-123",
	})
	if err != nil {
		t.Fatalf("EnqueueReceipt: %v", err)
	}
	if message.Template != entities.TemplateBallotReceipt {
		t.Fatalf("template = %s, want %s", message.Template, entities.TemplateBallotReceipt)
	}
	if message.Status != entities.StatusPending {
		t.Fatalf("status = %s, want pending", message.Status)
	}
	for _, token := range []string{"content-abc", "chain-def", "nonce-123", "Board 2026"} {
		if !strings.Contains(message.TextBody, token) {
			t.Fatalf("text body misses %q: %s", token, message.TextBody)
		}
	}
	var decoded struct {
		BallotID    int64  `json:"ballot_id"`
		ContentHash string `json:"content_hash"`
		ChainHash   string `json:"chain_hash"`
	}
	if err := json.Unmarshal(message.Context, &decoded); err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if decoded.BallotID != 42 || decoded.ContentHash != "content-abc" || decoded.ChainHash != "chain-def" {
		t.Fatalf("context = %+v", decoded)
	}
}

func TestEnqueueReceiptRequiresRecipient(t *testing.T) {
	queue := QueueUseCase{Messages: memory.NewStore(), Clock: fixedClock{now: time.Now().UTC()}}
	if _, err := queue.EnqueueReceipt(context.Background(), ReceiptNotice{ElectionID: 7}); !errors.Is(err, domainerrors.ErrRecipientRequired) {
		t.Fatalf("missing recipient: got %v, want ErrRecipientRequired", err)
	}
}

func TestScrubElectionRemovesQueuedReceipts(t *testing.T) {
	store := memory.NewStore()
	clock := fixedClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	queue := QueueUseCase{Messages: store, Clock: clock}

	if _, err := queue.EnqueueReceipt(context.Background(), ReceiptNotice{
		ElectionID: 7, ElectionName: "Board", Recipient: "voter@example.org",
	}); err != nil {
		t.Fatalf("EnqueueReceipt: %v", err)
	}
	if _, err := queue.EnqueueReceipt(context.Background(), ReceiptNotice{
		ElectionID: 8, ElectionName: "Other", Recipient: "voter@example.org",
	}); err != nil {
		t.Fatalf("EnqueueReceipt: %v", err)
	}

	removed, err := queue.ScrubElection(context.Background(), 7)
	if err != nil {
		t.Fatalf("ScrubElection: %v", err)
	}
	if removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	left, err := store.ListByElection(context.Background(), 8)
	if err != nil {
		t.Fatalf("ListByElection: %v", err)
	}
	if len(left) != 1 {
		t.Fatalf("other election lost its receipt: %d left", len(left))
	}
}
