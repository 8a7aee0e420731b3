package treasury

import (
	"context"
	"sync"
	"testing"
)

func TestTransferAccumulates(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()

	if err := bank.Transfer(ctx, Credit{To: "alice", Amount: 40}); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if err := bank.Transfer(ctx, Credit{To: "alice", Amount: 2}, Credit{To: "bob", Amount: 58}); err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if got := bank.Balance("alice"); got != 42 {
		t.Errorf("alice balance = %d, want 42", got)
	}
	if got := bank.Balance("bob"); got != 58 {
		t.Errorf("bob balance = %d, want 58", got)
	}
	if got := bank.Balance("nobody"); got != 0 {
		t.Errorf("unknown principal balance = %d, want 0", got)
	}
}

func TestTransferHonorsContext(t *testing.T) {
	bank := NewBank()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := bank.Transfer(ctx, Credit{To: "alice", Amount: 10}); err == nil {
		t.Fatal("Transfer with cancelled context succeeded")
	}
	if got := bank.Balance("alice"); got != 0 {
		t.Errorf("balance = %d after rejected transfer, want 0", got)
	}
}

func TestConcurrentTransfers(t *testing.T) {
	bank := NewBank()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = bank.Transfer(ctx, Credit{To: "alice", Amount: 1}, Credit{To: "bob", Amount: 1})
		}()
	}
	wg.Wait()

	if got := bank.Balance("alice"); got != n {
		t.Errorf("alice balance = %d, want %d", got, n)
	}
	if got := bank.Balance("bob"); got != n {
		t.Errorf("bob balance = %d, want %d", got, n)
	}
}
