package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
)

type fakeTx struct {
	pgx.Tx
	committed  bool
	rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if !f.committed {
		f.rolledBack = true
	}
	return nil
}

type fakeRunner struct {
	tx     *fakeTx
	begins int
	err    error
}

func (r *fakeRunner) Begin(context.Context) (pgx.Tx, error) {
	r.begins++
	if r.err != nil {
		return nil, r.err
	}
	return r.tx, nil
}

func TestWithTx_Commits(t *testing.T) {
	runner := &fakeRunner{tx: &fakeTx{}}
	var seen pgx.Tx

	err := WithTx(context.Background(), runner, func(ctx context.Context) error {
		seen = TxFromContext(ctx)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != runner.tx {
		t.Error("expected transaction to be bound to the context")
	}
	if !runner.tx.committed {
		t.Error("expected commit")
	}
	if runner.tx.rolledBack {
		t.Error("did not expect rollback after commit")
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	runner := &fakeRunner{tx: &fakeTx{}}
	boom := errors.New("boom")

	err := WithTx(context.Background(), runner, func(ctx context.Context) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if runner.tx.committed {
		t.Error("did not expect commit")
	}
	if !runner.tx.rolledBack {
		t.Error("expected rollback")
	}
}

func TestWithTx_NestedReusesOuter(t *testing.T) {
	runner := &fakeRunner{tx: &fakeTx{}}

	err := WithTx(context.Background(), runner, func(ctx context.Context) error {
		return WithTx(ctx, runner, func(inner context.Context) error {
			if TxFromContext(inner) != runner.tx {
				t.Error("expected inner call to see the outer transaction")
			}
			return nil
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.begins != 1 {
		t.Errorf("expected 1 begin, got %d", runner.begins)
	}
}

func TestWithTx_BeginError(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no conn")}
	called := false

	err := WithTx(context.Background(), runner, func(ctx context.Context) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if called {
		t.Error("fn must not run when begin fails")
	}
}

func TestTxFromContext_Empty(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil transaction")
	}
}
