package domain

import (
	"context"
)

// TransactionRunner executes fn atomically against the backing store. Nested
// calls join the transaction already carried by ctx instead of opening a new
// one.
type TransactionRunner interface {
	Exec(ctx context.Context, fn func(ctx context.Context) error) error
}
