//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll empties the admin slot.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := env.Pool.Exec(ctx, "TRUNCATE TABLE admin_account"); err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
}
