// Package seeders is the registry of seed functions run by `campusmart seed`.
//
// Define a seeder in any file in this package:
//
//	func init() {
//	    Register("payment-methods", SeedPaymentMethods)
//	}
//
// Seeders must be idempotent: running them twice leaves the same data.
package seeders

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/campusmart/app/repositories"
	"github.com/shashiranjanraj/campusmart/app/services"
	"github.com/shashiranjanraj/campusmart/pkg/logger"
)

// Env is what seeders write through.
type Env struct {
	Auth  *services.AuthService
	Admin *repositories.AdminRepository
	Users *repositories.UserRepository
}

// SeederFunc is the signature for a seed function.
type SeederFunc func(ctx context.Context, env Env) error

type seederEntry struct {
	name string
	fn   SeederFunc
}

var (
	mu      sync.Mutex
	entries []seederEntry
)

// Register adds a seeder to the global registry.
// Call this from init() in your seeder files.
func Register(name string, fn SeederFunc) {
	mu.Lock()
	defer mu.Unlock()
	entries = append(entries, seederEntry{name: name, fn: fn})
}

// Names lists the registered seeders in run order.
func Names() []string {
	mu.Lock()
	defer mu.Unlock()
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return names
}

// RunAll executes every registered seeder in registration order.
// It stops on the first error.
func RunAll(ctx context.Context, env Env) error {
	mu.Lock()
	current := make([]seederEntry, len(entries))
	copy(current, entries)
	mu.Unlock()

	for _, e := range current {
		logger.Info("running seeder", "seeder", e.name)
		if err := e.fn(ctx, env); err != nil {
			return fmt.Errorf("seeder %q: %w", e.name, err)
		}
	}
	return nil
}
