package multirelay

import (
	"context"

	"github.com/nostrsync/negsync/nip11"
)

//go:generate mockgen -typed -package=multirelay_test -destination=./mocks_test.go -source=./interface.go

// CapabilityChecker tells whether a relay supports negentropy sync.
type CapabilityChecker interface {
	Check(ctx context.Context, relayURL string) nip11.Capability
}
