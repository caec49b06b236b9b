package docvault

import (
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Clock abstracts time retrieval so business logic is deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the actual current time in UTC. Stored timestamps are
// UTC; returning UTC here keeps written and read values comparable.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// IDGenerator abstracts unique ID generation so tests are deterministic.
type IDGenerator interface {
	New() string
}

// UUIDGenerator produces random UUIDs. Used for caller-generated document
// and template identifiers.
type UUIDGenerator struct{}

func (UUIDGenerator) New() string { return uuid.New().String() }

// ULIDGenerator produces lexically time-ordered identifiers. Used for
// processing results so identifier order follows creation order.
type ULIDGenerator struct{}

func (ULIDGenerator) New() string { return ulid.Make().String() }
