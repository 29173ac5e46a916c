package execution

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// SimulatedOrderPrefix marks order ids that never reached an exchange.
const SimulatedOrderPrefix = "SIM_"

// orderIDs produces monotonic ULIDs, so ids minted in the same millisecond still sort.
type orderIDs struct {
	mu   sync.Mutex
	mono io.Reader
	now  func() time.Time
}

func newOrderIDs() *orderIDs {
	var seed int64
	_ = binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &orderIDs{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:  time.Now,
	}
}

// Simulated returns a new SIM_<ULID> order id.
func (g *orderIDs) Simulated() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(g.now().UTC()), g.mono)
	if err != nil {
		return "", err
	}
	return SimulatedOrderPrefix + id.String(), nil
}
