package consistency

import (
	"math/rand"
	"time"

	"github.com/cockroachdb/errors"
)

// A shipment and the status about to be written to it
type Target struct {
	ShipmentID int64
	Status     string
}

// Picks targets uniformly at random, with replacement.
type Picker struct {
	ids      []int64
	statuses []string
	rng      *rand.Rand
}

func NewPicker(ids []int64, statuses []string, seed int64) (*Picker, error) {
	if len(ids) == 0 {
		return nil, errors.New("no shipments to pick from")
	}
	if len(statuses) == 0 {
		return nil, errors.New("no statuses to pick from")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	p := &Picker{
		ids:      append([]int64(nil), ids...),
		statuses: append([]string(nil), statuses...),
		rng:      rand.New(rand.NewSource(seed)),
	}
	return p, nil
}

func (p *Picker) Pick() Target {
	return Target{
		ShipmentID: p.ids[p.rng.Intn(len(p.ids))],
		Status:     p.statuses[p.rng.Intn(len(p.statuses))],
	}
}
