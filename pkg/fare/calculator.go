package fare

import (
	"errors"
	"fmt"
	"math"
)

// FloorFare is the minimum chargeable fare in currency units.
const FloorFare = 50.0

var (
	// ErrNotComputable is returned when the stop indices cannot produce a fare.
	ErrNotComputable = errors.New("fare not computable for stop selection")
	// ErrOutOfBounds is returned when a client supplied fare is outside [floor, max(seat price, floor)].
	ErrOutOfBounds = errors.New("fare out of bounds")
)

// Calculator prorates seat prices with a configurable floor.
type Calculator struct {
	Floor float64
}

// NewCalculator returns a calculator; a non-positive floor falls back to FloorFare.
func NewCalculator(floor float64) Calculator {
	if floor <= 0 {
		floor = FloorFare
	}
	return Calculator{Floor: floor}
}

// Round2 rounds to two decimal places, halves away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Compute returns the fare for travelling from fromIdx to toIdx on a path with
// totalSegments hops, given the seat's end-to-end price. It returns 0 when
// the fare cannot be computed.
func (c Calculator) Compute(price float64, fromIdx, toIdx, totalSegments int) float64 {
	if totalSegments <= 0 || !validIndices(fromIdx, toIdx) || toIdx > totalSegments {
		return 0
	}
	ratio := float64(toIdx-fromIdx) / float64(totalSegments)
	return math.Max(Round2(price*ratio), c.Floor)
}

// MinimumFare returns the cheapest positive fare over the given seat prices,
// or 0 when none is computable.
func (c Calculator) MinimumFare(prices []float64, fromIdx, toIdx, totalSegments int) float64 {
	lowest := 0.0
	for _, price := range prices {
		f := c.Compute(price, fromIdx, toIdx, totalSegments)
		if f > 0 && (lowest == 0 || f < lowest) {
			lowest = f
		}
	}
	return lowest
}

// Compute uses the default floor.
func Compute(price float64, fromIdx, toIdx, totalSegments int) float64 {
	return NewCalculator(FloorFare).Compute(price, fromIdx, toIdx, totalSegments)
}

// MinimumFare uses the default floor.
func MinimumFare(prices []float64, fromIdx, toIdx, totalSegments int) float64 {
	return NewCalculator(FloorFare).MinimumFare(prices, fromIdx, toIdx, totalSegments)
}

// Mode selects how a booking's fare is determined.
type Mode interface {
	Name() string
	resolve(c Calculator, price float64, fromIdx, toIdx, totalSegments int) (float64, error)
}

// ComputedFare recomputes the fare from the seat layout price.
type ComputedFare struct{}

// Name implements Mode.
func (ComputedFare) Name() string { return "computed" }

func (ComputedFare) resolve(c Calculator, price float64, fromIdx, toIdx, totalSegments int) (float64, error) {
	f := c.Compute(price, fromIdx, toIdx, totalSegments)
	if f <= 0 {
		return 0, ErrNotComputable
	}
	return f, nil
}

// ClientSuppliedFare carries a fare captured upstream, typically by a payment
// step. It is accepted only within [floor, max(seat price, floor)].
type ClientSuppliedFare struct {
	Amount float64
}

// Name implements Mode.
func (ClientSuppliedFare) Name() string { return "client_supplied" }

func (m ClientSuppliedFare) resolve(c Calculator, price float64, fromIdx, toIdx, totalSegments int) (float64, error) {
	if totalSegments <= 0 || !validIndices(fromIdx, toIdx) {
		return 0, ErrNotComputable
	}
	// a seat priced under the floor still sells at the floor
	ceiling := math.Max(price, c.Floor)
	amount := Round2(m.Amount)
	if amount < c.Floor || amount > ceiling {
		return 0, fmt.Errorf("%w: %.2f not within [%.2f, %.2f]", ErrOutOfBounds, amount, c.Floor, ceiling)
	}
	return amount, nil
}

// Resolve determines the final fare for a seat under the given mode.
func (c Calculator) Resolve(mode Mode, price float64, fromIdx, toIdx, totalSegments int) (float64, error) {
	if mode == nil {
		mode = ComputedFare{}
	}
	return mode.resolve(c, price, fromIdx, toIdx, totalSegments)
}
