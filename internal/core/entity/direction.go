package entity

// Direction is the sense of a stock movement.
type Direction string

const (
	// DirectionIn adds stock (receipt).
	DirectionIn Direction = "in"
	// DirectionOut removes stock (sale).
	DirectionOut Direction = "out"
)

// IsValid reports whether d is a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionIn || d == DirectionOut
}

// Opposite returns the compensating direction.
func (d Direction) Opposite() Direction {
	if d == DirectionIn {
		return DirectionOut
	}
	return DirectionIn
}
