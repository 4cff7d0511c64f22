package engine

import "errors"

// Mark is a single board cell value. The empty cell serializes as "." so
// boards remain readable in persisted snapshots and on the wire.
type Mark string

const (
	Empty Mark = "."
	X     Mark = "X"
	O     Mark = "O"
)

// Size is the board edge length.
const Size = 3

var (
	ErrOutOfRange   = errors.New("cell out of range")
	ErrCellOccupied = errors.New("cell already occupied")
)

// Board is the 3x3 grid. Cells are write-once: Apply never overwrites.
type Board [Size][Size]Mark

// NewBoard returns a board with every cell empty.
func NewBoard() Board {
	var b Board
	for r := range b {
		for c := range b[r] {
			b[r][c] = Empty
		}
	}
	return b
}

// Apply places mark at (row, col). It fails if the coordinates are out of
// range or the cell is taken; the board is unchanged on failure.
func (b *Board) Apply(row, col int, mark Mark) error {
	if row < 0 || row >= Size || col < 0 || col >= Size {
		return ErrOutOfRange
	}
	if b[row][col] != Empty {
		return ErrCellOccupied
	}
	b[row][col] = mark
	return nil
}

// Winner reports the mark holding a complete line, if any. Only one move is
// applied between checks, so at most one mark can have a line.
func (b *Board) Winner() (Mark, bool) {
	for i := 0; i < Size; i++ {
		if m := b[i][0]; m != Empty && m == b[i][1] && m == b[i][2] {
			return m, true
		}
		if m := b[0][i]; m != Empty && m == b[1][i] && m == b[2][i] {
			return m, true
		}
	}
	if m := b[0][0]; m != Empty && m == b[1][1] && m == b[2][2] {
		return m, true
	}
	if m := b[0][2]; m != Empty && m == b[1][1] && m == b[2][0] {
		return m, true
	}
	return Empty, false
}

// Full reports whether every cell is occupied.
func (b *Board) Full() bool {
	for r := range b {
		for c := range b[r] {
			if b[r][c] == Empty {
				return false
			}
		}
	}
	return true
}

// Normalize replaces zero-value cells with Empty. JSON decoding of an old or
// hand-edited snapshot may leave cells as "".
func (b *Board) Normalize() {
	for r := range b {
		for c := range b[r] {
			if b[r][c] == "" {
				b[r][c] = Empty
			}
		}
	}
}
