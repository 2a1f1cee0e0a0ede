package agent

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// NumActions is the column count of every Q table: two actions per partner.
const NumActions = 2

// QTable maps (partner index, action) to a learned value.
type QTable struct {
	m *mat.Dense
}

// NewQTable returns a zeroed table with one row per potential partner.
func NewQTable(partners int) (*QTable, error) {
	if partners <= 0 {
		return nil, fmt.Errorf("q table needs at least one partner row, got %d", partners)
	}
	return &QTable{m: mat.NewDense(partners, NumActions, nil)}, nil
}

func (q *QTable) Dims() (rows, cols int) {
	return q.m.Dims()
}

func (q *QTable) At(row, col int) float64 {
	return q.m.At(row, col)
}

func (q *QTable) Set(row, col int, v float64) {
	q.m.Set(row, col, v)
}

// Max is the largest value anywhere in the table.
func (q *QTable) Max() float64 {
	return mat.Max(q.m)
}

// Update applies Q <- Q + lr*(reward + discount*max(Q) - Q) at (row, col). The
// continuation term is the pre-update maximum over the whole table: every proposal
// is a one-shot decision, so there is no next-state row to look at.
func (q *QTable) Update(row, col int, reward, learningRate, discount float64) {
	maxFuture := q.Max()
	current := q.m.At(row, col)
	q.m.Set(row, col, current+learningRate*(reward+discount*maxFuture-current))
}

// Matrix returns a copy of the table for read-only consumers.
func (q *QTable) Matrix() mat.Matrix {
	return mat.DenseCopyOf(q.m)
}

// Values returns the table contents in row-major order.
func (q *QTable) Values() []float64 {
	rows, cols := q.m.Dims()
	out := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		out = append(out, q.m.RawRowView(i)...)
	}
	return out
}
