package forecast

import (
	"gonum.org/v1/gonum/floats"
)

// Scaler holds per-column min/max from one training run. Predictions from that run must be
// inverted with the same Scaler.
type Scaler struct {
	Mins []float64
	Maxs []float64
}

// Normalize min-max scales every column to [0,1]. A column with zero range maps to 0.
func Normalize(rows [][]float64) (*Scaler, [][]float64) {
	if len(rows) == 0 {
		return &Scaler{}, nil
	}
	width := len(rows[0])
	s := &Scaler{Mins: make([]float64, width), Maxs: make([]float64, width)}

	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		s.Mins[j] = floats.Min(col)
		s.Maxs[j] = floats.Max(col)
	}

	scaled := make([][]float64, len(rows))
	for i, r := range rows {
		out := make([]float64, width)
		for j, v := range r {
			rng := s.Maxs[j] - s.Mins[j]
			if rng == 0 {
				continue
			}
			out[j] = (v - s.Mins[j]) / rng
		}
		scaled[i] = out
	}
	return s, scaled
}

// DenormalizePrice maps a scaled price (column 0) back to price units.
func (s *Scaler) DenormalizePrice(v float64) float64 {
	return v*(s.Maxs[0]-s.Mins[0]) + s.Mins[0]
}
