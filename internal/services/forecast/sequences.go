package forecast

// Frame slides a window of size w over matrix with stride 1. X[i] holds rows i..i+w-1 and
// Y[i] the price column of row i+w, giving max(0, len(matrix)-w) pairs. Windows are copies.
func Frame(matrix [][]float64, w int) ([][][]float64, []float64) {
	n := len(matrix) - w
	if w < 1 || n <= 0 {
		return nil, nil
	}
	X := make([][][]float64, n)
	Y := make([]float64, n)
	for i := 0; i < n; i++ {
		X[i] = copyRows(matrix[i : i+w])
		Y[i] = matrix[i+w][0]
	}
	return X, Y
}

func copyRows(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		out[i] = append([]float64(nil), r...)
	}
	return out
}
