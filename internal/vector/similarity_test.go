package vector

import "testing"

func TestMatVec(t *testing.T) {
	matrix := []float32{
		1, 0,
		0, 1,
		-1, 0,
	}
	out := make([]float64, 3)
	if err := MatVec(matrix, 2, []float32{1, 0}, out); err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 0, -1}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("out[%d] = %f, want %f", i, out[i], want[i])
		}
	}
}

func TestMatVec_MatchesRowDot(t *testing.T) {
	rows := [][]float32{{0.1, 0.2, 0.3}, {-0.5, 0.25, 0.125}}
	query := []float32{0.3, -0.7, 0.2}
	matrix := append(append([]float32(nil), rows[0]...), rows[1]...)
	out := make([]float64, 2)
	if err := MatVec(matrix, 3, query, out); err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		var want float64
		for j := range row {
			want += float64(row[j]) * float64(query[j])
		}
		if out[i] != want {
			t.Errorf("row %d: MatVec=%v, want %v", i, out[i], want)
		}
	}
}

func TestMatVec_Errors(t *testing.T) {
	tests := []struct {
		name   string
		matrix []float32
		dim    int
		query  []float32
		out    int
	}{
		{"zero dim", []float32{1}, 0, []float32{}, 1},
		{"query mismatch", []float32{1, 0}, 2, []float32{1}, 1},
		{"ragged matrix", []float32{1, 0, 1}, 2, []float32{1, 0}, 1},
		{"out mismatch", []float32{1, 0}, 2, []float32{1, 0}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := MatVec(tt.matrix, tt.dim, tt.query, make([]float64, tt.out)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
