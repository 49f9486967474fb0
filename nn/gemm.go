package nn

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// useNaiveGEMM switches matrix multiplication to the reference loop
// implementation. Set through SetNaiveGEMM, normally only for the
// --no-accel path or in tests.
var useNaiveGEMM bool

// SetNaiveGEMM selects between the gonum BLAS kernel and the naive
// reference implementation for all matrix products.
func SetNaiveGEMM(naive bool) {
	useNaiveGEMM = naive
}

// matmul computes c = a(m x k) * b(k x n). c must have length m*n.
func matmul(a []float32, b []float32, c []float32, m, k, n int) {
	if useNaiveGEMM {
		naiveGEMM(a, b, c, m, k, n, false, false)
		return
	}
	ga := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	gb := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	gc := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}
	blas32.Gemm(blas.NoTrans, blas.NoTrans, 1, ga, gb, 0, gc)
}

// matmulTransA computes c = a^T(m x k) * b(k x n) where a is stored as (k x m).
func matmulTransA(a []float32, b []float32, c []float32, m, k, n int) {
	if useNaiveGEMM {
		naiveGEMM(a, b, c, m, k, n, true, false)
		return
	}
	ga := blas32.General{Rows: k, Cols: m, Stride: m, Data: a}
	gb := blas32.General{Rows: k, Cols: n, Stride: n, Data: b}
	gc := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}
	blas32.Gemm(blas.Trans, blas.NoTrans, 1, ga, gb, 0, gc)
}

// matmulTransB computes c = a(m x k) * b^T(k x n) where b is stored as (n x k).
func matmulTransB(a []float32, b []float32, c []float32, m, k, n int) {
	if useNaiveGEMM {
		naiveGEMM(a, b, c, m, k, n, false, true)
		return
	}
	ga := blas32.General{Rows: m, Cols: k, Stride: k, Data: a}
	gb := blas32.General{Rows: n, Cols: k, Stride: k, Data: b}
	gc := blas32.General{Rows: m, Cols: n, Stride: n, Data: c}
	blas32.Gemm(blas.NoTrans, blas.Trans, 1, ga, gb, 0, gc)
}

func naiveGEMM(a, b, c []float32, m, k, n int, transA, transB bool) {
	at := func(i, p int) float32 {
		if transA {
			return a[p*m+i]
		}
		return a[i*k+p]
	}
	bt := func(p, j int) float32 {
		if transB {
			return b[j*k+p]
		}
		return b[p*n+j]
	}
	for i := 0; i < m; i++ {
		for j := 0; j < n; j++ {
			var sum float32
			for p := 0; p < k; p++ {
				sum += at(i, p) * bt(p, j)
			}
			c[i*n+j] = sum
		}
	}
}
