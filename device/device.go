// Package device detects CPU capabilities and selects the math backend
// used for matrix multiplication.
package device

import (
	"fmt"

	"github.com/klauspost/cpuid/v2"

	"github.com/tsawler/go-ddp/nn"
)

// Info describes the host CPU as far as training cares about it.
type Info struct {
	Brand         string
	PhysicalCores int
	LogicalCores  int
	AVX2          bool
	AVX512        bool
	FMA           bool
	Accelerated   bool // BLAS-backed GEMM in use
}

// Detect inspects the host CPU.
func Detect() Info {
	return Info{
		Brand:         cpuid.CPU.BrandName,
		PhysicalCores: cpuid.CPU.PhysicalCores,
		LogicalCores:  cpuid.CPU.LogicalCores,
		AVX2:          cpuid.CPU.Has(cpuid.AVX2),
		AVX512:        cpuid.CPU.Has(cpuid.AVX512F),
		FMA:           cpuid.CPU.Has(cpuid.FMA3),
	}
}

// Configure selects the GEMM backend and returns the resulting device
// description. With noAccel set, matrix products run on the naive
// reference loops instead of BLAS.
func Configure(noAccel bool) Info {
	nn.SetNaiveGEMM(noAccel)
	info := Detect()
	info.Accelerated = !noAccel
	return info
}

func (i Info) String() string {
	backend := "blas"
	if !i.Accelerated {
		backend = "naive"
	}
	return fmt.Sprintf("%s (%d cores, avx2=%v avx512=%v fma=%v) backend=%s",
		i.Brand, i.LogicalCores, i.AVX2, i.AVX512, i.FMA, backend)
}
