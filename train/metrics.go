package train

import "time"

// Average accumulates a running mean.
type Average struct {
	sum   float64
	count int
}

func (a *Average) Add(v float64, n int) {
	a.sum += v * float64(n)
	a.count += n
}

func (a *Average) Value() float64 {
	if a.count == 0 {
		return 0
	}
	return a.sum / float64(a.count)
}

func (a *Average) Count() int {
	return a.count
}

// Throughput measures examples per second over an interval.
type Throughput struct {
	start    time.Time
	examples int
}

func NewThroughput() *Throughput {
	return &Throughput{start: time.Now()}
}

func (t *Throughput) Add(n int) {
	t.examples += n
}

func (t *Throughput) PerSecond() float64 {
	elapsed := time.Since(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return float64(t.examples) / elapsed
}
