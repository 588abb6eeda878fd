package device

// SoftQueue is the default pure-Go command queue: every Enqueue runs its
// work immediately and Drain is a no-op, since there is no overlapped
// device execution to wait for. This is the backend selected whenever
// no OpenCL accelerator is linked in (build without the opencl tag) or
// when an operand is not device-resident (spec.md §4.3 step 1).
type SoftQueue struct{}

// NewSoftQueue returns the software device's command queue.
func NewSoftQueue() *SoftQueue { return &SoftQueue{} }

func (q *SoftQueue) Backend() string { return "__cpu" }

func (q *SoftQueue) Enqueue(work func() error) error { return work() }

func (q *SoftQueue) Drain() error { return nil }
