package agent

const ErrorLogPrefix = "!! "

type limitingWaitGroup struct {
	limit int
	c     chan bool
}

func (l *limitingWaitGroup) Take() {
	<-l.c
}

func (l *limitingWaitGroup) Release() {
	l.c <- true
}

func (l *limitingWaitGroup) Join() {
	for i := 0; i < l.limit; i++ {
		l.Take() // take all capacity to ensure all have joined
	}
}

// LimitingWaitGroup restricts concurrent work and waits for completion.
type LimitingWaitGroup interface {
	// Take blocks until the wait group has capacity.
	Take()
	// Release should be invoked (typically in defer) to indicate the activity following Take() has completed.
	Release()
	// Join will block until all activities have completed. This implementation expects that once Join() is invoked, Take() will NOT be invoked again.
	Join()
}

// NewLimitingWaitGroup creates a LimitingWaitGroup with the given limit.
func NewLimitingWaitGroup(concurrencyLimit int) LimitingWaitGroup {
	c := make(chan bool, concurrencyLimit)
	for i := 0; i < concurrencyLimit; i++ {
		c <- true
	}
	return &limitingWaitGroup{
		limit: concurrencyLimit,
		c:     c,
	}
}
