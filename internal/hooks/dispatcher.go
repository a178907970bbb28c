package hooks

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"
)

const (
	defaultWorkers = 4
	channelBuffer  = 64
)

// Delivery is one pending webhook POST.
type Delivery struct {
	Event string
	URL   string
	Body  []byte
}

// Dispatcher routes deliveries to a fixed set of workers using consistent
// hashing on the callback URL, so deliveries to the same endpoint stay in
// order while distinct endpoints proceed concurrently.
type Dispatcher struct {
	workers []chan Delivery
	handle  func(context.Context, Delivery)
	log     zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, handle func(context.Context, Delivery), log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan Delivery, numWorkers),
		handle:  handle,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan Delivery, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for _, ch := range d.workers {
		go d.runWorker(ctx, ch)
	}
}

// Enqueue hands a delivery to the worker responsible for its URL. When that
// worker's queue is full the delivery is dropped: hooks are best-effort and
// a stalled endpoint must not block the caller.
func (d *Dispatcher) Enqueue(delivery Delivery) {
	select {
	case d.workers[d.shardIndex(delivery.URL)] <- delivery:
	default:
		d.log.Warn().
			Str("event", delivery.Event).
			Str("url", delivery.URL).
			Msg("hook delivery dropped, worker queue full")
	}
}

// shardIndex maps a URL deterministically to a worker index.
func (d *Dispatcher) shardIndex(url string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return int(h.Sum32()) % len(d.workers)
}

func (d *Dispatcher) runWorker(ctx context.Context, ch <-chan Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case delivery, ok := <-ch:
			if !ok {
				return
			}
			d.handle(ctx, delivery)
		}
	}
}
