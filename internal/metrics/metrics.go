package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/standly/go-acore/internal/logging"
)

// Prometheus counters
var (
	ReactorPolls = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reactor_polls_total",
		Help: "Total epoll wait iterations performed by the reactor poll loop.",
	})
	ReactorEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reactor_events_total",
		Help: "Total readiness events delivered by the epoll wait.",
	})
	ReactorWakeups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reactor_wakeups_total",
		Help: "Total waiters completed with success, by direction.",
	}, []string{"direction"})
	ReactorSocketErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reactor_socket_errors_total",
		Help: "Total sockets detached after reporting an error edge.",
	})
	ReactorActiveSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reactor_active_sockets",
		Help: "Current number of sockets with at least one registered waiter.",
	})
	DispatcherPublishes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_publishes_total",
		Help: "Total values published through dispatchers.",
	})
	DispatcherDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_dropped_total",
		Help: "Total copies dropped because the subscriber queue was stopped.",
	})
	DispatcherSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_subscribers",
		Help: "Current number of active subscribers.",
	})
	DispatcherFanout = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_fanout",
		Help: "Number of subscribers targeted in the most recent publish.",
	})
	SubscriberQueueDepthMax = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subscriber_queue_depth_max",
		Help: "Observed max queued elements among subscribers at last publish.",
	})
	SubscriberQueueDepthAvg = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "subscriber_queue_depth_avg",
		Help: "Approximate average queued elements per subscriber at last publish.",
	})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrPoll     = "reactor_poll"
	ErrEpollCtl = "epoll_ctl"
	ErrShutdown = "reactor_shutdown"
)

// Waiter direction labels.
const (
	DirRead  = "read"
	DirWrite = "write"
)

// Local atomic mirrors for Snap (log-based fallback when Prometheus is not
// scraped).
var (
	localPolls     uint64
	localEvents    uint64
	localWakeups   uint64
	localSockErrs  uint64
	localSockets   uint64
	localPublishes uint64
	localDrops     uint64
	localSubs      uint64
	localFanout    uint64
	localErrors    uint64
	localQDMax     uint64
	localQDAvg     uint64
)

// Snapshot is a point-in-time copy of the local counters.
type Snapshot struct {
	Polls         uint64
	Events        uint64
	Wakeups       uint64
	SocketErrors  uint64
	ActiveSockets uint64
	Publishes     uint64
	Drops         uint64
	Subscribers   uint64
	Fanout        uint64
	Errors        uint64 // sum across error labels
	QueueDepthMax uint64
	QueueDepthAvg uint64
}

func Snap() Snapshot {
	return Snapshot{
		Polls:         atomic.LoadUint64(&localPolls),
		Events:        atomic.LoadUint64(&localEvents),
		Wakeups:       atomic.LoadUint64(&localWakeups),
		SocketErrors:  atomic.LoadUint64(&localSockErrs),
		ActiveSockets: atomic.LoadUint64(&localSockets),
		Publishes:     atomic.LoadUint64(&localPublishes),
		Drops:         atomic.LoadUint64(&localDrops),
		Subscribers:   atomic.LoadUint64(&localSubs),
		Fanout:        atomic.LoadUint64(&localFanout),
		Errors:        atomic.LoadUint64(&localErrors),
		QueueDepthMax: atomic.LoadUint64(&localQDMax),
		QueueDepthAvg: atomic.LoadUint64(&localQDAvg),
	}
}

// Wrapper helpers to keep call sites simple.

func IncReactorPoll() {
	ReactorPolls.Inc()
	atomic.AddUint64(&localPolls, 1)
}

func AddReactorEvents(n int) {
	ReactorEvents.Add(float64(n))
	atomic.AddUint64(&localEvents, uint64(n))
}

func IncReactorWakeup(direction string) {
	ReactorWakeups.WithLabelValues(direction).Inc()
	atomic.AddUint64(&localWakeups, 1)
}

func IncReactorSocketError() {
	ReactorSocketErrors.Inc()
	atomic.AddUint64(&localSockErrs, 1)
}

func SetReactorSockets(n int) {
	ReactorActiveSockets.Set(float64(n))
	atomic.StoreUint64(&localSockets, uint64(n))
}

func IncDispatcherPublish() {
	DispatcherPublishes.Inc()
	atomic.AddUint64(&localPublishes, 1)
}

func IncDispatcherDrop() {
	DispatcherDrops.Inc()
	atomic.AddUint64(&localDrops, 1)
}

func SetDispatcherSubscribers(n int) {
	DispatcherSubscribers.Set(float64(n))
	atomic.StoreUint64(&localSubs, uint64(n))
}

func SetDispatcherFanout(n int) {
	DispatcherFanout.Set(float64(n))
	atomic.StoreUint64(&localFanout, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// SetQueueDepth records a snapshot of max and avg subscriber queue depth.
func SetQueueDepth(max, avg int) {
	SubscriberQueueDepthMax.Set(float64(max))
	SubscriberQueueDepthAvg.Set(float64(avg))
	atomic.StoreUint64(&localQDMax, uint64(max))
	atomic.StoreUint64(&localQDAvg, uint64(avg))
}

// SetReady installs the readiness probe callback served at /ready.
func SetReady(fn func() bool) {
	readinessMu.Lock()
	readinessFn = fn
	readinessMu.Unlock()
}

// IsReady reports the current readiness; defaults to true with no probe.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}

// StartHTTP serves Prometheus metrics at /metrics on the given address,
// with /ready and /health probes alongside.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http", "err", err)
		}
	}()
	return srv
}
