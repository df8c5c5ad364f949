package task

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type loop struct {
	function    func()
	interval    time.Duration
	metricName  string
	stopChannel chan struct{}
}

// BackgroundTaskManager runs registered functions on fixed intervals until
// stopped. It is not threadsafe, it should only be accessed from a single
// thread. Loop latencies are observed into histograms on the supplied
// registerer, named <metricsPrefix><metricName>_latency_seconds.
type BackgroundTaskManager struct {
	loops         []*loop
	metricsPrefix string
	registerer    prometheus.Registerer
	wg            *sync.WaitGroup
	stopOnce      sync.Once
}

func NewBackgroundTaskManager(metricsPrefix string, registerer prometheus.Registerer) *BackgroundTaskManager {
	return &BackgroundTaskManager{
		loops:         []*loop{},
		metricsPrefix: metricsPrefix,
		registerer:    registerer,
		wg:            &sync.WaitGroup{},
	}
}

// Register runs backgroundTask once immediately and then every interval until
// StopAll is called.
func (m *BackgroundTaskManager) Register(backgroundTask func(), interval time.Duration, metricName string) {
	loop := &loop{
		function:    backgroundTask,
		interval:    interval,
		metricName:  metricName,
		stopChannel: make(chan struct{}),
	}
	m.startLoop(loop)
	m.loops = append(m.loops, loop)
}

// StopAll stops every loop and waits up to timeout for in-flight iterations
// to finish. Returns true if the wait timed out. Safe to call more than once.
func (m *BackgroundTaskManager) StopAll(timeout time.Duration) bool {
	m.stopOnce.Do(func() {
		for _, loop := range m.loops {
			close(loop.stopChannel)
		}
	})
	return m.waitForShutdownCompletion(timeout)
}

func (m *BackgroundTaskManager) startLoop(loop *loop) {
	durationHistogram := promauto.With(m.registerer).NewHistogram(
		prometheus.HistogramOpts{
			Name:    m.metricsPrefix + loop.metricName + "_latency_seconds",
			Help:    "Background loop " + loop.metricName + " latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
		})

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			start := time.Now()
			loop.function()
			durationHistogram.Observe(time.Since(start).Seconds())

			select {
			case <-time.After(loop.interval):
			case <-loop.stopChannel:
				return
			}
		}
	}()
}

func (m *BackgroundTaskManager) waitForShutdownCompletion(timeout time.Duration) bool {
	c := make(chan struct{})
	go func() {
		defer close(c)
		m.wg.Wait()
	}()
	select {
	case <-c:
		return false
	case <-time.After(timeout):
		return true
	}
}
