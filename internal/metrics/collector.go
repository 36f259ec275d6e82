package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/allbin/sergw/internal/bridge"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const namespace = "sergw"

// LiveState is the part of the bridge whose current state is exported
// directly instead of being rebuilt from events.
type LiveState interface {
	Clients() []bridge.ClientInfo
	LinkState() bridge.LinkState
}

// Collector keeps Prometheus series in step with the bridge. Counters follow
// the event stream; gauges read live state at scrape time, so a missed event
// cannot leave them wrong.
type Collector struct {
	registry       *prometheus.Registry
	serialToClient prometheus.Counter
	clientToSerial prometheus.Counter
	clients        prometheus.GaugeFunc
	drops          *prometheus.CounterVec
	linkState      prometheus.GaugeFunc
	linkChanges    prometheus.Counter
	writeRetries   prometheus.Counter
	eventsMissed   prometheus.Gauge

	tp *Throughput
}

func NewCollector(live LiveState) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		serialToClient: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "serial_to_client_bytes_total",
			Help:      "Bytes read from the serial device and broadcast to clients.",
		}),
		clientToSerial: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_to_serial_bytes_total",
			Help:      "Bytes written to the serial device on behalf of clients.",
		}),
		clients: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clients_connected",
			Help:      "TCP clients currently registered.",
		}, func() float64 { return float64(len(live.Clients())) }),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "client_drops_total",
			Help:      "Clients evicted by the bridge.",
		}, []string{"reason"}),
		linkState: prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "link_state",
			Help:      "Serial link state: 0 disconnected, 1 opening, 2 connected, 3 failed.",
		}, func() float64 { return float64(live.LinkState().Status) }),
		linkChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_state_changes_total",
			Help:      "Serial link state transitions.",
		}),
		writeRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_retries_total",
			Help:      "Client chunks retried after a serial write failure.",
		}),
		eventsMissed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "collector_events_missed",
			Help:      "Bridge events this collector could not keep up with.",
		}),
		tp: NewThroughput(DefaultTau),
	}
	c.registry.MustRegister(
		c.serialToClient,
		c.clientToSerial,
		c.clients,
		c.drops,
		c.linkState,
		c.linkChanges,
		c.writeRetries,
		c.eventsMissed,
	)
	return c
}

// Registry exposes the collector's private registry
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Throughput returns the byte counters fed by Observe
func (c *Collector) Throughput() *Throughput { return c.tp }

// Observe applies one event
func (c *Collector) Observe(ev bridge.Event) {
	switch ev.Kind {
	case bridge.LinkStateChanged:
		c.linkChanges.Inc()
	case bridge.ClientDropped:
		c.drops.WithLabelValues(ev.Reason.String()).Inc()
	case bridge.BytesSerialToClient:
		c.serialToClient.Add(float64(ev.N))
		c.tp.AddOut(ev.N)
	case bridge.BytesClientToSerial:
		c.clientToSerial.Add(float64(ev.N))
		c.tp.AddIn(ev.N)
	case bridge.WriteRetried:
		c.writeRetries.Inc()
	}
}

// Run consumes sub until ctx is done or the subscription closes
func (c *Collector) Run(ctx context.Context, sub *bridge.Subscription) {
	defer sub.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			c.Observe(ev)
			c.eventsMissed.Set(float64(sub.Dropped()))
		}
	}
}

// Handler serves the registry in the Prometheus text format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (c *Collector) Serve(ctx context.Context, addr string, log *logrus.Entry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	stop := context.AfterFunc(ctx, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	})
	defer stop()

	log.WithField("addr", addr).Info("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
