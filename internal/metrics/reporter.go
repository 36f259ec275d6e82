package metrics

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"
)

// ReportInterval is how often Reporter logs throughput
const ReportInterval = 5 * time.Second

// Reporter periodically logs smoothed throughput
type Reporter struct {
	tp       *Throughput
	log      *logrus.Entry
	interval time.Duration
}

func NewReporter(tp *Throughput, log *logrus.Entry) *Reporter {
	return &Reporter{tp: tp, log: log, interval: ReportInterval}
}

// Run logs one line per interval until ctx is done
func (r *Reporter) Run(ctx context.Context) {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			in, out := r.tp.Sample(now)
			r.log.WithFields(logrus.Fields{
				"inbound_bps":  uint64(in),
				"outbound_bps": uint64(out),
			}).Infof("throughput in %s out %s", FormatRate(in), FormatRate(out))
		}
	}
}

// FormatRate renders bytes per second for humans, e.g. "1.2 kB/s"
func FormatRate(bps float64) string {
	return humanize.Bytes(uint64(bps)) + "/s"
}
