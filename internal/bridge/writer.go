package bridge

import (
	"context"

	"github.com/sirupsen/logrus"
)

// PendingWrite is a chunk on its way from a client to the device. Seq is
// the order in which the writer took it off the shared queue.
type PendingWrite struct {
	Seq      uint64
	ClientID uint64
	Data     []byte
}

// serialWriter is the part of Link the writer needs
type serialWriter interface {
	Write(ctx context.Context, p []byte) (int, error)
}

// Writer is the single consumer of client data. Chunks reach the device in
// queue order; a chunk that fails mid-write is finished after reconnect.
type Writer struct {
	dev   serialWriter
	queue chan PendingWrite
	seq   uint64
	bus   *Bus
	log   *logrus.Entry
}

func NewWriter(dev serialWriter, capacity int, bus *Bus, log *logrus.Entry) *Writer {
	return &Writer{
		dev:   dev,
		queue: make(chan PendingWrite, capacity),
		bus:   bus,
		log:   log,
	}
}

// Submit queues data from c, blocking while the queue is full. It returns
// false if c was torn down or ctx ended first.
func (w *Writer) Submit(ctx context.Context, c *Conn, data []byte) bool {
	select {
	case w.queue <- PendingWrite{ClientID: c.id, Data: data}:
		return true
	case <-c.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Pending is the number of chunks waiting for the device
func (w *Writer) Pending() int { return len(w.queue) }

// Run drains the queue until ctx is done
func (w *Writer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pw := <-w.queue:
			w.seq++
			pw.Seq = w.seq
			w.deliver(ctx, pw)
		}
	}
}

// deliver writes pw in full. After a failure only the unwritten tail is
// retried, so the device never sees a byte twice.
func (w *Writer) deliver(ctx context.Context, pw PendingWrite) {
	rest := pw.Data
	for len(rest) > 0 {
		n, err := w.dev.Write(ctx, rest)
		rest = rest[n:]
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return
		}
		w.log.WithError(err).WithFields(logrus.Fields{
			"client_id": pw.ClientID,
			"seq":       pw.Seq,
			"pending":   len(rest),
		}).Warn("serial write failed, holding chunk until reconnect")
		w.bus.Publish(Event{Kind: WriteRetried, ClientID: pw.ClientID, Seq: pw.Seq, N: len(rest), Err: err})
	}
	w.bus.Publish(Event{Kind: BytesClientToSerial, ClientID: pw.ClientID, Seq: pw.Seq, N: len(pw.Data), Data: pw.Data})
}
