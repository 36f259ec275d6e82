package bridge

import (
	"context"
)

// serve runs both halves of a client session and returns when both are done
func (b *Bridge) serve(ctx context.Context, c *Conn) {
	outDone := make(chan struct{})
	go func() {
		defer close(outDone)
		b.outbound(c)
	}()
	b.inbound(ctx, c)
	<-outDone
}

// outbound drains the client's queue to its socket, in order
func (b *Bridge) outbound(c *Conn) {
	for {
		select {
		case <-c.done:
			return
		case chunk := <-c.out:
			n, err := c.nc.Write(chunk)
			c.sent.Add(uint64(n))
			if err != nil {
				b.reg.Remove(c, DropNone, classifyNetError(c.addr, err))
				return
			}
		}
	}
}

// inbound reads the socket and submits every chunk to the writer
func (b *Bridge) inbound(ctx context.Context, c *Conn) {
	buf := make([]byte, b.cfg.ReadSize)
	for {
		n, err := c.nc.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.received.Add(uint64(n))
			if !b.writer.Submit(ctx, c, chunk) {
				b.reg.Remove(c, DropNone, ErrShutdown)
				return
			}
		}
		if err != nil {
			b.reg.Remove(c, DropNone, classifyNetError(c.addr, err))
			return
		}
	}
}
