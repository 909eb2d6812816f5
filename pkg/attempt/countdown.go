package attempt

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// countdown cuenta segundos restantes con un ticker de un segundo. Los
// segundos restantes se calculan desde el inicio, así un tick atrasado nunca
// se salta el cero.
type countdown struct {
	clock  clock.Clock
	total  int
	start  time.Time
	ticker *clock.Ticker
	stop   chan struct{}
	once   sync.Once
}

func startCountdown(clk clock.Clock, total int, onTick func(*countdown, int), onExpire func(*countdown)) *countdown {
	c := &countdown{
		clock:  clk,
		total:  total,
		start:  clk.Now(),
		ticker: clk.Ticker(time.Second),
		stop:   make(chan struct{}),
	}
	go c.run(onTick, onExpire)
	return c
}

func (c *countdown) run(onTick func(*countdown, int), onExpire func(*countdown)) {
	defer c.ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-c.ticker.C:
			left := c.remaining()
			onTick(c, left)
			if left == 0 {
				onExpire(c)
				return
			}
		}
	}
}

func (c *countdown) remaining() int {
	left := c.total - int(c.clock.Since(c.start)/time.Second)
	if left < 0 {
		return 0
	}
	return left
}

// Stop no bloquea; se puede llamar desde los callbacks
func (c *countdown) Stop() {
	c.once.Do(func() { close(c.stop) })
}
