package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/wal"

	"github.com/deffrian/lattice-agreement/configs"
)

// LogManager journals benchmark results to a write-ahead log so a run's
// outcomes survive the process. Disabled unless configs.UseWAL is set;
// the protocols themselves keep no persistent state.
type LogManager struct {
	latch  sync.Mutex
	lsn    uint64
	logs   *wal.Log
	buffer *wal.Batch
	ctx    context.Context
	cancel context.CancelFunc
}

func NewLogManager(name string) *LogManager {
	res := &LogManager{}
	if !configs.UseWAL {
		return res
	}
	log, err := wal.Open(fmt.Sprintf("%s/%s", configs.WALLocation, name), nil)
	if err != nil {
		panic(err)
	}
	res.logs = log
	res.lsn, err = log.LastIndex()
	if err != nil {
		panic(err)
	}
	res.buffer = &wal.Batch{}
	res.ctx, res.cancel = context.WithCancel(context.Background())
	go res.localBatchSyncLogger(res.ctx, res.lsn)
	return res
}

func (c *LogManager) WriteResult(res Result) {
	c.write(res)
}

func (c *LogManager) WriteSequenceResult(res SequenceResult) {
	c.write(res)
}

func (c *LogManager) write(entry interface{}) {
	if !configs.UseWAL {
		return
	}
	c.latch.Lock()
	defer c.latch.Unlock()
	e, err := json.Marshal(entry)
	configs.CheckError(err)
	c.lsn++
	c.buffer.Write(c.lsn, e)
}

func (c *LogManager) localBatchSyncLogger(ctx context.Context, initLSN uint64) {
	lastLSN := initLSN
	for {
		select {
		case <-time.After(configs.LogBatchInterval):
			c.latch.Lock()
			if c.lsn == lastLSN || c.buffer == nil {
				c.latch.Unlock()
			} else {
				err := c.logs.WriteBatch(c.buffer)
				if err != nil {
					panic(err)
				}
				c.buffer.Clear()
				lastLSN = c.lsn
				c.latch.Unlock()
			}
		case <-ctx.Done():
			return
		}
	}
}

func (c *LogManager) Close() {
	if !configs.UseWAL {
		return
	}
	c.cancel()
	c.latch.Lock()
	defer c.latch.Unlock()
	if c.lsn > 0 && c.buffer != nil {
		if err := c.logs.WriteBatch(c.buffer); err != nil {
			configs.Warn(false, "final journal flush failed: "+err.Error())
		}
		c.buffer.Clear()
	}
	configs.CheckError(c.logs.Close())
}
