package wal

import (
	"sync"
	"time"

	"ridgedb/common"
	"ridgedb/disk"
	"ridgedb/disk/pages"
)

// DefaultBufSize is the default capacity of each of the log manager's two buffers.
const DefaultBufSize = 64 * 1024

// LogManager serializes log records into one of two equal-size buffers and hands the
// full one to a dedicated background goroutine for flushing, so callers appending a
// record never block on I/O directly - only on buffer space or (via
// WaitTillFlushHappens) on durability. One mutex protects every piece of mutable
// state; two condition variables wake waiters for "space freed" and "flush happened"
// separately so a flush doesn't spuriously wake every appender.
type LogManager struct {
	mu         sync.Mutex
	spaceFreed *sync.Cond
	flushed    *sync.Cond

	logBuf     []byte
	logBufSize int
	flushBuf   []byte

	logBufLastLsn pages.LSN

	nextLsn       uint32
	persistentLsn pages.LSN

	disk disk.IDiskManager

	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewLogManager(d disk.IDiskManager) *LogManager {
	return NewLogManagerWithBufSize(d, DefaultBufSize)
}

func NewLogManagerWithBufSize(d disk.IDiskManager, bufSize int) *LogManager {
	lm := &LogManager{
		logBuf:        make([]byte, bufSize),
		flushBuf:      make([]byte, bufSize),
		disk:          d,
		persistentLsn: InvalidLSN,
		logBufLastLsn: InvalidLSN,
	}
	lm.spaceFreed = sync.NewCond(&lm.mu)
	lm.flushed = sync.NewCond(&lm.mu)
	return lm
}

// AppendLogRecord assigns lr the next LSN, serializes it into the active buffer and
// returns the assigned LSN. It blocks while the active buffer has no room, waking up
// once the flush thread swaps buffers and frees space.
func (lm *LogManager) AppendLogRecord(lr *LogRecord) pages.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()

	need := HeaderSize + len(lr.encodePayload())
	for lm.logBufSize+need > len(lm.logBuf) {
		lm.spaceFreed.Wait()
	}

	lm.nextLsn++
	lr.Lsn = pages.LSN(lm.nextLsn)
	encoded := lr.Encode()

	copy(lm.logBuf[lm.logBufSize:], encoded)
	lm.logBufSize += len(encoded)
	lm.logBufLastLsn = lr.Lsn
	return lr.Lsn
}

// WaitTillFlushHappens blocks until persistentLsn has advanced to at least lsn, i.e.
// the record with that LSN is durable on stable storage.
func (lm *LogManager) WaitTillFlushHappens(lsn pages.LSN) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for lm.persistentLsn < lsn {
		lm.flushed.Wait()
	}
}

// GetPersistentLSN returns the highest LSN known to be durable.
func (lm *LogManager) GetPersistentLSN() pages.LSN {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.persistentLsn
}

// RunFlushThread starts the single background goroutine that periodically (at most
// every common.LogTimeout) swaps the active buffer out and writes it to disk. Safe to
// call once; a second call is a no-op.
func (lm *LogManager) RunFlushThread() {
	lm.mu.Lock()
	if lm.running {
		lm.mu.Unlock()
		return
	}
	lm.running = true
	lm.stopCh = make(chan struct{})
	lm.doneCh = make(chan struct{})
	lm.mu.Unlock()

	go lm.flushLoop()
}

func (lm *LogManager) flushLoop() {
	defer close(lm.doneCh)
	ticker := time.NewTicker(common.LogTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-lm.stopCh:
			lm.flushOnce()
			return
		case <-ticker.C:
			lm.flushOnce()
		}
	}
}

// flushOnce swaps the active buffer for the empty flush buffer, writes the swapped-out
// bytes to disk and advances persistentLsn, all under the manager's mutex except for
// the actual disk write (so appenders aren't blocked on I/O).
func (lm *LogManager) flushOnce() {
	lm.mu.Lock()
	if lm.logBufSize == 0 {
		lm.mu.Unlock()
		return
	}

	lm.logBuf, lm.flushBuf = lm.flushBuf, lm.logBuf
	flushSize := lm.logBufSize
	flushLsn := lm.logBufLastLsn
	lm.logBufSize = 0
	lm.spaceFreed.Broadcast()
	lm.mu.Unlock()

	common.PanicIfErr(lm.disk.WriteLog(lm.flushBuf[:flushSize]))

	lm.mu.Lock()
	lm.persistentLsn = flushLsn
	lm.flushed.Broadcast()
	lm.mu.Unlock()
}

// StopFlushThread flushes whatever remains buffered, stops the background goroutine
// and waits for it to exit.
func (lm *LogManager) StopFlushThread() {
	lm.mu.Lock()
	if !lm.running {
		lm.mu.Unlock()
		return
	}
	lm.running = false
	stopCh, doneCh := lm.stopCh, lm.doneCh
	lm.mu.Unlock()

	close(stopCh)
	<-doneCh
}
