package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	The one piece of memory we share with a process we do
 *		not control.
 *
 * Description:	jt9 reads and writes the same bytes whenever it likes and
 *		knows nothing of our mutex.  What makes that workable:
 *
 *		  - jt9 only ever changes ipc[1], from 1 back to 0, when it
 *		    has finished a decode, and only reads d2 and params
 *		    after it has seen ipc[1] == 1.
 *
 *		  - We fill in d2 and params first and store ipc last, with
 *		    atomics, so by the time jt9 sees the start request the
 *		    rest is in place.
 *
 *		The mutex keeps our own goroutines from interleaving their
 *		read-modify-write sequences.  It is never held across a
 *		sleep.
 *
 *		The command slot only moves 0 -> 1 (us), 1 -> 0 (jt9),
 *		anything -> 999 (us, final).  After 999 we refuse to touch
 *		the control slots again.
 *
 *		Once closed the memory is gone.  Reads then give zero
 *		values and writes do nothing.
 *
 *------------------------------------------------------------------*/

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

type ControlBlock struct {
	mu         sync.Mutex
	region     Region
	dd         *DecData
	lastKin    int  // Samples left in d2 by the previous decode.
	terminated bool // 999 has been sent.

	onCommand func(cmd int32) // Test hook, sees every command we store.
}

// NewControlBlock overlays the jt9 structure on a region, which must be
// exactly DecDataSize bytes.
func NewControlBlock(r Region) (*ControlBlock, error) {
	var b = r.Bytes()
	if len(b) != DecDataSize {
		return nil, fmt.Errorf("%w: region %q is %d bytes, jt9 expects %d", ErrProtocol, r.Key(), len(b), DecDataSize)
	}

	var cb = &ControlBlock{ //nolint:exhaustruct
		region: r,
		dd:     (*DecData)(unsafe.Pointer(&b[0])),
	}

	return cb, nil
}

// Key the engine should attach with.
func (cb *ControlBlock) Key() string {
	return cb.region.Key()
}

// Reset zeroes the whole region, as memset does before jt9 is started.
func (cb *ControlBlock) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return
	}

	clear(cb.region.Bytes())
	cb.lastKin = 0
	cb.terminated = false
}

// UpdateParams runs fn with the lock held.  fn must not block.
func (cb *ControlBlock) UpdateParams(fn func(p *DecParams)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return
	}

	fn(&cb.dd.Params)
}

// Params returns a copy of the current parameters.
func (cb *ControlBlock) Params() DecParams {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return DecParams{}
	}

	return cb.dd.Params
}

// LoadWindow copies samples into d2, clearing anything left over from a
// longer previous window, and returns how many were stored.
func (cb *ControlBlock) LoadWindow(samples []int16) int {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return 0
	}

	var n = copy(cb.dd.D2[:], samples)
	if cb.lastKin > n {
		clear(cb.dd.D2[n:cb.lastKin])
	}
	cb.lastKin = n

	return n
}

// Window returns a copy of the first n samples of d2.
func (cb *ControlBlock) Window(n int) []int16 {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return nil
	}

	n = min(n, len(cb.dd.D2))

	var w = make([]int16, n)
	copy(w, cb.dd.D2[:n])

	return w
}

/*------------------------------------------------------------------
 *
 * Function:	Start
 *
 * Purpose:	Ask jt9 to decode whatever is in d2.
 *
 * Inputs:	symbols	- ipc[0], depends on the mode.
 *
 * Errors:	ErrProtocol after Terminate.
 *		ErrEngineTimeout if jt9 never finished the previous request,
 *		in which case this cycle should be skipped.
 *
 *------------------------------------------------------------------*/

func (cb *ControlBlock) Start(symbols int32) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return fmt.Errorf("%w: decode requested after close", ErrProtocol)
	}

	if cb.terminated {
		return fmt.Errorf("%w: decode requested after terminate", ErrProtocol)
	}

	if atomic.LoadInt32(&cb.dd.Ipc[IPC_COMMAND]) == CMD_START {
		return fmt.Errorf("%w: previous decode still in progress", ErrEngineTimeout)
	}

	atomic.StoreInt32(&cb.dd.Ipc[IPC_SYMBOLS], symbols)
	atomic.StoreInt32(&cb.dd.Ipc[IPC_ACK], ACK_PENDING)
	cb.storeCommand(CMD_START)

	return nil
}

// Done reports whether jt9 has put the command slot back to idle.
func (cb *ControlBlock) Done() bool {
	return cb.Command() == CMD_IDLE
}

// Command is the current value of ipc[1].  After Close it stays at
// CMD_TERMINATE.
func (cb *ControlBlock) Command() int32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return CMD_TERMINATE
	}

	return atomic.LoadInt32(&cb.dd.Ipc[IPC_COMMAND])
}

// Acknowledge tells jt9 we have collected the results.  After Terminate
// there is nobody left to tell and it does nothing.
func (cb *ControlBlock) Acknowledge() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.terminated || cb.dd == nil {
		return
	}

	atomic.StoreInt32(&cb.dd.Ipc[IPC_ACK], ACK_DONE)
}

// Terminate asks jt9 to exit.  Calling it again does nothing.
func (cb *ControlBlock) Terminate() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.terminated || cb.dd == nil {
		return
	}

	cb.terminated = true
	cb.storeCommand(CMD_TERMINATE)
}

// Ipc returns a copy of the control vector.
func (cb *ControlBlock) Ipc() [3]int32 {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return [3]int32{}
	}

	return [3]int32{
		atomic.LoadInt32(&cb.dd.Ipc[0]),
		atomic.LoadInt32(&cb.dd.Ipc[1]),
		atomic.LoadInt32(&cb.dd.Ipc[2]),
	}
}

// Close releases the region.  Calling it again does nothing.
func (cb *ControlBlock) Close() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.dd == nil {
		return nil
	}

	cb.dd = nil

	return cb.region.Close()
}

func (cb *ControlBlock) storeCommand(cmd int32) {
	atomic.StoreInt32(&cb.dd.Ipc[IPC_COMMAND], cmd)

	if cb.onCommand != nil {
		cb.onCommand(cmd)
	}
}
