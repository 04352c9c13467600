package jt9decode

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// SampleSource delivers audio into a CycleBuffer.
type SampleSource interface {
	// Live sources produce samples continuously and are decoded on UTC
	// cycle boundaries.  Others are decoded once, in full.
	Live() bool

	// Pump writes samples into buf.  A live source returns nil at end of
	// input, or when ctx is cancelled.
	Pump(ctx context.Context, buf *CycleBuffer) error
}

const streamBlockSamples = 4096

// StreamSource reads raw 16 bit signed little endian mono samples at
// SampleRate, e.g. from "rtl_fm -s 12k" or "sox ... -t raw -".
type StreamSource struct {
	Reader io.Reader
	Name   string // For messages, e.g. "stdin".

	Logger *log.Logger
}

func (s *StreamSource) Live() bool {
	return true
}

/*------------------------------------------------------------------
 *
 * Function:	Pump
 *
 * Purpose:	Copy samples from the reader into the buffer until the
 *		input ends.
 *
 * Description:	Blocks in Read while waiting for more audio.  A read can
 *		end half way through a sample so an odd byte is carried
 *		over to the next read.
 *
 *		Cancelling ctx is only noticed between reads.  The caller
 *		can close the underlying reader to get out of a blocked Read.
 *
 *------------------------------------------------------------------*/

func (s *StreamSource) Pump(ctx context.Context, buf *CycleBuffer) error {
	var logger = quietLogger(s.Logger)

	var raw = make([]byte, streamBlockSamples*2)
	var samples = make([]int16, 0, streamBlockSamples)
	var have = 0 // Bytes in raw, possibly one left over from last time.

	for {
		if ctx.Err() != nil {
			return nil
		}

		var n, err = s.Reader.Read(raw[have:])
		have += n

		var whole = have / 2
		if whole > 0 {
			samples = samples[:whole]
			for i := 0; i < whole; i++ {
				samples[i] = int16(binary.LittleEndian.Uint16(raw[2*i:])) //nolint:gosec
			}
			buf.Write(samples)

			if have%2 == 1 {
				raw[0] = raw[have-1]
			}
			have %= 2
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				logger.Info("End of input", "source", s.Name, "samples", buf.Total())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("%w: reading %s: %w", ErrIO, s.Name, err)
		}
	}
}
