package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Live audio straight from a sound card.
 *
 * Description:	PortAudio is asked for SampleRate mono 16 bit directly,
 *		most hosts will resample for us.  Blocking reads, one
 *		buffer of about 100 ms at a time.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gordonklaus/portaudio"
)

const soundcardFramesPerBuffer = SampleRate / 10

type SoundcardSource struct {
	Logger *log.Logger
}

func (s *SoundcardSource) Live() bool {
	return true
}

func (s *SoundcardSource) Pump(ctx context.Context, buf *CycleBuffer) error {
	var logger = quietLogger(s.Logger)

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("%w: initialise audio: %w", ErrIO, err)
	}
	defer portaudio.Terminate() //nolint:errcheck

	var frames = make([]int16, soundcardFramesPerBuffer)

	var stream, openErr = portaudio.OpenDefaultStream(1, 0, float64(SampleRate), len(frames), &frames)
	if openErr != nil {
		return fmt.Errorf("%w: open default input device: %w", ErrIO, openErr)
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return fmt.Errorf("%w: start audio input: %w", ErrIO, err)
	}
	defer stream.Stop() //nolint:errcheck

	logger.Info("Capturing from default audio input", "rate", SampleRate)

	for ctx.Err() == nil {
		if err := stream.Read(); err != nil {
			// Overflow just means we were late, the samples we got are fine.
			if err != portaudio.InputOverflowed { //nolint:errorlint
				return fmt.Errorf("%w: audio input: %w", ErrIO, err)
			}
			logger.Warn("Audio input overflowed")
		}

		buf.Write(frames)
	}

	return nil
}
