package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Get audio samples from a .WAV file.
 *
 * Description:	Only as much of RIFF as is needed to find the samples.
 *
 *		"RIFF" <size> "WAVE" then any number of chunks, each
 *		<4 byte id> <4 byte little endian size> <data, padded to
 *		even length>.  We need "fmt " and then "data".  Anything
 *		else, typically "LIST" metadata, is skipped.
 *
 *		Stereo is reduced to mono by keeping one channel, not by
 *		averaging.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

const (
	WAVE_FORMAT_PCM        = 1
	WAVE_FORMAT_EXTENSIBLE = 0xFFFE
)

type wavHeader struct {
	Riff     [4]byte // "RIFF"
	FileSize uint32  // file length - 8
	Wave     [4]byte // "WAVE"
}

type wavChunk struct {
	ID       [4]byte
	DataSize uint32
}

type wavFormat struct {
	FormatTag      uint16 // 1 for PCM.
	Channels       uint16 // 1 for mono, 2 for stereo.
	SamplesPerSec  uint32 // sampling freq, Hz.
	AvgBytesPerSec uint32 // = BlockAlign * SamplesPerSec.
	BlockAlign     uint16 // = BitsPerSample / 8 * Channels.
	BitsPerSample  uint16
}

// WavInfo describes what was found in the file.
type WavInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
	DataBytes     int      // Declared size of the data chunk.
	Skipped       []string // Chunk ids passed over, in order.
	Truncated     bool     // The data chunk ended early.
}

/*------------------------------------------------------------------
 *
 * Function:	ReadWav
 *
 * Purpose:	Read the whole audio payload of a .WAV file.
 *
 * Inputs:	r		- Positioned at the start of the file.
 *
 *		maxSamples	- Never return more than this.
 *
 *		channel		- For stereo, 0 = left, 1 = right.
 *
 * Returns:	Mono samples and a description of the file.
 *
 * Errors:	ErrFormat if it is not a 16 bit PCM .WAV file.
 *		ErrIO if reading fails for any other reason.
 *
 *------------------------------------------------------------------*/

func ReadWav(r io.Reader, maxSamples int, channel int) ([]int16, WavInfo, error) {
	var info WavInfo

	var header wavHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, info, headerErr("RIFF header", err)
	}

	if string(header.Riff[:]) != "RIFF" || string(header.Wave[:]) != "WAVE" {
		return nil, info, fmt.Errorf("%w: not a valid WAV file", ErrFormat)
	}

	var format wavFormat
	var haveFormat = false

	for {
		var chunk wavChunk
		if err := binary.Read(r, binary.LittleEndian, &chunk); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, info, fmt.Errorf("%w: could not find data chunk in WAV file", ErrFormat)
			}
			return nil, info, headerErr("chunk header", err)
		}

		var id = string(chunk.ID[:])
		var size = int64(chunk.DataSize)

		switch id {
		case "fmt ":
			if size < 16 {
				return nil, info, fmt.Errorf("%w: fmt chunk is only %d bytes", ErrFormat, size)
			}
			if err := binary.Read(r, binary.LittleEndian, &format); err != nil {
				return nil, info, headerErr("fmt chunk", err)
			}
			// WAVE_FORMAT_EXTENSIBLE and friends add more after the basics.
			if err := skip(r, size-16+size%2); err != nil {
				return nil, info, headerErr("fmt chunk", err)
			}
			haveFormat = true

		case "data":
			if !haveFormat {
				return nil, info, fmt.Errorf("%w: data chunk before fmt chunk", ErrFormat)
			}

			info.SampleRate = int(format.SamplesPerSec)
			info.Channels = int(format.Channels)
			info.BitsPerSample = int(format.BitsPerSample)
			info.DataBytes = int(size)

			if err := checkFormat(format, channel); err != nil {
				return nil, info, err
			}

			var samples, truncated, err = readPayload(r, size, int(format.Channels), maxSamples, channel)
			info.Truncated = truncated

			return samples, info, err

		default:
			info.Skipped = append(info.Skipped, id)
			if err := skip(r, size+size%2); err != nil {
				return nil, info, headerErr(fmt.Sprintf("%q chunk", id), err)
			}
		}
	}
}

func checkFormat(format wavFormat, channel int) error {
	if format.FormatTag != WAVE_FORMAT_PCM && format.FormatTag != WAVE_FORMAT_EXTENSIBLE {
		return fmt.Errorf("%w: audio format %d is not PCM", ErrFormat, format.FormatTag)
	}

	if format.BitsPerSample != 16 {
		return fmt.Errorf("%w: %d bits per sample, only 16 is supported", ErrFormat, format.BitsPerSample)
	}

	if format.Channels != 1 && format.Channels != 2 {
		return fmt.Errorf("%w: %d channels, only mono or stereo is supported", ErrFormat, format.Channels)
	}

	if channel < 0 || channel >= int(format.Channels) {
		return fmt.Errorf("%w: channel %d requested from a %d channel file", ErrFormat, channel, format.Channels)
	}

	return nil
}

func readPayload(r io.Reader, size int64, channels int, maxSamples int, channel int) ([]int16, bool, error) {
	var frameBytes = int64(2 * channels)
	var frames = size / frameBytes

	if frames > int64(maxSamples) {
		frames = int64(maxSamples)
	}

	var raw = make([]byte, frames*frameBytes)

	var n, err = io.ReadFull(r, raw)
	var truncated = false

	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		truncated = true
	case err != nil:
		return nil, false, fmt.Errorf("%w: reading samples: %w", ErrIO, err)
	}

	frames = int64(n) / frameBytes

	var samples = make([]int16, frames)
	for i := range samples {
		var off = int64(i)*frameBytes + int64(2*channel)
		samples[i] = int16(binary.LittleEndian.Uint16(raw[off:])) //nolint:gosec
	}

	return samples, truncated, nil
}

func skip(r io.Reader, n int64) error {
	if n <= 0 {
		return nil
	}

	if s, ok := r.(io.Seeker); ok {
		var _, err = s.Seek(n, io.SeekCurrent)
		return err
	}

	var copied, err = io.CopyN(io.Discard, r, n)
	if err == nil && copied < n {
		err = io.ErrUnexpectedEOF
	}

	return err
}

// Running out of file inside a header means the file is malformed,
// anything else is a real read failure.
func headerErr(what string, err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: truncated %s", ErrFormat, what)
	}

	return fmt.Errorf("%w: reading %s: %w", ErrIO, what, err)
}

// WavSource is the file flavour of SampleSource.  It is read once.
type WavSource struct {
	Path       string
	Channel    int // For stereo files.
	MaxSamples int // 0 means MaxSamples.

	Logger *log.Logger
}

func (w *WavSource) Live() bool {
	return false
}

// Pump reads the file and writes every sample into buf.
func (w *WavSource) Pump(_ context.Context, buf *CycleBuffer) error {
	var logger = quietLogger(w.Logger)

	var f, openErr = os.Open(w.Path)
	if openErr != nil {
		return fmt.Errorf("%w: cannot open file %s: %w", ErrIO, w.Path, openErr)
	}
	defer f.Close()

	var maxSamples = w.MaxSamples
	if maxSamples <= 0 {
		maxSamples = MaxSamples
	}
	maxSamples = min(maxSamples, buf.Capacity())

	var samples, info, err = ReadWav(f, maxSamples, w.Channel)

	for _, id := range info.Skipped {
		logger.Debug("Skipping chunk", "id", id)
	}

	if err != nil {
		return err
	}

	logger.Info("WAV file info",
		"file", w.Path,
		"rate", info.SampleRate,
		"channels", info.Channels,
		"bits", info.BitsPerSample,
		"data_bytes", info.DataBytes,
		"samples", len(samples))

	if info.SampleRate != SampleRate {
		logger.Warn("Sample rate is not what jt9 expects, decodes will be wrong", "rate", info.SampleRate, "expected", SampleRate)
	}

	if info.Truncated {
		logger.Warn("Data chunk is shorter than its header says", "file", w.Path)
	}

	buf.Write(samples)

	return nil
}
