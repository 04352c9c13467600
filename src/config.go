package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:   	Read configuration information from a file.
 *
 * Description:	Everything can be given on the command line but a station
 *		usually has a fixed call, grid, jt9 location and so on.
 *		Those can live in a YAML file instead:
 *
 *			engine: /usr/local/bin/jt9
 *			mode: FT8
 *			mycall: K1ABC
 *			mygrid: FN20
 *			decode_log: /var/log/jt9decode
 *
 *		Command line options override the file.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// jt9 and how to talk to it.
	Engine     string `yaml:"engine"`      // Path to the jt9 binary.
	ExeDir     string `yaml:"exe_dir"`     // jt9 -e
	DataDir    string `yaml:"data_dir"`    // jt9 -a
	TempDir    string `yaml:"temp_dir"`    // jt9 -t
	Key        string `yaml:"shm_key"`     // jt9 -s
	ShmBackend string `yaml:"shm_backend"` // sysv, posix or heap.
	Pty        bool   `yaml:"pty"`         // Run jt9 on a pseudo terminal.

	// Decoding.
	Mode        string `yaml:"mode"`
	Depth       int    `yaml:"depth"`     // 1 - 3
	FreqLow     int    `yaml:"freq_low"`  // Hz
	FreqHigh    int    `yaml:"freq_high"` // Hz
	QSOFreq     int    `yaml:"qso_freq"`  // Hz
	Tolerance   int    `yaml:"tolerance"` // +/- Hz around QSOFreq
	MyCall      string `yaml:"mycall"`
	MyGrid      string `yaml:"mygrid"`
	Multithread bool   `yaml:"multithread"` // FT8 only.

	// Input.
	Channel int `yaml:"channel"` // Stereo WAV channel, 0 = left.

	// Protocol timing.
	PollInterval time.Duration `yaml:"poll_interval"`
	PollBudget   time.Duration `yaml:"poll_budget"` // Give up waiting for a decode after this.
	MinPolls     int           `yaml:"min_polls"`   // Keep collecting output this many polls at least.
	DrainWait    time.Duration `yaml:"drain_wait"`
	Grace        time.Duration `yaml:"grace"` // Time jt9 gets to exit before it is killed.

	// Output.
	LogLevel         string `yaml:"log_level"`
	DecodeLog        string `yaml:"decode_log"`         // Directory for daily files, or a file name.
	DecodeLogDaily   bool   `yaml:"decode_log_daily"`   // DecodeLog is a directory.
	DecodeLogPattern string `yaml:"decode_log_pattern"` // strftime pattern for daily file names.
	SpotPort         int    `yaml:"spot_port"`          // TCP port for the spot feed, 0 for none.
	DNSSD            bool   `yaml:"dns_sd"`
	DNSSDName        string `yaml:"dns_sd_name"`
}

// DefaultConfig matches what jt9decode has always done with no options.
func DefaultConfig() Config {
	return Config{ //nolint:exhaustruct
		Key:        "JT9DECODE",
		ShmBackend: SHM_BACKEND_SYSV,

		Mode:      ModeFT2.Name,
		Depth:     3,
		FreqLow:   200,
		FreqHigh:  5000,
		QSOFreq:   1500,
		Tolerance: 100,
		MyCall:    "K1ABC",
		MyGrid:    "FN20",

		PollInterval: 100 * time.Millisecond,
		PollBudget:   10 * time.Second,
		MinPolls:     6,
		DrainWait:    100 * time.Millisecond,
		Grace:        5 * time.Second,

		LogLevel:         "info",
		DecodeLogPattern: "%Y-%m-%d.csv",
	}
}

// If no file is named, these are tried in order.
var configSearchLocations = []string{
	"jt9decode.yaml", // Current working directory
	"/usr/local/etc/jt9decode.yaml",
	"/etc/jt9decode.yaml",
}

/*------------------------------------------------------------------
 *
 * Function:	LoadConfig
 *
 * Purpose:	Apply a configuration file on top of cfg.
 *
 * Inputs:	path	- File name.  Empty means look in the usual places
 *			  and carry on quietly if there is nothing there.
 *
 * Returns:	The file actually used, or "" if none.
 *
 *------------------------------------------------------------------*/

func LoadConfig(path string, cfg *Config) (string, error) {
	if path == "" {
		for _, location := range configSearchLocations {
			if _, err := os.Stat(location); err == nil {
				path = location
				break
			}
		}
		if path == "" {
			return "", nil
		}
	}

	var f, openErr = os.Open(path)
	if openErr != nil {
		return "", fmt.Errorf("%w: config file: %w", ErrIO, openErr)
	}
	defer f.Close()

	return path, DecodeConfig(f, cfg)
}

// DecodeConfig reads YAML from r into cfg.  Keys not present leave the
// existing values alone.
func DecodeConfig(r io.Reader, cfg *Config) error {
	var dec = yaml.NewDecoder(r)
	dec.KnownFields(true)

	var err = dec.Decode(cfg)
	if errors.Is(err, io.EOF) {
		return nil // Empty file.
	}
	if err != nil {
		return fmt.Errorf("%w: config file: %w", ErrFormat, err)
	}

	return nil
}

// Validate checks for values jt9 would choke on, or that make no sense.
func (c *Config) Validate() error {
	var errs []error

	if c.Engine == "" {
		errs = append(errs, errors.New("jt9 path not specified"))
	}

	if _, err := ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}

	if c.Depth < 1 || c.Depth > 3 {
		errs = append(errs, fmt.Errorf("decoding depth should be between 1 and 3 inclusive, not %d", c.Depth))
	}

	if c.FreqLow < 0 || c.FreqHigh <= c.FreqLow {
		errs = append(errs, fmt.Errorf("frequency range %d - %d Hz is not valid", c.FreqLow, c.FreqHigh))
	}

	if c.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("frequency tolerance must not be negative, not %d", c.Tolerance))
	}

	if len(c.MyCall) > len(DecParams{}.Mycall) {
		errs = append(errs, fmt.Errorf("call sign %q is longer than %d characters", c.MyCall, len(DecParams{}.Mycall)))
	}

	if len(c.MyGrid) > len(DecParams{}.Mygrid) {
		errs = append(errs, fmt.Errorf("grid %q is longer than %d characters", c.MyGrid, len(DecParams{}.Mygrid)))
	} else if c.MyGrid != "" {
		if _, err := GridToLatLng(c.MyGrid); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Key == "" {
		errs = append(errs, errors.New("shared memory key must not be empty"))
	}

	switch c.ShmBackend {
	case SHM_BACKEND_SYSV, SHM_BACKEND_POSIX, SHM_BACKEND_HEAP:
	default:
		errs = append(errs, fmt.Errorf("unknown shared memory backend %q, valid: sysv, posix, heap", c.ShmBackend))
	}

	if c.Channel < 0 || c.Channel > 1 {
		errs = append(errs, fmt.Errorf("channel should be 0 (left) or 1 (right), not %d", c.Channel))
	}

	if c.PollInterval <= 0 || c.PollBudget < c.PollInterval || c.DrainWait < 0 || c.Grace <= 0 || c.MinPolls < 0 {
		errs = append(errs, errors.New("poll interval, poll budget, drain wait, grace and min polls must all be positive"))
	}

	if c.SpotPort < 0 || c.SpotPort > 65535 {
		errs = append(errs, fmt.Errorf("spot port %d is out of range", c.SpotPort))
	}

	return errors.Join(errs...)
}
