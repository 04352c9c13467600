package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for jt9decode.
 *
 * Description:	Decode FT2, FT4 and FT8 from a WAV file, or continuously
 *		from a stream of samples, using WSJT-X's jt9 as the
 *		decoding engine.
 *
 *		Decodes, and nothing else, are written to stdout.
 *		Everything else goes to stderr.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

const AUDIO_DEVICE_SOUNDCARD = "soundcard"

// DecodeMain is the whole of the jt9decode command.
func DecodeMain() {
	os.Exit(decodeMain(os.Stdin, os.Stdout, os.Stderr))
}

func decodeMain(stdin io.Reader, stdout io.Writer, stderr io.Writer) int {
	var def = DefaultConfig()

	var jt9Path = pflag.StringP("jt9", "j", def.Engine, "Path to jt9 binary.")
	var modeName = pflag.StringP("mode", "m", def.Mode, `Mode: FT2, FT4, or FT8.
FT2: 3.75s cycle, 105 symbols
FT4: 7.5s cycle, 105 symbols
FT8: 15s cycle, 50 symbols`)
	var depth = pflag.IntP("depth", "d", def.Depth, "Decoding depth 1-3.")
	var stream = pflag.BoolP("stream", "s", false, `Stream mode: read 12kHz 16-bit mono PCM from stdin.
Triggers decodes at cycle boundaries aligned to UTC.`)
	var multithread = pflag.BoolP("multithread", "t", def.Multithread, "Enable multithreaded FT8 decoding (FT8 only).")
	var configFile = pflag.StringP("config", "c", "", "Configuration file name.  Default is to look for jt9decode.yaml.")
	var freqLow = pflag.Int("freq-low", def.FreqLow, "Low decode limit, Hz.")
	var freqHigh = pflag.Int("freq-high", def.FreqHigh, "High decode limit, Hz.")
	var myCall = pflag.String("mycall", def.MyCall, "Station call sign.")
	var myGrid = pflag.String("mygrid", def.MyGrid, "Station Maidenhead locator.  Also used for distances in the decode log.")
	var logLevel = pflag.String("log-level", def.LogLevel, "Diagnostic detail: debug, info, warn, or error.")
	var usePty = pflag.Bool("pty", def.Pty, "Run jt9 on a pseudo terminal so its output arrives line by line.")
	var shmBackend = pflag.String("shm", def.ShmBackend, "Shared memory flavour jt9 was built for: sysv, posix, or heap (testing only).")
	var shmKey = pflag.String("key", def.Key, "Shared memory key passed to jt9 with -s.")
	var channel = pflag.Int("channel", def.Channel, "Channel of a stereo WAV file: 0 = left, 1 = right.")
	var audioDevice = pflag.String("audio-device", "", "Capture live audio from a device instead of stdin.  Only \"soundcard\", the default input, for now.")
	var inputPath = pflag.String("input", "", "Read the sample stream from this file or pipe instead of stdin.")
	var decodeLog = pflag.String("decode-log", def.DecodeLog, "CSV log of decodes: a file, or a directory with --decode-log-daily.")
	var decodeLogDaily = pflag.Bool("decode-log-daily", def.DecodeLogDaily, "Write a new decode log file every day.")
	var spotPort = pflag.Int("spot-port", def.SpotPort, "TCP port that sends every decode to connected clients.  0 for none.")
	var dnsSD = pflag.Bool("dns-sd", def.DNSSD, "Announce the spot port with DNS-SD.")
	var showVersion = pflag.Bool("version", false, "Print version and exit.")
	var verbose = pflag.BoolP("verbose", "v", false, "With --version, also list the Go version and modules built in.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(stderr, "Usage: %s -j <jt9_path> [OPTION]... [<WAV FILE>|-s]\n", os.Args[0])
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Decode FT2/FT4/FT8 signals from WAV file or stdin stream using jt9\n")
		fmt.Fprintf(stderr, "\n")
		pflag.CommandLine.SetOutput(stderr)
		pflag.PrintDefaults()
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "Examples:\n")
		fmt.Fprintf(stderr, "  # Decode WAV files\n")
		fmt.Fprintf(stderr, "  %s -j /usr/local/bin/jt9 recording.wav\n", os.Args[0])
		fmt.Fprintf(stderr, "  %s -j /opt/jt9 -m FT8 -d 2 recording.wav\n", os.Args[0])
		fmt.Fprintf(stderr, "\n")
		fmt.Fprintf(stderr, "  # Stream mode (continuous decoding)\n")
		fmt.Fprintf(stderr, "  rtl_fm -f 144.174M -s 12k | %s -j /usr/local/bin/jt9 -m FT2 -s\n", os.Args[0])
		fmt.Fprintf(stderr, "  rtl_fm -f 14.074M -s 12k | %s -j /usr/local/bin/jt9 -m FT8 -s\n", os.Args[0])
		fmt.Fprintf(stderr, "  sox input.wav -t raw -r 12000 -e signed -b 16 -c 1 - | %s -j jt9 -m FT4 -s\n", os.Args[0])
	}

	// !!! PARSE !!!
	pflag.Parse()

	if *help {
		pflag.Usage()
		return 0
	}

	if *showVersion {
		printVersion(stdout, *verbose)
		return 0
	}

	/*
	 * Config file first, then anything given on the command line.
	 */

	var cfg = def

	var usedFile, loadErr = LoadConfig(*configFile, &cfg)
	if loadErr != nil {
		fmt.Fprintf(stderr, "Error: %s\n", loadErr)
		return 1
	}

	var changed = pflag.CommandLine.Changed

	if changed("jt9") {
		cfg.Engine = *jt9Path
	}
	if changed("mode") {
		cfg.Mode = *modeName
	}
	if changed("depth") {
		cfg.Depth = *depth
	}
	if changed("multithread") {
		cfg.Multithread = *multithread
	}
	if changed("freq-low") {
		cfg.FreqLow = *freqLow
	}
	if changed("freq-high") {
		cfg.FreqHigh = *freqHigh
	}
	if changed("mycall") {
		cfg.MyCall = *myCall
	}
	if changed("mygrid") {
		cfg.MyGrid = *myGrid
	}
	if changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if changed("pty") {
		cfg.Pty = *usePty
	}
	if changed("shm") {
		cfg.ShmBackend = *shmBackend
	}
	if changed("key") {
		cfg.Key = *shmKey
	}
	if changed("channel") {
		cfg.Channel = *channel
	}
	if changed("decode-log") {
		cfg.DecodeLog = *decodeLog
	}
	if changed("decode-log-daily") {
		cfg.DecodeLogDaily = *decodeLogDaily
	}
	if changed("spot-port") {
		cfg.SpotPort = *spotPort
	}
	if changed("dns-sd") {
		cfg.DNSSD = *dnsSD
	}

	var logger, loggerErr = newDiagLogger(stderr, cfg.LogLevel)
	if loggerErr != nil {
		fmt.Fprintf(stderr, "Error: %s\n", loggerErr)
		return 1
	}

	if usedFile != "" {
		logger.Info("Configuration file", "path", usedFile)
	}

	var validateErr = cfg.Validate()
	if validateErr != nil {
		logger.Error("Invalid configuration", "err", validateErr)
		fmt.Fprintf(stderr, "Use --help for more information\n")
		return 1
	}

	if *stream && *audioDevice != "" {
		logger.Error("Cannot specify both -s (stream mode) and --audio-device")
		return 1
	}

	var live = *stream || *audioDevice != "" || *inputPath != ""

	if len(pflag.Args()) > 1 {
		logger.Error("Only one WAV file can be decoded at a time", "files", len(pflag.Args()))
		return 1
	}

	if !live && len(pflag.Args()) == 0 {
		logger.Error("No WAV file specified (use -s for stream mode)")
		fmt.Fprintf(stderr, "Use --help for more information\n")
		return 1
	}

	if live && len(pflag.Args()) > 0 {
		logger.Error("Cannot specify both stream mode and WAV file")
		return 1
	}

	/*
	 * Pick the audio.
	 */

	var src SampleSource

	switch {
	case *audioDevice == AUDIO_DEVICE_SOUNDCARD:
		src = &SoundcardSource{Logger: logger}
	case *audioDevice != "":
		logger.Error("Unknown audio device", "device", *audioDevice, "valid", AUDIO_DEVICE_SOUNDCARD)
		return 1
	case *inputPath != "":
		var f, openErr = os.Open(*inputPath)
		if openErr != nil {
			logger.Error("Cannot open input", "err", fmt.Errorf("%w: %w", ErrIO, openErr))
			return 1
		}
		defer f.Close()
		src = &StreamSource{Reader: f, Name: *inputPath, Logger: logger}
	case live:
		src = &StreamSource{Reader: stdin, Name: "stdin", Logger: logger}
	default:
		src = &WavSource{Path: pflag.Arg(0), Channel: cfg.Channel, Logger: logger} //nolint:exhaustruct
	}

	var ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var session, sessionErr = NewSession(ctx, cfg, WithLogger(logger), WithResults(stdout))
	if sessionErr != nil {
		logger.Error("Could not start", "err", sessionErr)
		return 1
	}

	var closeOutputs = attachOutputs(ctx, session, cfg, logger)
	defer closeOutputs()

	var runErr = session.Run(ctx, src)

	logger.Info("Done", "decodes", session.Results())

	if runErr != nil {
		if errors.Is(runErr, ErrEngineCrashed) {
			logger.Error("jt9 crashed", "err", runErr)
		} else {
			logger.Error("Failed", "err", runErr)
		}
		return 1
	}

	return 0
}

// attachOutputs hooks the optional decode log and spot server onto the
// session.  The returned function closes them.
func attachOutputs(ctx context.Context, session *Session, cfg Config, logger *log.Logger) func() {
	var closers []func()
	var closeAll = func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.DecodeLog != "" {
		var dl, err = NewDecodeLog(cfg, logger)
		if err != nil {
			logger.Error("Decode log disabled", "err", err)
		} else {
			session.OnResult(dl.Write)
			closers = append(closers, dl.Close)
		}
	}

	if cfg.SpotPort == 0 {
		return closeAll
	}

	var server, listenErr = ListenSpots(":"+strconv.Itoa(cfg.SpotPort), logger)
	if listenErr != nil {
		logger.Error("Spot server disabled", "err", listenErr)
		return closeAll
	}

	session.OnResult(server.Send)
	closers = append(closers, func() { server.Close() }) //nolint:errcheck

	if cfg.DNSSD {
		go func() {
			var err = server.Announce(ctx, cfg.DNSSDName)
			if err != nil {
				logger.Error("DNS-SD", "err", err)
			}
		}()
	}

	return closeAll
}
