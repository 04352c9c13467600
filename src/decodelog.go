package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Save decodes to a log file.
 *
 * Description: Rather than the raw jt9 output, write separated
 *		properties in CSV format for easy reading and later
 *		processing.
 *
 *		There are two alternatives here.
 *
 *		--decode-log file		Specify full file path.
 *
 *		--decode-log dir --decode-log-daily
 *					Daily names will be created here.
 *
 *		Daily names come from a strftime pattern, in UTC.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/golang/geo/s2"
	"github.com/lestrrat-go/strftime"
)

var decodeLogHeader = []string{
	"utime", "isotime", "mode", "snr", "dt", "freq", "qualifier", "message", "grid", "distance_km", "bearing_deg",
	"annotation",
}

type DecodeLog struct {
	mu sync.Mutex

	dailyNames bool
	path       string // Directory for daily names, otherwise the file.
	pattern    *strftime.Strftime
	mode       string

	home    s2.LatLng
	hasHome bool

	fp        *os.File
	openFname string

	now    func() time.Time
	logger *log.Logger
}

/*------------------------------------------------------------------
 *
 * Function:	NewDecodeLog
 *
 * Purpose:	Set up the decode log.
 *
 * Inputs:	cfg	- DecodeLog is the file name or directory.
 *			  DecodeLogDaily says which.
 *			  MyGrid is where distances are measured from.
 *
 * Description:	For daily names the directory is created if it does
 *		not exist.  We don't create multiple levels like "mkdir -p".
 *		If that fails the current working directory is used.
 *
 *------------------------------------------------------------------*/

func NewDecodeLog(cfg Config, logger *log.Logger) (*DecodeLog, error) {
	logger = quietLogger(logger)

	var pattern, patternErr = strftime.New(cfg.DecodeLogPattern)
	if patternErr != nil {
		return nil, fmt.Errorf("decode log file name pattern %q: %w", cfg.DecodeLogPattern, patternErr)
	}

	var l = &DecodeLog{ //nolint:exhaustruct
		dailyNames: cfg.DecodeLogDaily,
		path:       cfg.DecodeLog,
		pattern:    pattern,
		mode:       cfg.Mode,
		now:        func() time.Time { return time.Now().UTC() },
		logger:     logger,
	}

	if cfg.MyGrid != "" {
		var home, err = GridToLatLng(cfg.MyGrid)
		if err == nil {
			l.home = home
			l.hasHome = true
		}
	}

	if !l.dailyNames {
		logger.Info("Decode log file", "path", l.path)
		return l, nil
	}

	var stat, statErr = os.Stat(l.path)
	switch {
	case statErr == nil && stat.IsDir():
		// Specified directory exists.
	case statErr == nil:
		logger.Error("Decode log location is not a directory, using current working directory instead", "path", l.path)
		l.path = "."
	default:
		var mkdirErr = os.Mkdir(l.path, 0755)
		if mkdirErr == nil {
			logger.Info("Decode log location has been created", "path", l.path)
		} else {
			logger.Error("Failed to create decode log location, using current working directory instead", "path", l.path, "err", mkdirErr)
			l.path = "."
		}
	}

	return l, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save one decode.
 *
 * Inputs:	line	- As printed by jt9.  Lines that can't be parsed
 *			  are still logged with just the message filled in.
 *
 * Description:	The time logged is the start of the cycle the decode
 *		came from, as printed by jt9, not when it was written.
 *		That also decides which daily file it goes in.
 *
 *------------------------------------------------------------------*/

func (l *DecodeLog) Write(line string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var now = l.now()

	var spot, parseErr = ParseSpot(line)
	if parseErr != nil {
		l.logger.Debug("Logging unparsed decode", "err", parseErr)
		spot = Spot{Message: line} //nolint:exhaustruct
	}

	var stamp = now
	if parseErr == nil {
		stamp = slotTime(spot, now)
	}

	if !l.open(stamp) {
		return
	}

	var snr, dt, freq string
	if parseErr == nil {
		snr = strconv.Itoa(spot.SNR)
		dt = fmt.Sprintf("%.1f", spot.DT)
		freq = strconv.Itoa(spot.Freq)
	}

	var sdist, sbearing string
	if spot.Grid != "" && l.hasHome {
		var there, err = GridToLatLng(spot.Grid)
		if err == nil {
			sdist = fmt.Sprintf("%.0f", DistanceKm(l.home, there))
			sbearing = fmt.Sprintf("%.0f", BearingDeg(l.home, there))
		}
	}

	var w = csv.NewWriter(l.fp)
	w.Write([]string{ //nolint:errcheck
		strconv.FormatInt(stamp.Unix(), 10), stamp.Format("2006-01-02T15:04:05Z"), l.mode,
		snr, dt, freq, spot.Qualifier, spot.Message, spot.Grid,
		sdist, sbearing, spot.Annotation,
	})
	w.Flush()

	var writeError = w.Error()
	if writeError != nil {
		l.logger.Error("CSV write error", "err", writeError)
	}
}

// slotTime is when the decoded cycle started.  jt9 only prints the time
// of day, so a decode from just before midnight that is written just
// after belongs to yesterday.
func slotTime(spot Spot, now time.Time) time.Time {
	var at = spot.At(now)
	if at.Sub(now) > time.Hour {
		at = at.AddDate(0, 0, -1)
	}

	return at
}

// open makes sure the right file is open, starting a new one when the
// daily name changes.  Header only if this will be the first line.
func (l *DecodeLog) open(now time.Time) bool {
	var fullPath = l.path
	var fname = l.path

	if l.dailyNames {
		fname = l.pattern.FormatString(now)
		fullPath = filepath.Join(l.path, fname)

		if l.fp != nil && fname != l.openFname {
			l.closeFile()
		}
	}

	if l.fp != nil {
		return true
	}

	var _, statErr = os.Stat(fullPath)
	var alreadyThere = statErr == nil

	l.logger.Info("Opening decode log file", "path", fullPath)

	var f, openErr = os.OpenFile(fullPath, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644)
	if openErr != nil {
		l.logger.Error("Can't open decode log file for write", "path", fullPath, "err", openErr)
		return false
	}

	l.fp = f
	l.openFname = fname

	if !alreadyThere {
		var w = csv.NewWriter(l.fp)
		w.Write(decodeLogHeader) //nolint:errcheck
		w.Flush()
	}

	return true
}

func (l *DecodeLog) closeFile() {
	if l.fp != nil {
		l.fp.Close()
		l.fp = nil
		l.openFname = ""
	}
}

// Close the log file, if open.
func (l *DecodeLog) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closeFile()
}
