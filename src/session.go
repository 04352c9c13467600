package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	One run of jt9: the shared region, the process, and the
 *		decode transactions between them.
 *
 * Description:	A transaction goes like this:
 *
 *		1. Samples into d2, clearing whatever the previous window
 *		   left beyond the new one.
 *
 *		2. Per decode parameters: kin, newdat, nutc and so on.
 *
 *		3. ipc = { symbols, 1, -1 }.  jt9 is watching ipc[1].
 *
 *		4. Poll ipc[1] until jt9 sets it back to 0.
 *
 *		5. Give the last of the output a moment and set ipc[2] = 1.
 *
 *		Output from jt9 is passed on by its own goroutine for the
 *		life of the process, whether or not a transaction is in
 *		progress.  jt9 blocks when nobody reads what it prints.
 *
 *		At the end, ipc[1] = 999 asks jt9 to exit.  It gets a few
 *		seconds before we kill it.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var errSessionClosed = errors.New("session has been shut down")

type Session struct {
	cfg    Config
	mode   ModeProfile
	cb     *ControlBlock
	engine Engine
	demux  *Demux
	logger *log.Logger
	clock  Clock

	bufferCapacity int

	txMu     sync.Mutex // Held for a whole transaction, and by Shutdown.
	diskData bool
	stopping chan struct{}

	shutdownOnce sync.Once
	shutdownErr  error

	outputDone chan struct{} // Closed when jt9's output has ended.

	finished chan struct{} // Closed when Run, started by Start, returns.
	runErr   error
}

type sessionOptions struct {
	region         Region
	launcher       Launcher
	logger         *log.Logger
	results        io.Writer
	clock          Clock
	bufferCapacity int
}

type SessionOption func(o *sessionOptions)

// WithRegion uses r instead of creating shared memory from the config.
func WithRegion(r Region) SessionOption {
	return func(o *sessionOptions) { o.region = r }
}

// WithLauncher replaces the jt9 process launcher.
func WithLauncher(l Launcher) SessionOption {
	return func(o *sessionOptions) { o.launcher = l }
}

func WithLogger(l *log.Logger) SessionOption {
	return func(o *sessionOptions) { o.logger = l }
}

// WithResults sends decoded messages to w instead of stdout.
func WithResults(w io.Writer) SessionOption {
	return func(o *sessionOptions) { o.results = w }
}

func WithClock(c Clock) SessionOption {
	return func(o *sessionOptions) { o.clock = c }
}

// WithBufferCapacity sizes the audio buffer, in samples.
func WithBufferCapacity(n int) SessionOption {
	return func(o *sessionOptions) { o.bufferCapacity = n }
}

/*------------------------------------------------------------------
 *
 * Function:	NewSession
 *
 * Purpose:	Create the shared region, fill in the fixed parameters and
 *		start jt9.
 *
 * Inputs:	cfg	- Should already have been through Validate.
 *
 * Errors:	ErrProtocol if the region cannot be created or is the
 *		wrong size.  ErrEngineLaunch if jt9 will not start, in which
 *		case the region has been released again.
 *
 *------------------------------------------------------------------*/

func NewSession(ctx context.Context, cfg Config, opts ...SessionOption) (*Session, error) {
	var o sessionOptions
	for _, opt := range opts {
		opt(&o)
	}

	var mode, modeErr = ParseMode(cfg.Mode)
	if modeErr != nil {
		return nil, modeErr
	}

	var logger = quietLogger(o.logger)

	var region = o.region
	if region == nil {
		var err error
		region, err = OpenRegion(cfg.ShmBackend, cfg.Key, DecDataSize)
		if err != nil {
			return nil, err
		}
	}

	var cb, cbErr = NewControlBlock(region)
	if cbErr != nil {
		region.Close() //nolint:errcheck
		return nil, cbErr
	}

	cb.Reset()

	var s = &Session{ //nolint:exhaustruct
		cfg:            cfg,
		mode:           mode,
		cb:             cb,
		logger:         logger,
		clock:          o.clock,
		bufferCapacity: o.bufferCapacity,
		stopping:       make(chan struct{}),
		finished:       make(chan struct{}),
		outputDone:     make(chan struct{}),
	}

	if s.clock == nil {
		s.clock = utcClock{}
	}

	var results = o.results
	if results == nil {
		results = os.Stdout
	}
	s.demux = NewDemux(results, logger)

	s.writeStaticParams()

	var launcher = o.launcher
	if launcher == nil {
		launcher = &ProcessLauncher{
			Path:    cfg.Engine,
			ExeDir:  cfg.ExeDir,
			DataDir: cfg.DataDir,
			TempDir: cfg.TempDir,
			UsePty:  cfg.Pty,
			Logger:  logger,
		}
	}

	var engine, launchErr = launcher.Launch(ctx, cb.Key())
	if launchErr != nil {
		cb.Close() //nolint:errcheck
		if !errors.Is(launchErr, ErrEngineLaunch) {
			launchErr = fmt.Errorf("%w: %w", ErrEngineLaunch, launchErr)
		}
		return nil, launchErr
	}
	s.engine = engine

	go s.forwardOutput()

	logger.Info("Session ready", "mode", mode.Name, "key", cb.Key(), "depth", cfg.Depth,
		"freq", fmt.Sprintf("%d-%d", cfg.FreqLow, cfg.FreqHigh))

	return s, nil
}

func (s *Session) writeStaticParams() {
	s.cb.UpdateParams(func(p *DecParams) {
		p.Nmode = s.mode.Code
		p.Ntrperiod = s.mode.TRPeriodSeconds()
		p.Ndepth = int32(s.cfg.Depth)   //nolint:gosec
		p.Nfa = int32(s.cfg.FreqLow)    //nolint:gosec
		p.Nfb = int32(s.cfg.FreqHigh)   //nolint:gosec
		p.Nfqso = int32(s.cfg.QSOFreq)  //nolint:gosec
		p.Ntol = int32(s.cfg.Tolerance) //nolint:gosec
		p.Nagain = false
		p.NQSOProgress = 0
		p.Lapcqonly = false
		p.Nsubmode = 0
		p.Ndiskdat = s.diskData
		p.Lmultift8 = s.cfg.Multithread
		setCString(p.Mycall[:], s.cfg.MyCall)
		setCString(p.Mygrid[:], s.cfg.MyGrid)
	})
}

// OnResult registers fn to see every decoded message.
func (s *Session) OnResult(fn func(line string)) {
	s.demux.OnResult(fn)
}

// Mode the session decodes.
func (s *Session) Mode() ModeProfile {
	return s.mode
}

// Results is how many decodes have been passed on so far.
func (s *Session) Results() int {
	return s.demux.Results()
}

// ControlBlock gives access to the shared region, mainly for tests.
func (s *Session) ControlBlock() *ControlBlock {
	return s.cb
}

func (s *Session) setDiskData(diskData bool) {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.diskData = diskData
}

/*------------------------------------------------------------------
 *
 * Function:	Decode
 *
 * Purpose:	One complete decode transaction.
 *
 * Inputs:	window	- Samples to decode.  At most MaxSamples are used.
 *
 *		at	- When the window was taken.  Becomes nutc.
 *
 * Returns:	nil after a completed or timed out decode.
 *		ErrEngineCrashed if jt9 went away.
 *		ErrEngineTimeout if jt9 is still busy with the last one.
 *
 *------------------------------------------------------------------*/

func (s *Session) Decode(ctx context.Context, window []int16, at time.Time) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	select {
	case <-s.stopping:
		return errSessionClosed
	case <-s.engine.Exited():
		return s.crashed()
	default:
	}

	var n = s.cb.LoadWindow(window)

	var utc = at.UTC()
	var nutc = int32(utc.Hour()*100 + utc.Minute()) //nolint:gosec

	s.cb.UpdateParams(func(p *DecParams) {
		p.Nmode = s.mode.Code
		p.Ntrperiod = s.mode.TRPeriodSeconds()
		p.Ndepth = int32(s.cfg.Depth) //nolint:gosec
		p.Nfa = int32(s.cfg.FreqLow)  //nolint:gosec
		p.Nfb = int32(s.cfg.FreqHigh) //nolint:gosec
		p.Ndiskdat = s.diskData
		p.Lmultift8 = s.cfg.Multithread
		p.Nutc = nutc
		p.Kin = int32(n) //nolint:gosec
		p.Newdat = true
	})

	s.logger.Info("Triggering decode", "utc", fmt.Sprintf("%04d", nutc),
		"second", fmt.Sprintf("%.3f", float64(utc.UnixMilli()%60000)/1000), "samples", n)

	var startErr = s.cb.Start(s.mode.Symbols)
	if startErr != nil {
		return startErr
	}

	return s.await(ctx)
}

// await is steps 4 and 5 of the transaction.
func (s *Session) await(ctx context.Context) error {
	var interval = s.cfg.PollInterval
	var maxPolls = int(s.cfg.PollBudget / interval)

	var ticker = time.NewTicker(interval)
	defer ticker.Stop()

	var completed = false
	var polls = 0

	for polls < maxPolls {
		select {
		case <-ctx.Done():
			s.logger.Debug("Stopped waiting for decode", "err", ctx.Err())
			s.cb.Acknowledge()
			return nil
		case <-s.stopping:
			s.logger.Debug("Stopped waiting for decode, shutting down")
			s.cb.Acknowledge()
			return nil
		case <-s.engine.Exited():
			s.awaitOutput(s.cfg.DrainWait)
			return s.crashed()
		case <-ticker.C:
		}

		polls++

		if s.cb.Done() {
			completed = true
		}

		// jt9 may still be printing after it clears ipc[1].
		if completed && polls >= s.cfg.MinPolls {
			break
		}
	}

	if !completed {
		s.logger.Warn("jt9 did not finish decoding", "err", fmt.Errorf("%w: no completion after %v", ErrEngineTimeout, s.cfg.PollBudget))
	}

	s.awaitOutput(s.cfg.DrainWait)
	s.cb.Acknowledge()

	return nil
}

func (s *Session) crashed() error {
	var exitErr = s.engine.ExitErr()
	if exitErr == nil {
		return fmt.Errorf("%w: jt9 exited", ErrEngineCrashed)
	}

	return fmt.Errorf("%w: %w", ErrEngineCrashed, exitErr)
}

// forwardOutput hands every line jt9 prints to the demux, until the
// output ends.
func (s *Session) forwardOutput() {
	defer close(s.outputDone)

	for line := range s.engine.Lines() {
		s.demux.Handle(line)
	}
}

// awaitOutput waits d, or less if the output has already ended.
func (s *Session) awaitOutput(d time.Duration) {
	var timer = time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-s.outputDone:
	case <-timer.C:
	}
}

/*------------------------------------------------------------------
 *
 * Function:	Shutdown
 *
 * Purpose:	Ask jt9 to exit, wait for it, and release the shared
 *		region.
 *
 * Description:	Safe to call more than once and from any goroutine.
 *		A decode in progress is allowed to finish first.
 *
 *------------------------------------------------------------------*/

func (s *Session) Shutdown() error {
	s.shutdownOnce.Do(func() {
		close(s.stopping)

		s.txMu.Lock()
		defer s.txMu.Unlock()

		s.logger.Info("Terminating jt9")
		s.cb.Terminate()

		var grace = time.NewTimer(s.cfg.Grace)
		defer grace.Stop()

	waiting:
		for {
			select {
			case <-s.engine.Exited():
				break waiting
			case <-grace.C:
				s.logger.Warn("jt9 didn't exit cleanly, killing", "grace", s.cfg.Grace)
				if err := s.engine.Kill(); err != nil {
					s.logger.Error("Could not kill jt9", "err", err)
					break waiting
				}
			}
		}

		s.awaitOutput(s.cfg.Grace)

		s.reportExit()

		s.shutdownErr = s.cb.Close()
	})

	return s.shutdownErr
}

func (s *Session) reportExit() {
	select {
	case <-s.engine.Exited():
	default:
		return
	}

	var err = s.engine.ExitErr()
	var exitErr *exec.ExitError

	switch {
	case err == nil:
		s.logger.Info("jt9 finished", "exit code", 0)
	case errors.As(err, &exitErr):
		s.logger.Info("jt9 finished", "exit code", exitErr.ExitCode())
	default:
		s.logger.Warn("jt9 finished", "err", err)
	}
}

/*------------------------------------------------------------------
 *
 * Function:	Run
 *
 * Purpose:	Decode everything src produces, then shut down.
 *
 * Description:	A file is read completely and decoded once, as a whole.
 *
 *		A live source is read on its own goroutine into the cycle
 *		buffer while the scheduler decodes one window per cycle.
 *		When the source ends we stop scheduling, terminate jt9 and
 *		wait a little for the reader to finish.  A reader stuck in
 *		a blocking read of stdin cannot be interrupted so it is
 *		not waited for indefinitely.
 *
 *------------------------------------------------------------------*/

func (s *Session) Run(ctx context.Context, src SampleSource) error {
	s.setDiskData(!src.Live())

	if !src.Live() {
		return errors.Join(s.runFile(ctx, src), s.Shutdown())
	}

	var buf = NewCycleBuffer(s.bufferCapacity)

	var ingestCtx, cancelIngest = context.WithCancel(ctx)
	defer cancelIngest()

	var ingestDone = make(chan struct{})
	var ingestErr error

	go func() {
		defer close(ingestDone)
		ingestErr = src.Pump(ingestCtx, buf)
	}()

	// Stop scheduling when the input ends or somebody calls Shutdown.
	var stop = make(chan struct{})
	go func() {
		defer close(stop)
		select {
		case <-ingestDone:
		case <-s.stopping:
		}
	}()

	var sched = &CycleScheduler{ //nolint:exhaustruct
		Mode:         s.mode,
		Buffer:       buf,
		PollInterval: s.cfg.PollInterval,
		Clock:        s.clock,
		Logger:       s.logger,
	}

	var err = sched.Run(ctx, stop, s.Decode)
	if err != nil {
		s.logger.Error("Decoding stopped", "err", err)
	}

	select {
	case <-ingestDone:
		s.logger.Info("Input ended")
	default:
	}

	cancelIngest()
	var shutdownErr = s.Shutdown()

	select {
	case <-ingestDone:
		if ingestErr != nil {
			err = errors.Join(err, ingestErr)
		}
	case <-time.After(s.cfg.Grace):
		s.logger.Warn("Audio input did not stop, abandoning it")
	}

	return errors.Join(err, shutdownErr)
}

func (s *Session) runFile(ctx context.Context, src SampleSource) error {
	var capacity = s.bufferCapacity
	if capacity <= 0 {
		capacity = MaxSamples
	}

	var buf = NewCycleBuffer(capacity)

	var err = src.Pump(ctx, buf)
	if err != nil {
		return err
	}

	var n = int(min(buf.Total(), int64(buf.Capacity())))
	if n == 0 {
		s.logger.Warn("No audio to decode")
		return nil
	}

	err = s.Decode(ctx, buf.Snapshot(n), s.clock.Now())
	if err != nil {
		s.logger.Error("Decode failed", "err", err)
	}

	return err
}

// Start creates a session and runs it on its own goroutine.  Wait for the
// outcome with Wait, or end it early with Shutdown.
func Start(ctx context.Context, cfg Config, src SampleSource, opts ...SessionOption) (*Session, error) {
	var s, err = NewSession(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}

	go func() {
		defer close(s.finished)
		s.runErr = s.Run(ctx, src)
	}()

	return s, nil
}

// Wait for a session begun with Start to finish.
func (s *Session) Wait() error {
	<-s.finished

	return s.runErr
}
