package jt9decode

/*------------------------------------------------------------------
 *
 * Purpose:	Run jt9 as a child process and collect what it prints.
 *
 * Description:	jt9 is started with the shared memory key and some
 *		directories:
 *
 *			jt9 -s <key> -w 1 -m 1 -e <exe dir> -a <data dir> -t <temp dir>
 *
 *		stdout and stderr are merged and read line by line on a
 *		goroutine.  The lines are handed over on a channel so the
 *		decode loop can pick up whatever has arrived while it waits
 *		for a decode to finish.
 *
 *		jt9 is Fortran and C.  Writing to a pipe, its output is block
 *		buffered and may only show up when it exits.  Under a pseudo
 *		terminal it is line buffered, which is why --pty exists.
 *
 *------------------------------------------------------------------*/

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/creack/pty"
)

// Engine is a running decoder process.
type Engine interface {
	// Lines delivers output, one line at a time without the line ending.
	// Closed when there will be no more.
	Lines() <-chan string

	// Exited is closed once the process has gone.
	Exited() <-chan struct{}

	// ExitErr is the result of waiting for the process.  Only meaningful
	// after Exited is closed.
	ExitErr() error

	Kill() error
}

// Launcher starts an Engine attached to the shared memory known by key.
type Launcher interface {
	Launch(ctx context.Context, key string) (Engine, error)
}

const engineLineBacklog = 256

const engineMaxLine = 64 * 1024

type ProcessLauncher struct {
	Path    string // jt9 binary.
	ExeDir  string // -e
	DataDir string // -a
	TempDir string // -t
	UsePty  bool

	Logger *log.Logger
}

func (l *ProcessLauncher) args(key string) []string {
	return []string{
		"-s", key,
		"-w", "1",
		"-m", "1",
		"-e", orDefault(l.ExeDir, "."),
		"-a", orDefault(l.DataDir, "."),
		"-t", orDefault(l.TempDir, os.TempDir()),
	}
}

func (l *ProcessLauncher) Launch(_ context.Context, key string) (Engine, error) {
	var logger = quietLogger(l.Logger)

	var st, statErr = os.Stat(l.Path)
	if statErr != nil {
		return nil, fmt.Errorf("%w: jt9 binary not found at %s: %w", ErrEngineLaunch, l.Path, statErr)
	}
	if st.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrEngineLaunch, l.Path)
	}

	// Not CommandContext.  jt9 is asked to leave via shared memory and
	// only killed if it will not.
	var cmd = exec.Command(l.Path, l.args(key)...) //nolint:gosec
	var output io.ReadCloser

	if l.UsePty {
		var ptmx, err = pty.Start(cmd)
		if err != nil {
			return nil, fmt.Errorf("%w: starting %s on a pseudo terminal: %w", ErrEngineLaunch, l.Path, err)
		}
		output = ptmx
	} else {
		var r, w, pipeErr = os.Pipe()
		if pipeErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrEngineLaunch, pipeErr)
		}

		cmd.Stdout = w
		cmd.Stderr = w

		var err = cmd.Start()
		w.Close() // The child has its own copy now.
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("%w: starting %s: %w", ErrEngineLaunch, l.Path, err)
		}
		output = r
	}

	logger.Info("Started jt9", "path", l.Path, "pid", cmd.Process.Pid, "args", strings.Join(cmd.Args[1:], " "))

	var p = &process{ //nolint:exhaustruct
		cmd:    cmd,
		lines:  make(chan string, engineLineBacklog),
		exited: make(chan struct{}),
	}

	go p.readLines(output)
	go p.wait()

	return p, nil
}

type process struct {
	cmd    *exec.Cmd
	lines  chan string
	exited chan struct{}

	mu      sync.Mutex
	exitErr error
}

func (p *process) Lines() <-chan string    { return p.lines }
func (p *process) Exited() <-chan struct{} { return p.exited }

func (p *process) ExitErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.exitErr
}

func (p *process) Kill() error {
	var err = p.cmd.Process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}

func (p *process) wait() {
	var err = p.cmd.Wait()

	p.mu.Lock()
	p.exitErr = err
	p.mu.Unlock()

	close(p.exited)
}

func (p *process) readLines(output io.ReadCloser) {
	defer close(p.lines)
	defer output.Close()

	var r = bufio.NewReaderSize(output, 4096)
	var line []byte
	var tooLong = false

	for {
		var chunk, isPrefix, err = r.ReadLine()
		if err != nil {
			// A pseudo terminal reports EIO rather than EOF once the child
			// has closed its side.  Either way there is nothing more to read.
			if !errors.Is(err, io.EOF) && !errors.Is(err, syscall.EIO) && !errors.Is(err, os.ErrClosed) {
				p.lines <- fmt.Sprintf("<error reading jt9 output: %v>", err)
			}
			return
		}

		// Anything this long is not a decode.  Drop it but keep reading,
		// jt9 stops when its output is not consumed.
		if !tooLong {
			line = append(line, chunk...)
			if len(line) > engineMaxLine {
				tooLong = true
				line = line[:0]
			}
		}

		if isPrefix {
			continue
		}

		if tooLong {
			p.lines <- fmt.Sprintf("<jt9 output line longer than %d bytes discarded>", engineMaxLine)
			tooLong = false
		} else {
			p.lines <- strings.TrimRight(string(line), "\r")
		}
		line = line[:0]
	}
}

func orDefault(s string, def string) string {
	if s == "" {
		return def
	}

	return s
}
