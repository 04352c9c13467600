package jt9decode

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/log"
)

type LineKind int

const (
	LineDropped    LineKind = iota // Blank.
	LineResult                     // A decoded message.
	LineDiagnostic                 // Anything else jt9 says.
)

func (k LineKind) String() string {
	switch k {
	case LineResult:
		return "result"
	case LineDiagnostic:
		return "diagnostic"
	default:
		return "dropped"
	}
}

// Shortest thing that can be a decode: the HHMMSS time and then some.
const minResultLen = 6

/*------------------------------------------------------------------
 *
 * Function:	Classify
 *
 * Purpose:	Is this line from jt9 a decode?
 *
 * Description:	Decodes start with the time, HHMMSS, so the first
 *		character is a digit.  jt9's own status markers such as
 *		<DecodeFinished> start with '<'.
 *
 *------------------------------------------------------------------*/

func Classify(line string) LineKind {
	line = strings.TrimSpace(line)

	if line == "" {
		return LineDropped
	}

	if len(line) > minResultLen && unicode.IsDigit(rune(line[0])) && !strings.HasPrefix(line, "<") {
		return LineResult
	}

	return LineDiagnostic
}

// Demux sends decodes to one place and everything else to another.
type Demux struct {
	mu      sync.Mutex
	results io.Writer
	diag    *log.Logger
	hooks   []func(line string)
	count   int
}

// NewDemux writes decodes to results, one per line, and logs the rest.
func NewDemux(results io.Writer, diag *log.Logger) *Demux {
	return &Demux{ //nolint:exhaustruct
		results: results,
		diag:    quietLogger(diag).WithPrefix("jt9"),
	}
}

// OnResult registers fn to see every decode after it has been written.
func (d *Demux) OnResult(fn func(line string)) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.hooks = append(d.hooks, fn)
}

// Handle classifies one line and sends it on its way.
func (d *Demux) Handle(line string) LineKind {
	line = strings.TrimSpace(line)

	var kind = Classify(line)

	switch kind {
	case LineResult:
		d.mu.Lock()
		fmt.Fprintln(d.results, line) //nolint:errcheck
		d.count++
		var hooks = d.hooks
		d.mu.Unlock()

		for _, fn := range hooks {
			fn(line)
		}

	case LineDiagnostic:
		d.diag.Print(line)

	case LineDropped:
	}

	return kind
}

// Results is how many decodes have been passed through.
func (d *Demux) Results() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.count
}
