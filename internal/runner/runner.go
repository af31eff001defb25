// Package runner executes a pipeline's shell command and turns the outcome
// into an execution record.
package runner

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/patrickspencer/pipewatch/internal/store"
)

const ringBufSize = 64 * 1024 // 64KB

// RingBuffer is a fixed-size circular buffer that implements io.Writer.
// It retains only the most recent bytes written, up to its capacity.
type RingBuffer struct {
	buf  []byte
	size int
	pos  int
	full bool
}

// NewRingBuffer creates a RingBuffer with the given capacity.
func NewRingBuffer(size int) *RingBuffer {
	return &RingBuffer{buf: make([]byte, size), size: size}
}

// Write implements io.Writer. Once full, each write overwrites the oldest bytes.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if n >= rb.size {
		copy(rb.buf, p[n-rb.size:])
		rb.pos = 0
		rb.full = true
		return n, nil
	}

	oldPos := rb.pos
	if first := rb.size - rb.pos; first >= n {
		copy(rb.buf[rb.pos:], p)
	} else {
		copy(rb.buf[rb.pos:], p[:first])
		copy(rb.buf, p[first:])
	}

	rb.pos = (rb.pos + n) % rb.size
	if !rb.full && rb.pos <= oldPos {
		rb.full = true
	}
	return n, nil
}

// String returns the buffered contents in chronological order.
func (rb *RingBuffer) String() string {
	if !rb.full {
		return string(rb.buf[:rb.pos])
	}
	out := make([]byte, rb.size)
	n := copy(out, rb.buf[rb.pos:])
	copy(out[n:], rb.buf[:rb.pos])
	return string(out)
}

// Command describes one pipeline run.
type Command struct {
	Pipeline string
	Shell    string
	Env      map[string]string
	Timeout  time.Duration
	WorkDir  string
	// Stdout and Stderr, when set, receive a live copy of the output.
	Stdout io.Writer
	Stderr io.Writer
}

// Result is the outcome of a run.
type Result struct {
	Pipeline   string
	StartTime  time.Time
	EndTime    time.Time
	ExitCode   int
	Err        string
	StdoutTail string
	StderrTail string
}

// Succeeded reports whether the command exited cleanly.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0 && r.Err == ""
}

// Runner executes shell commands.
type Runner struct {
	now func() time.Time
}

// NewRunner creates a new Runner.
func NewRunner() *Runner {
	return &Runner{now: time.Now}
}

// Run executes c.Shell through sh -c and waits for it to finish.
func (r *Runner) Run(ctx context.Context, c Command) *Result {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.Shell)
	cmd.Dir = c.WorkDir
	cmd.WaitDelay = time.Second

	stdoutBuf := NewRingBuffer(ringBufSize)
	stderrBuf := NewRingBuffer(ringBufSize)
	cmd.Stdout = newTeeWriter(stdoutBuf, c.Stdout)
	cmd.Stderr = newTeeWriter(stderrBuf, c.Stderr)

	res := &Result{Pipeline: c.Pipeline, StartTime: r.now().UTC()}
	cmd.Env = BuildEnv(c.Env, c.Pipeline, res.StartTime)
	err := cmd.Run()
	res.EndTime = r.now().UTC()
	res.StdoutTail = stdoutBuf.String()
	res.StderrTail = stderrBuf.String()

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.Err = "timeout after " + c.Timeout.String()
		} else {
			res.Err = err.Error()
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			res.ExitCode = -1
		}
	}
	return res
}

// Execution converts r into a record. The error message is the run error
// followed by the last lines of stderr.
func (r *Result) Execution() *store.Execution {
	end := r.EndTime
	e := &store.Execution{
		PipelineName:     r.Pipeline,
		Status:           store.StatusSuccess,
		StartTime:        r.StartTime,
		EndTime:          &end,
		RecordsProcessed: ParseRecordsProcessed(r.StdoutTail),
	}
	if !r.Succeeded() {
		e.Status = store.StatusFailed
		msg := r.Err
		if tail := lastLines(r.StderrTail, 5); tail != "" {
			msg += ": " + tail
		}
		e.ErrorMessage = msg
	}
	return e
}

var recordsPattern = regexp.MustCompile(`(?m)^\s*records_processed\s*[=:]\s*(\d+)\s*$`)

// ParseRecordsProcessed returns the count from the last line of the form
// "records_processed=N" in output, or nil when there is none.
func ParseRecordsProcessed(output string) *int64 {
	matches := recordsPattern.FindAllStringSubmatch(output, -1)
	if len(matches) == 0 {
		return nil
	}
	n, err := strconv.ParseInt(matches[len(matches)-1][1], 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

func lastLines(s string, n int) string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(s))
	sc.Buffer(make([]byte, 0, 4096), ringBufSize)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, " | ")
}

type teeWriter struct {
	primary   io.Writer
	secondary io.Writer
}

func newTeeWriter(primary io.Writer, secondary io.Writer) io.Writer {
	if secondary == nil {
		return primary
	}
	return &teeWriter{
		primary:   primary,
		secondary: secondary,
	}
}

func (t *teeWriter) Write(p []byte) (int, error) {
	n, err := t.primary.Write(p)
	_, _ = t.secondary.Write(p)
	return n, err
}
