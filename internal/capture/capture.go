package capture

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Segment is one bounded-duration slice of captured audio. Start and End are
// wall-clock bounds; consecutive segments are contiguous.
type Segment struct {
	Data  []byte
	Start time.Time
	End   time.Time
}

type Config struct {
	SampleRate        int
	Channels          int
	Format            string
	BufferSize        int
	Device            string
	ChannelBufferSize int
	SegmentDuration   time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		Format:            "s16le",
		BufferSize:        8192,
		Device:            "",
		ChannelBufferSize: 30,
		// 25s keeps each upload safely under the 30s remote API limit
		// while minimizing call count.
		SegmentDuration: 25 * time.Second,
	}
}

// Encoder is the microphone capture capability consumed by the session
// controller. Implementations emit a segment at a fixed interval; after
// Stop, the trailing partial segment is emitted and the segment channel is
// closed. Channel close is the stop acknowledgment.
type Encoder interface {
	Start(ctx context.Context) (<-chan Segment, <-chan error, error)
	Flush() error
	Pause() error
	Resume() error
	Stop() error
	MimeType() string
}

// Recorder captures the microphone through a pw-record subprocess and slices
// the PCM stream into fixed-duration segments.
type Recorder struct {
	config    Config
	recording atomic.Bool
	stopping  atomic.Bool
	paused    atomic.Bool

	mu       sync.Mutex // guards cmd, cancel, buf, segStart
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	buf      []byte
	segStart time.Time

	flushCh chan struct{}
	wg      sync.WaitGroup
}

func NewRecorder(config Config) *Recorder {
	return &Recorder{
		config:  config,
		flushCh: make(chan struct{}, 1),
	}
}

func NewDefaultRecorder() *Recorder { return NewRecorder(DefaultConfig()) }

func (r *Recorder) IsRecording() bool {
	return r.recording.Load()
}

// MimeType reports the negotiated encoding of emitted segments.
func (r *Recorder) MimeType() string {
	return fmt.Sprintf("audio/pcm;format=%s;rate=%d", r.config.Format, r.config.SampleRate)
}

func (r *Recorder) Start(ctx context.Context) (<-chan Segment, <-chan error, error) {
	if r.recording.Load() {
		return nil, nil, fmt.Errorf("already recording")
	}

	if err := r.validateConfig(); err != nil {
		return nil, nil, err
	}

	if err := CheckPipeWireAvailable(ctx); err != nil {
		return nil, nil, fmt.Errorf("PipeWire not available: %w", err)
	}

	recCtx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(recCtx, "pw-record", r.buildPwRecordArgs()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("create stderr pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("start pw-record: %w", err)
	}

	// Log stderr lines to aid diagnostics.
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			log.Printf("capture stderr: %s", scanner.Text())
		}
	}()

	segCh := make(chan Segment, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)
	readerDone := make(chan struct{})

	r.mu.Lock()
	r.cmd = cmd
	r.cancel = cancel
	r.buf = nil
	r.segStart = time.Now()
	r.mu.Unlock()

	r.stopping.Store(false)
	r.paused.Store(false)
	r.recording.Store(true)

	r.wg.Add(2)
	go r.readLoop(stdout, errCh, readerDone)
	go r.segmentLoop(segCh, readerDone)

	return segCh, errCh, nil
}

// readLoop accumulates PCM frames into the current segment buffer. A read
// failure while not stopping means the capture process or device went away.
func (r *Recorder) readLoop(stdout io.Reader, errCh chan<- error, readerDone chan struct{}) {
	defer func() {
		close(readerDone)
		r.wg.Done()
	}()

	buffer := make([]byte, r.config.BufferSize)
	for {
		n, readErr := stdout.Read(buffer)
		if n > 0 {
			r.mu.Lock()
			r.buf = append(r.buf, buffer[:n]...)
			r.mu.Unlock()
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) || r.stopping.Load() {
				if !r.stopping.Load() {
					r.emitErr(errCh, fmt.Errorf("capture stream ended unexpectedly (device lost?)"))
				}
				return
			}
			r.emitErr(errCh, fmt.Errorf("read audio: %w", readErr))
			return
		}
	}
}

// segmentLoop emits a segment every SegmentDuration, on flush requests, and
// finally when the reader finishes. It closes segCh as the stop ack.
func (r *Recorder) segmentLoop(segCh chan<- Segment, readerDone <-chan struct{}) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.config.SegmentDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if r.paused.Load() {
				continue
			}
			r.emit(segCh)

		case <-r.flushCh:
			r.emit(segCh)

		case <-readerDone:
			r.emit(segCh)
			close(segCh)

			r.mu.Lock()
			if r.cmd != nil {
				_ = r.cmd.Wait()
				r.cmd = nil
			}
			r.cancel = nil
			r.mu.Unlock()
			r.recording.Store(false)
			return
		}
	}
}

// emit sends the buffered audio as one segment. Empty buffers emit nothing.
func (r *Recorder) emit(segCh chan<- Segment) {
	now := time.Now()

	r.mu.Lock()
	if len(r.buf) == 0 {
		r.segStart = now
		r.mu.Unlock()
		return
	}
	data := r.buf
	r.buf = nil
	seg := Segment{Data: data, Start: r.segStart, End: now}
	r.segStart = now
	r.mu.Unlock()

	segCh <- seg
}

// Flush requests immediate emission of the buffered partial segment.
func (r *Recorder) Flush() error {
	if !r.recording.Load() {
		return fmt.Errorf("not recording")
	}
	select {
	case r.flushCh <- struct{}{}:
	default:
		// flush already requested
	}
	return nil
}

// Pause suspends the capture process without losing buffered audio.
func (r *Recorder) Pause() error {
	if !r.recording.Load() || r.paused.Load() {
		return nil
	}
	if err := r.signal(syscall.SIGSTOP); err != nil {
		return fmt.Errorf("pause capture: %w", err)
	}
	r.paused.Store(true)
	return nil
}

func (r *Recorder) Resume() error {
	if !r.recording.Load() || !r.paused.Load() {
		return nil
	}
	if err := r.signal(syscall.SIGCONT); err != nil {
		return fmt.Errorf("resume capture: %w", err)
	}
	r.paused.Store(false)
	return nil
}

func (r *Recorder) signal(sig syscall.Signal) error {
	r.mu.Lock()
	cmd := r.cmd
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return fmt.Errorf("capture process not running")
	}
	return cmd.Process.Signal(sig)
}

// Stop terminates capture. The trailing partial segment is emitted before
// the segment channel closes; callers await the close as the stop ack.
func (r *Recorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}
	r.stopping.Store(true)

	// A paused process would never reach EOF.
	if r.paused.Load() {
		_ = r.signal(syscall.SIGCONT)
		r.paused.Store(false)
	}

	r.mu.Lock()
	cancel := r.cancel
	r.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) emitErr(errCh chan<- error, err error) {
	select {
	case errCh <- err:
	default:
		// Best-effort; avoid blocking
	}
	log.Printf("capture error: %v", err)
}

func (r *Recorder) buildPwRecordArgs() []string {
	args := []string{
		"--format", r.config.Format,
		"--rate", strconv.Itoa(r.config.SampleRate),
		"--channels", strconv.Itoa(r.config.Channels),
		"-", // stdout
	}
	if r.config.Device != "" {
		args = append(args, "--target", r.config.Device)
	}
	return args
}

// CheckPipeWireAvailable probes for a usable capture capability.
func CheckPipeWireAvailable(ctx context.Context) error {
	if _, err := exec.LookPath("pw-record"); err != nil {
		return fmt.Errorf("pw-record not found: %w (install pipewire-tools)", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	cmd := exec.CommandContext(checkCtx, "pw-cli", "info")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("PipeWire not running or accessible: %w", err)
	}
	return nil
}

func (r *Recorder) validateConfig() error {
	if r.config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", r.config.SampleRate)
	}
	if r.config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", r.config.Channels)
	}
	if r.config.BufferSize <= 0 {
		return fmt.Errorf("invalid BufferSize: %d", r.config.BufferSize)
	}
	if r.config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", r.config.ChannelBufferSize)
	}
	if r.config.Format == "" {
		return fmt.Errorf("invalid Format: empty")
	}
	if r.config.SegmentDuration <= 0 {
		return fmt.Errorf("invalid SegmentDuration: %v", r.config.SegmentDuration)
	}
	// For s16le, sample frame size is 2 bytes per sample per channel.
	if r.config.Format == "s16le" {
		frameBytes := 2 * r.config.Channels
		if r.config.BufferSize%frameBytes != 0 {
			log.Printf("capture: BufferSize %d not aligned to frame size %d; audio frames may split",
				r.config.BufferSize, frameBytes)
		}
	}
	return nil
}
