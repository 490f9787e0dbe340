package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// RecordSampleRate is the capture rate requested from Pulse.
	RecordSampleRate = 16000
	fragmentBytes    = 640 // 20ms @ 16kHz mono s16
)

// ErrNoAudio is returned by Stop when the stream delivered no samples.
var ErrNoAudio = errors.New("no audio captured")

// Recorded is a finished capture as interleaved float samples.
type Recorded struct {
	Samples    []float32
	SampleRate int
	Channels   int
	Device     Device
}

// Duration reports the recorded length.
func (r Recorded) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	frames := len(r.Samples) / r.Channels
	return time.Duration(frames) * time.Second / time.Duration(r.SampleRate)
}

// Recording buffers PCM from one Pulse source until stopped or cancelled.
type Recording struct {
	device Device

	client *pulse.Client
	stream *pulse.RecordStream

	mu      sync.Mutex
	pcm     []byte
	stopped bool
}

// StartRecording opens a 16 kHz mono s16 record stream on device. The
// stream halts when ctx is cancelled; buffered audio stays available to Stop.
func StartRecording(ctx context.Context, device Device) (*Recording, error) {
	client, err := newPulseClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(device.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", device.ID, err)
	}

	rec := &Recording{device: device, client: client}
	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(rec.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(RecordSampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytes),
		pulse.RecordMediaName("dictate recording"),
	)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	rec.stream = stream
	stream.Start()

	go func() {
		<-ctx.Done()
		rec.halt()
	}()
	return rec, nil
}

// Device returns the source being recorded.
func (r *Recording) Device() Device {
	return r.device
}

// Stop ends capture and returns everything recorded so far.
func (r *Recording) Stop() (Recorded, error) {
	r.halt()

	r.mu.Lock()
	pcm := r.pcm
	r.pcm = nil
	r.mu.Unlock()

	if len(pcm) < 2 {
		return Recorded{}, ErrNoAudio
	}
	return Recorded{
		Samples:    pcm16ToFloat(pcm),
		SampleRate: RecordSampleRate,
		Channels:   1,
		Device:     r.device,
	}, nil
}

// Cancel ends capture and discards the buffered audio.
func (r *Recording) Cancel() {
	r.halt()
	r.mu.Lock()
	r.pcm = nil
	r.mu.Unlock()
}

// halt stops the Pulse stream exactly once.
func (r *Recording) halt() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	r.mu.Unlock()

	if r.stream != nil {
		r.stream.Stop()
		r.stream.Close()
	}
	if r.client != nil {
		r.client.Close()
	}
}

func (r *Recording) onPCM(buffer []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return 0, io.EOF
	}
	r.pcm = append(r.pcm, buffer...)
	return len(buffer), nil
}

func pcm16ToFloat(pcm []byte) []float32 {
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		samples[i] = float32(v) / 32768
	}
	return samples
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}
