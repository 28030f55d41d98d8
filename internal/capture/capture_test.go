package capture

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ringline-ai/ringline/internal/session"
	"github.com/ringline-ai/ringline/pkg/audio"
	sttmock "github.com/ringline-ai/ringline/pkg/provider/stt/mock"
)

type recordingSegmenter struct {
	frames []audio.Frame
}

func (r *recordingSegmenter) Push(f audio.Frame) { r.frames = append(r.frames, f) }

func testFrame(fill byte) []byte {
	return bytes.Repeat([]byte{fill}, audio.FrameBytes)
}

func TestIngestFansOut(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	stream := sttmock.NewSession()
	seg := &recordingSegmenter{}
	c := New(sess, stream, seg)

	c.Ingest(testFrame(0x7F))
	c.Ingest(testFrame(0x80))
	c.Ingest(nil) // dropped

	if got := len(stream.SentFrames); got != 2 {
		t.Errorf("stream received %d frames, want 2", got)
	}
	if got := len(seg.frames); got != 2 {
		t.Fatalf("segmenter received %d frames, want 2", got)
	}
	if seg.frames[0].Timestamp != 0 {
		t.Errorf("first frame timestamp = %v, want 0", seg.frames[0].Timestamp)
	}
	if seg.frames[1].Timestamp != audio.FrameDuration {
		t.Errorf("second frame timestamp = %v, want %v", seg.frames[1].Timestamp, audio.FrameDuration)
	}
}

func TestIngestMarksBaselineWhileListening(t *testing.T) {
	t.Parallel()

	now := time.Now()
	clock := func() time.Time { return now }
	sess := session.New("CA1", "MS1", session.WithClock(clock))
	c := New(sess, nil, nil)

	c.Ingest(testFrame(0xFF))
	now = now.Add(120 * time.Millisecond)
	sess.Mark("stt_done")
	// A mark landing means the baseline was set; DumpTimingAndReset resets it.
	sess.DumpTimingAndReset(sess.TurnBaseline())

	// After the caller stops listening, no baseline restarts.
	sess.TransitionTo(session.StateProcessing)
	c.Ingest(testFrame(0xFF))
	sess.Mark("late")
	sess.DumpTimingAndReset(sess.TurnBaseline()) // nothing to dump: Mark without baseline is dropped
}

func TestRollingBufferBounded(t *testing.T) {
	t.Parallel()

	sess := session.New("CA1", "MS1")
	c := New(sess, nil, nil, WithBufferFrames(3))

	for i := 0; i < 5; i++ {
		c.Ingest(testFrame(byte(i)))
	}

	buf := c.Buffered()
	if len(buf) != 3 {
		t.Fatalf("buffer holds %d frames, want 3", len(buf))
	}
	if buf[0].Data[0] != 2 || buf[2].Data[0] != 4 {
		t.Errorf("buffer kept wrong frames: first=%d last=%d", buf[0].Data[0], buf[2].Data[0])
	}
}

func TestRawDump(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "call.ulaw")
	sess := session.New("CA1", "MS1")
	c := New(sess, nil, nil, WithRawDump(path))

	c.Ingest(testFrame(0x11))
	c.Ingest(testFrame(0x22))
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read dump: %v", err)
	}
	if len(data) != 2*audio.FrameBytes {
		t.Errorf("dump holds %d bytes, want %d", len(data), 2*audio.FrameBytes)
	}
	if data[0] != 0x11 || data[audio.FrameBytes] != 0x22 {
		t.Error("dump content out of order")
	}

	// Closing twice is fine.
	if err := c.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
