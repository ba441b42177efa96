package pitch

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/ajithraghavan/Voice-To-MIDI/internal/errors"
	appexec "github.com/ajithraghavan/Voice-To-MIDI/internal/exec"
)

func TestSliceOracleDrains(t *testing.T) {
	o := NewSliceOracle([]Frame{
		{Frequency: 440, Clarity: 0.95},
		{Frequency: 0, Clarity: 0},
	})

	f, ok := o.Sample()
	assert.True(t, ok)
	assert.Equal(t, 440.0, f.Frequency)

	_, ok = o.Sample()
	assert.True(t, ok)

	_, ok = o.Sample()
	assert.False(t, ok)
}

func TestStreamOracleTracksLatestFrame(t *testing.T) {
	r := io.NopCloser(strings.NewReader(
		"{\"frequency\":220,\"clarity\":0.9}\n" +
			"not json, detector chatter\n" +
			"{\"frequency\":440,\"clarity\":0.97}\n"))
	o := NewStreamOracle(r)

	// The consumer goroutine drains the reader, then the stream closes.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := o.Sample(); !ok {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("stream never closed")
}

func TestDetectorCheckReportsMissingInterpreter(t *testing.T) {
	runner := appexec.NewRunner("/nonexistent/python3", t.TempDir())
	d := NewDetector(runner, "", nil)

	err := d.Check(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrToolNotInstalled)

	var derr *apperrors.DetectorError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "check", derr.Stage)
}

func TestStreamOracleBeforeFirstFrame(t *testing.T) {
	pr, pw := io.Pipe()
	o := NewStreamOracle(pr)
	defer pw.Close()

	f, ok := o.Sample()
	assert.True(t, ok)
	assert.Equal(t, 0.0, f.Frequency)

	go pw.Write([]byte("{\"frequency\":330,\"clarity\":0.95}\n"))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f, ok = o.Sample()
		if ok && f.Frequency == 330 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("frame never arrived")
}
