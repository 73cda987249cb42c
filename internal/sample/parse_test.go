package sample

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestParseLine(t *testing.T) {
	assert := assert.New(t)

	s, ok, err := ParseLine("8.8.8.8", 0, t0, "23.5")
	assert.True(ok)
	assert.NoError(err)
	assert.False(s.Lost)
	assert.Equal(23.5, s.RTT)
	assert.Equal("8.8.8.8", s.Target)

	s, ok, err = ParseLine("8.8.8.8", 1, t0, "Lost")
	assert.True(ok)
	assert.NoError(err)
	assert.True(s.Lost)

	s, ok, err = ParseLine("8.8.8.8", 2, t0, "Request timed out")
	assert.True(ok)
	assert.NoError(err)
	assert.True(s.Lost)

	// unclassifiable lines degrade to a loss, never fail
	s, ok, err = ParseLine("8.8.8.8", 3, t0, "!?garbage?!")
	assert.True(ok)
	assert.ErrorIs(err, ErrUnexpectedLine)
	assert.True(s.Lost)

	// negative numbers are not valid round-trip times
	s, ok, err = ParseLine("8.8.8.8", 4, t0, "-4.2")
	assert.True(ok)
	assert.Error(err)
	assert.True(s.Lost)

	// blanks and trailers carry no attempt
	_, ok, _ = ParseLine("8.8.8.8", 5, t0, "")
	assert.False(ok)
	_, ok, _ = ParseLine("8.8.8.8", 5, t0, "# packet loss: 25.00%")
	assert.False(ok)
}

func TestReadResults(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	raw := strings.Join([]string{
		"20.1",
		"19.8",
		"Lost",
		"21.4",
		"20.0",
		"destination unreachable",
		"# packet loss: 33.33%",
	}, "\n")

	samples, err := ReadResults(strings.NewReader(raw), "1.1.1.1", t0, time.Second)
	require.NoError(err)
	require.Len(samples, 6)

	lost := 0
	for i, s := range samples {
		assert.Equal(i, s.Seq)
		assert.Equal(t0.Add(time.Duration(i)*time.Second), s.Timestamp)
		if s.Lost {
			lost++
		}
	}
	assert.Equal(2, lost)
}

func TestRecorderRoundTrip(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	var buf bytes.Buffer
	rec := NewRecorder(&buf)

	in := []Sample{
		{Target: "t", Seq: 0, RTT: 12.5},
		{Target: "t", Seq: 1, Lost: true},
		{Target: "t", Seq: 2, RTT: 14},
		{Target: "t", Seq: 3, RTT: 13.75},
	}
	for _, s := range in {
		require.NoError(rec.Record(s))
	}
	require.NoError(rec.Close())

	assert.Contains(buf.String(), "# packet loss: 25.00%")

	out, err := ReadResults(&buf, "t", t0, time.Second)
	require.NoError(err)
	require.Len(out, len(in))
	for i, s := range out {
		assert.Equal(in[i].Lost, s.Lost, "seq %d", i)
		if !s.Lost {
			assert.Equal(in[i].RTT, s.RTT, "seq %d", i)
		}
	}
}

func TestPacketLoss(t *testing.T) {
	assert := assert.New(t)

	tr := &TargetResult{Target: "t"}
	assert.Zero(tr.PacketLoss())

	tr.Samples = []Sample{
		{Seq: 0, RTT: 10},
		{Seq: 1, Lost: true},
		{Seq: 2, RTT: 12},
		{Seq: 3, Lost: true},
	}
	assert.Equal(50.0, tr.PacketLoss())
}

func TestRunResultOutcome(t *testing.T) {
	anError := assert.AnError
	assert := assert.New(t)

	var r *RunResult
	assert.Equal(OutcomeFailure, r.Outcome())

	r = &RunResult{}
	assert.Equal(OutcomeFailure, r.Outcome())

	okTarget := &TargetResult{Target: "a", Samples: []Sample{{RTT: 1}}}
	badTarget := &TargetResult{Target: "b", Err: anError}

	r = &RunResult{Targets: []*TargetResult{okTarget}}
	assert.Equal(OutcomeSuccess, r.Outcome())

	r = &RunResult{Targets: []*TargetResult{okTarget, badTarget}}
	assert.Equal(OutcomePartial, r.Outcome())

	r = &RunResult{Targets: []*TargetResult{badTarget}}
	assert.Equal(OutcomeFailure, r.Outcome())
}
