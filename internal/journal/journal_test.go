package journal

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ChuLiYu/workclip/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T, opts Options) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.log")
	j, err := Open(path, opts)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func stateEvent(player, from, to string, percent float64) Event {
	return Event{
		Kind:     types.EventState,
		PlayerID: types.PlayerID(player),
		From:     from,
		To:       to,
		Percent:  percent,
	}
}

func TestAppendAssignsSeqAndChecksum(t *testing.T) {
	j, _ := openTemp(t, DefaultOptions())

	seq1, err := j.Append(stateEvent("p1", "FREE", "PLAY", 0), false)
	require.NoError(t, err)
	seq2, err := j.Append(stateEvent("p1", "PLAY", "PLAYING", 0.1), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), seq1)
	assert.Equal(t, uint64(2), seq2)
	assert.Equal(t, uint64(2), j.GetLastSeq())

	var got []Event
	require.NoError(t, j.Replay(func(e Event) error {
		got = append(got, e)
		return nil
	}))
	require.Len(t, got, 2, "replay flushes buffered events first")
	assert.Equal(t, j.Session(), got[0].Session)
	assert.True(t, VerifyChecksum(got[1]))
	assert.NotZero(t, got[1].Timestamp)
}

func TestReplayAfterSkipsFoldedEvents(t *testing.T) {
	j, _ := openTemp(t, DefaultOptions())
	for i := 0; i < 5; i++ {
		_, err := j.Append(stateEvent("p1", "A", "B", float64(i)/10), false)
		require.NoError(t, err)
	}

	var seqs []uint64
	require.NoError(t, j.ReplayAfter(3, func(e Event) error {
		seqs = append(seqs, e.Seq)
		return nil
	}))
	assert.Equal(t, []uint64{4, 5}, seqs)
}

func TestReopenContinuesSeq(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	_, err := j.Append(stateEvent("p1", "A", "B", 0), true)
	require.NoError(t, err)
	_, err = j.Append(stateEvent("p1", "B", "C", 0), true)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j2, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer j2.Close()
	assert.Equal(t, uint64(2), j2.GetLastSeq())
	assert.NotEqual(t, j.Session(), j2.Session())

	seq, err := j2.Append(stateEvent("p1", "C", "D", 0), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), seq)
}

func TestRotateArchivesAndKeepsSeq(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	_, err := j.Append(stateEvent("p1", "A", "B", 0), false)
	require.NoError(t, err)

	archive, err := j.Rotate()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(archive, ".gz"))

	archived, err := ReadAll(archive)
	require.NoError(t, err)
	require.Len(t, archived, 1)

	seq, err := j.Append(stateEvent("p1", "B", "C", 0), true)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq, "seq keeps growing so snapshot LastSeq stays meaningful")

	live, err := ReadAll(path)
	require.NoError(t, err)
	require.Len(t, live, 1)
	assert.Equal(t, uint64(2), live[0].Seq)
}

func TestChecksumMismatchStopsReplay(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	_, err := j.Append(stateEvent("p1", "FREE", "PLAY", 0), true)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(raw, []byte(`"to":"PLAY"`), []byte(`"to":"STOP"`), 1)
	require.NoError(t, os.WriteFile(path, tampered, 0644))

	_, err = ReadAll(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
	var ce *ChecksumError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, uint64(1), ce.Seq)
}

func TestCorruptedTail(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	_, err := j.Append(stateEvent("p1", "A", "B", 0), true)
	require.NoError(t, err)
	require.NoError(t, j.Close())

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"seq":2,"kind":"STA`)
	require.NoError(t, err)
	f.Close()

	last, err := GetLastEvent(path)
	assert.True(t, errors.Is(err, ErrCorrupted))
	require.NotNil(t, last)
	assert.Equal(t, uint64(1), last.Seq)

	j2, err := Open(path, DefaultOptions())
	require.NoError(t, err, "a torn tail does not prevent opening")
	assert.Equal(t, uint64(1), j2.GetLastSeq())
	j2.Close()
}

func TestClosedJournal(t *testing.T) {
	j, _ := openTemp(t, DefaultOptions())
	require.NoError(t, j.Close())
	require.NoError(t, j.Close(), "close is idempotent")

	_, err := j.Append(stateEvent("p1", "A", "B", 0), false)
	assert.Equal(t, ErrClosed, err)
	assert.Equal(t, ErrClosed, j.Flush())
	_, err = j.Rotate()
	assert.Equal(t, ErrClosed, err)
}

func TestBufferFlushesWhenFull(t *testing.T) {
	j, path := openTemp(t, Options{BufferSize: 2, FlushInterval: time.Hour})
	_, err := j.Append(stateEvent("p1", "A", "B", 0), false)
	require.NoError(t, err)

	events, err := ReadAll(path)
	require.NoError(t, err)
	assert.Empty(t, events, "first event still buffered")

	_, err = j.Append(stateEvent("p1", "B", "C", 0), false)
	require.NoError(t, err)
	events, err = ReadAll(path)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestDumpValidateAndStats(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	_, err := j.Append(stateEvent("p1", "FREE", "PLAY", 0), false)
	require.NoError(t, err)
	_, err = j.Append(Event{Kind: types.EventFinish, PlayerID: "p2", Percent: 1, Detail: "done"}, false)
	require.NoError(t, err)
	require.NoError(t, j.Flush())

	var buf bytes.Buffer
	require.NoError(t, Dump(path, &buf))
	out := buf.String()
	assert.Contains(t, out, "[seq:1] STATE p1 FREE -> PLAY")
	assert.Contains(t, out, "[seq:2] FINISH p2 1.000")
	assert.Contains(t, out, "done")

	assert.NoError(t, Validate(path))

	st, err := GetStats(path)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalEvents)
	assert.Equal(t, 1, st.Kinds[types.EventFinish])
	assert.Equal(t, 1, st.Sessions)
	assert.Equal(t, uint64(1), st.FirstSeq)
	assert.Equal(t, uint64(2), st.LastSeq)
}

func TestAdvanceSeqAfterRotateAndReopen(t *testing.T) {
	j, path := openTemp(t, DefaultOptions())
	for i := 0; i < 3; i++ {
		_, err := j.Append(stateEvent("p1", "A", "B", 0), false)
		require.NoError(t, err)
	}
	_, err := j.Rotate()
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j2, err := Open(path, DefaultOptions())
	require.NoError(t, err)
	defer j2.Close()
	assert.Equal(t, uint64(0), j2.GetLastSeq(), "the live file is empty after rotation")

	j2.AdvanceSeq(3)
	j2.AdvanceSeq(1)
	seq, err := j2.Append(stateEvent("p1", "B", "C", 0), false)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), seq)
}
