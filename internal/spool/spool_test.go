package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openSpool(t *testing.T, dir string) *Spool {
	t.Helper()
	s, err := Open(Config{Dir: dir, NoSync: true}, nil)
	require.NoError(t, err)
	return s
}

func entry(code int64) Entry {
	return Entry{
		TaskID:     fmt.Sprintf("%d-1", code),
		Code:       code,
		Version:    1,
		Definition: json.RawMessage(fmt.Sprintf(`{"code":%d}`, code)),
	}
}

func TestSpoolReplayAll(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	s := openSpool(t, dir)

	for i := int64(1); i <= 3; i++ {
		idx, err := s.Append(entry(i))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), idx)
	}
	assert.Equal(t, 3, s.Len())

	var seen []string
	n, err := s.Replay(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.TaskID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"1-1", "2-1", "3-1"}, seen)
	assert.Equal(t, 0, s.Len())

	idx, err := s.Append(entry(4))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), idx)
	require.NoError(t, s.Close())
}

func TestSpoolReplayStopsAtFailure(t *testing.T) {
	dir := t.TempDir()
	s := openSpool(t, dir)
	for i := int64(1); i <= 3; i++ {
		_, err := s.Append(entry(i))
		require.NoError(t, err)
	}

	boom := errors.New("queue down")
	n, err := s.Replay(context.Background(), func(_ context.Context, e Entry) error {
		if e.Code == 2 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, s.Len())
	require.NoError(t, s.Close())

	// 重新打开后剩余条目仍在
	s = openSpool(t, dir)
	defer s.Close()
	var seen []int64
	n, err = s.Replay(context.Background(), func(_ context.Context, e Entry) error {
		seen = append(seen, e.Code)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []int64{2, 3}, seen)
}

func TestSpoolReplayEmpty(t *testing.T) {
	s := openSpool(t, t.TempDir())
	defer s.Close()

	n, err := s.Replay(context.Background(), func(context.Context, Entry) error {
		t.Fatal("no entries expected")
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := Open(Config{}, nil)
	assert.Error(t, err)
}

func TestSpoolResetKeepsForeignFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	s := openSpool(t, dir)
	defer s.Close()

	note := filepath.Join(dir, "README.txt")
	require.NoError(t, os.WriteFile(note, []byte("operator notes"), 0o644))

	for i := int64(1); i <= 2; i++ {
		_, err := s.Append(entry(i))
		require.NoError(t, err)
	}

	n, err := s.Replay(context.Background(), func(context.Context, Entry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, s.Len())

	data, err := os.ReadFile(note)
	require.NoError(t, err)
	assert.Equal(t, "operator notes", string(data))

	_, err = s.Append(entry(9))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
}
