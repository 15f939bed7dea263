package event

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalWritesJSONLines(t *testing.T) {
	dir := t.TempDir()

	j, err := OpenJournal(dir)
	require.NoError(t, err)

	j.Out(QueueEvents, ActionMessageCreated, []byte(`{"id":1}`))
	j.Out(QueueEvents, ActionMessageDeleted, []byte(`{"id":1}`))
	j.In(QueueCommands, ActionJoinChat, []byte(`{"chatId":2}`))
	require.NoError(t, j.Close())

	out := readLines(t, filepath.Join(dir, outLogFile))
	require.Len(t, out, 2)
	assert.Equal(t, ActionMessageCreated, out[0].Action)
	assert.Equal(t, QueueEvents, out[0].Service)
	assert.Equal(t, `{"id":1}`, out[0].Data)
	assert.NotZero(t, out[0].Time)

	in := readLines(t, filepath.Join(dir, inLogFile))
	require.Len(t, in, 1)
	assert.Equal(t, ActionJoinChat, in[0].Action)
}

func TestNilJournal(t *testing.T) {
	var j *Journal
	j.In(QueueCommands, ActionJoinChat, nil)
	j.Out(QueueEvents, ActionUserStatus, nil)
	assert.NoError(t, j.Close())
}

func readLines(t *testing.T, path string) []LogData {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []LogData
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line LogData
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.NoError(t, scanner.Err())
	return lines
}
