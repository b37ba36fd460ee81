package history

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreEvictsOldestFirst(t *testing.T) {
	s, err := Open(NewMemoryBackend(), Options{Capacity: 5})
	require.NoError(t, err)

	for i := 0; i < 12; i++ {
		_, err := s.Append(Message{Sender: SenderUser, Text: fmt.Sprintf("m%d", i)})
		require.NoError(t, err)
		assert.LessOrEqual(t, s.Len(), 5)
	}

	got := s.LoadAll()
	require.Len(t, got, 5)
	for i, msg := range got {
		assert.Equal(t, fmt.Sprintf("m%d", i+7), msg.Text)
	}
}

func TestStoreDefaultCapacity(t *testing.T) {
	s, err := Open(nil, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, s.Capacity())

	for i := 0; i < DefaultCapacity+3; i++ {
		_, err := s.Append(Message{Sender: SenderAgent, Text: fmt.Sprint(i)})
		require.NoError(t, err)
	}
	got := s.LoadAll()
	require.Len(t, got, DefaultCapacity)
	assert.Equal(t, "3", got[0].Text)
}

func TestStoreAppendStampsTimestamp(t *testing.T) {
	s, err := Open(nil, Options{})
	require.NoError(t, err)

	stored, err := s.Append(Message{Sender: SenderUser, Text: "Hello"})
	require.NoError(t, err)
	assert.False(t, stored.Timestamp.IsZero())
}

func TestStoreLoadAllReturnsCopy(t *testing.T) {
	s, err := Open(nil, Options{})
	require.NoError(t, err)
	_, err = s.Append(Message{Sender: SenderUser, Text: "original"})
	require.NoError(t, err)

	got := s.LoadAll()
	got[0].Text = "mutated"
	assert.Equal(t, "original", s.LoadAll()[0].Text)
}

func TestStoreSurvivesReopen(t *testing.T) {
	backends := map[string]func(t *testing.T) Backend{
		"file": func(t *testing.T) Backend {
			b, err := NewBackend(t.TempDir())
			require.NoError(t, err)
			return b
		},
		"sqlite": func(t *testing.T) Backend {
			b, err := NewBackend(filepath.Join(t.TempDir(), "history.db"))
			require.NoError(t, err)
			return b
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			b := open(t)
			s, err := Open(b, Options{Capacity: 3})
			require.NoError(t, err)
			for _, text := range []string{"a", "b", "c", "d"} {
				_, err := s.Append(Message{Sender: SenderUser, Text: text, AudioURL: "/audio/" + text})
				require.NoError(t, err)
			}

			reopened, err := Open(b, Options{Capacity: 3})
			require.NoError(t, err)
			got := reopened.LoadAll()
			require.Len(t, got, 3)
			assert.Equal(t, "b", got[0].Text)
			assert.Equal(t, "/audio/d", got[2].AudioURL)
			require.NoError(t, reopened.Close())
		})
	}
}

func TestStoreOpenShrinksToCapacity(t *testing.T) {
	b := NewMemoryBackend()
	s, err := Open(b, Options{Capacity: 10})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		_, err := s.Append(Message{Sender: SenderUser, Text: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	small, err := Open(b, Options{Capacity: 4})
	require.NoError(t, err)
	got := small.LoadAll()
	require.Len(t, got, 4)
	assert.Equal(t, "6", got[0].Text)
}

func TestStoreOpenIgnoresCorruptLog(t *testing.T) {
	b := NewMemoryBackend()
	require.NoError(t, b.Put(DefaultKey, []byte("{not json")))

	s, err := Open(b, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
}

func TestStorePersistsJSONUnderSingleKey(t *testing.T) {
	b := NewMemoryBackend()
	s, err := Open(b, Options{})
	require.NoError(t, err)
	_, err = s.Append(Message{Sender: SenderAgent, Text: "Hi", Correction: "Hi!"})
	require.NoError(t, err)

	raw, ok, err := b.Get(DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Contains(t, string(raw), `"sender":"agent"`)
	assert.Contains(t, string(raw), `"correction":"Hi!"`)
	assert.NotContains(t, string(raw), "audioUrl")
}
