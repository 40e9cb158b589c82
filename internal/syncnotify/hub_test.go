package syncnotify

import (
	"bufio"
	"encoding/json"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcastReachesTCPClients(t *testing.T) {
	hub := NewHub()

	server, client := net.Pipe()
	defer client.Close()
	hub.Add(server)
	require.Equal(t, 1, hub.Count())

	lines := make(chan string, 1)
	go func() {
		line, err := bufio.NewReader(client).ReadString('\n')
		if err == nil {
			lines <- line
		}
	}()

	hub.Broadcast(NewEvent(EventChapterStored, "ch1_aabbccddeeff", "https://example.com/ch/1", 0))

	var ev LibraryEvent
	require.NoError(t, json.Unmarshal([]byte(<-lines), &ev))
	assert.Equal(t, EventChapterStored, ev.Type)
	assert.Equal(t, "ch1_aabbccddeeff", ev.StableID)
	assert.Equal(t, "https://example.com/ch/1", ev.ChapterURL)
	assert.False(t, ev.At.IsZero())
}

func TestBroadcastDropsDeadClients(t *testing.T) {
	hub := NewHub()

	server, client := net.Pipe()
	hub.Add(server)
	require.NoError(t, client.Close())

	// writing to a closed pipe fails and the client is evicted
	hub.Broadcast(NewEvent(EventChapterDeleted, "ch1_aabbccddeeff", "", 0))
	assert.Equal(t, 0, hub.Count())
}

func TestRemoveClosesConnection(t *testing.T) {
	hub := NewHub()

	server, client := net.Pipe()
	defer client.Close()
	hub.Add(server)
	hub.Remove(server)

	assert.Equal(t, 0, hub.Count())
	stats := hub.Stats()
	assert.Equal(t, 0, stats.TCPClients)
	assert.Equal(t, 0, stats.WSClients)
}
