package server

import (
	"sync"

	log "github.com/sirupsen/logrus"
)

// Event is one server-sent event pushed to bridge clients.
type Event struct {
	Name string
	Data any
}

// Broadcaster fans live session events out to connected SSE clients.
type Broadcaster struct {
	sync.RWMutex
	clients map[string]chan Event
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		clients: make(map[string]chan Event),
	}
}

// Broadcast sends the event to every client. Sends are non-blocking; a
// client that cannot keep up loses events rather than stalling the rest.
func (b *Broadcaster) Broadcast(event Event) {
	b.RLock()
	defer b.RUnlock()

	for id, client := range b.clients {
		select {
		case client <- event:
		default:
			log.Warnf("Client channel full, skipping event for client: %v", id)
		}
	}
}

// AddClient registers a client channel under the given key.
func (b *Broadcaster) AddClient(key string, client chan Event) {
	b.Lock()
	defer b.Unlock()
	b.clients[key] = client
	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Adding client to broadcaster")
}

// RemoveClient closes and drops the client channel for the key.
func (b *Broadcaster) RemoveClient(key string) {
	b.Lock()
	defer b.Unlock()

	if client, ok := b.clients[key]; ok {
		close(client)
		delete(b.clients, key)
	}

	log.WithFields(log.Fields{
		"key":   key,
		"count": len(b.clients),
	}).Info("Removed client from broadcaster")
}

func (b *Broadcaster) Shutdown() {
	log.Info("Shutting down broadcaster")
	b.Lock()
	defer b.Unlock()
	for key, client := range b.clients {
		close(client)
		delete(b.clients, key)
	}
}
