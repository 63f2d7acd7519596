package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/arcade-progress/internal/achievement"
	"github.com/arcade-progress/internal/domain"
	"github.com/arcade-progress/internal/metrics"
)

// Message types
const (
	MessageTypeAchievementUnlocked = "achievement_unlocked"
	MessageTypeLeaderboardUpdate   = "leaderboard_update"
	MessageTypeSubscribe           = "subscribe"
	MessageTypeUnsubscribe         = "unsubscribe"
	MessageTypeSubscribed          = "subscribed"
	MessageTypeUnsubscribed        = "unsubscribed"
	MessageTypePing                = "ping"
	MessageTypePong                = "pong"
	MessageTypeError               = "error"
)

// Topic prefixes
const (
	playerTopicPrefix = "player:"
	gameTopicPrefix   = "game:"
)

// PlayerTopic is the topic carrying a player's unlock notifications
func PlayerTopic(playerID string) string {
	return playerTopicPrefix + playerID
}

// GameTopic is the topic carrying a game's leaderboard updates
func GameTopic(game string) string {
	return gameTopicPrefix + game
}

func validTopic(topic string) bool {
	for _, prefix := range []string{playerTopicPrefix, gameTopicPrefix} {
		if strings.HasPrefix(topic, prefix) && len(topic) > len(prefix) {
			return true
		}
	}
	return false
}

// Message represents a WebSocket message
type Message struct {
	Type      string    `json:"type"`
	Topic     string    `json:"topic,omitempty"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AchievementsUnlocked is the payload of an achievement_unlocked message
type AchievementsUnlocked struct {
	PlayerID     string            `json:"playerId"`
	Achievements []achievement.Def `json:"achievements"`
}

// LeaderboardUpdate is the payload of a leaderboard_update message
type LeaderboardUpdate struct {
	Game    string                    `json:"game"`
	Entries []domain.LeaderboardEntry `json:"entries"`
}

// Hub maintains the set of active clients and fans messages out by topic
type Hub struct {
	// Subscribed clients by topic
	topics map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	subscribe   chan *subscriptionRequest
	unsubscribe chan *subscriptionRequest

	mu      sync.RWMutex
	metrics *metrics.Recorder
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client *Client
	topic  string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		topics:      make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// SetMetrics sets the recorder for the connected clients gauge
func (h *Hub) SetMetrics(m *metrics.Recorder) {
	h.metrics = m
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			n := len(h.allClients)
			h.mu.Unlock()
			h.metrics.SetConnectedClients(n)
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				for topic, clients := range h.topics {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.topics, topic)
						}
					}
				}
				close(client.send)
			}
			n := len(h.allClients)
			h.mu.Unlock()
			h.metrics.SetConnectedClients(n)
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			// a client may already be gone by the time its request arrives
			if h.allClients[req.client] {
				if _, ok := h.topics[req.topic]; !ok {
					h.topics[req.topic] = make(map[*Client]bool)
				}
				h.topics[req.topic][req.client] = true
			}
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "topic", req.topic)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.topics[req.topic]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.topics, req.topic)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "topic", req.topic)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to every subscriber of its topic
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	clients, ok := h.topics[message.Topic]
	if !ok {
		return
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	for client := range clients {
		select {
		case client.send <- data:
		default:
			h.logger.Warn("client buffer full, skipping", "client_id", client.id)
		}
	}
}

func (h *Hub) publish(message *Message) {
	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message", "topic", message.Topic)
	}
}

// NotifyAchievements tells a player's subscribers about fresh unlocks
func (h *Hub) NotifyAchievements(playerID string, unlocked []achievement.Def) {
	if len(unlocked) == 0 {
		return
	}
	h.publish(&Message{
		Type:  MessageTypeAchievementUnlocked,
		Topic: PlayerTopic(playerID),
		Data: AchievementsUnlocked{
			PlayerID:     playerID,
			Achievements: unlocked,
		},
		Timestamp: time.Now(),
	})
}

// NotifyLeaderboard sends the current top entries of game to its subscribers
func (h *Hub) NotifyLeaderboard(game string, entries []domain.LeaderboardEntry) {
	h.publish(&Message{
		Type:  MessageTypeLeaderboardUpdate,
		Topic: GameTopic(game),
		Data: LeaderboardUpdate{
			Game:    game,
			Entries: entries,
		},
		Timestamp: time.Now(),
	})
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a topic
func (h *Hub) Subscribe(client *Client, topic string) {
	h.subscribe <- &subscriptionRequest{client: client, topic: topic}
}

// Unsubscribe removes a client from a topic
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.unsubscribe <- &subscriptionRequest{client: client, topic: topic}
}

// GetSubscriberCount returns the number of subscribers of topic
func (h *Hub) GetSubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// HasSubscribers reports whether anyone listens on topic
func (h *Hub) HasSubscribers(topic string) bool {
	return h.GetSubscriberCount(topic) > 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
