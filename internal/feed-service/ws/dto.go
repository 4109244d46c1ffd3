package ws

import (
	"encoding/json"
	"strconv"
)

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// sem betId nem agentId a assinatura vale para todas as atualizações
type ClientMsg struct {
	Type    string      `json:"type"`
	BetID   json.Number `json:"betId,omitempty"`
	AgentID string      `json:"agentId,omitempty"`
}

// Update é o envelope publicado pelo feed-processor no Redis Pub/Sub
type Update struct {
	Type    string          `json:"type"`
	BetID   int64           `json:"betId,omitempty"`
	AgentID string          `json:"agentId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMsg são as respostas de controle do hub
type ServerMsg struct {
	Type  string `json:"type"` // subscribed | unsubscribed | pong | error
	Topic string `json:"topic,omitempty"`
	Error string `json:"error,omitempty"`
}

const topicAll = "*"

func betTopic(id string) string { return "bet:" + id }

func agentTopic(id string) string { return "agent:" + id }

func (m ClientMsg) topic() string {
	switch {
	case m.BetID != "":
		return betTopic(m.BetID.String())
	case m.AgentID != "":
		return agentTopic(m.AgentID)
	default:
		return topicAll
	}
}

func (u Update) topic() string {
	if u.BetID != 0 {
		return betTopic(strconv.FormatInt(u.BetID, 10))
	}
	if u.AgentID != "" {
		return agentTopic(u.AgentID)
	}
	return ""
}
