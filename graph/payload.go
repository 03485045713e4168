package graph

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/c360studio/semstreams/component"
	"github.com/c360studio/semstreams/message"
)

func init() {
	err := component.RegisterPayload(&component.PayloadRegistration{
		Domain:      "graph",
		Category:    "entity",
		Version:     "v1",
		Description: "CNL node composed into a graph, carried as triples",
		Factory:     func() any { return &NodePayload{} },
	})
	if err != nil {
		panic("failed to register NodePayload: " + err.Error())
	}
}

// EntityType is the message type of node payloads.
var EntityType = message.Type{Domain: "graph", Category: "entity", Version: "v1"}

// NodePayload is the ingest message for one composed node.
type NodePayload struct {
	EntityID_  string           `json:"id"`
	TripleData []message.Triple `json:"triples"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (p *NodePayload) EntityID() string          { return p.EntityID_ }
func (p *NodePayload) Triples() []message.Triple { return p.TripleData }
func (p *NodePayload) Schema() message.Type      { return EntityType }

// Validate requires an entity id and at least one triple.
func (p *NodePayload) Validate() error {
	if p.EntityID_ == "" {
		return errors.New("entity ID is required")
	}
	if len(p.TripleData) == 0 {
		return errors.New("node payload has no triples")
	}
	return nil
}

func (p *NodePayload) MarshalJSON() ([]byte, error) {
	type Alias NodePayload
	return json.Marshal((*Alias)(p))
}

func (p *NodePayload) UnmarshalJSON(data []byte) error {
	type Alias NodePayload
	return json.Unmarshal(data, (*Alias)(p))
}
