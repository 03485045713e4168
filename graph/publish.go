package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360studio/semcnl/identity"
	"github.com/c360studio/semcnl/vocabulary/cnl"
	"github.com/c360studio/semstreams/message"
)

// GraphIngestSubject is the subject composed nodes are published on.
const GraphIngestSubject = "graph.ingest.entity"

// tripleSource identifies semcnl as the origin of published triples.
const tripleSource = "semcnl.compose"

// Publisher sends data to a JetStream subject. natsclient.Client
// implements it.
type Publisher interface {
	PublishToStream(ctx context.Context, subject string, data []byte) error
}

// Publish sends one NodePayload per record of doc to subject, or to
// GraphIngestSubject when subject is empty. A nil publisher is a no-op.
func Publish(ctx context.Context, p Publisher, subject string, doc *Document) error {
	if p == nil {
		return nil
	}
	if subject == "" {
		subject = GraphIngestSubject
	}

	now := time.Now().UTC()
	for _, payload := range Payloads(doc, now) {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal node %s: %w", payload.EntityID_, err)
		}
		if err := p.PublishToStream(ctx, subject, data); err != nil {
			return fmt.Errorf("publish node %s: %w", payload.EntityID_, err)
		}
	}
	return nil
}

// Payloads builds the ingest payloads of doc, one per record.
func Payloads(doc *Document, ts time.Time) []*NodePayload {
	payloads := make([]*NodePayload, 0, len(doc.Records))
	for _, rec := range doc.Records {
		payloads = append(payloads, &NodePayload{
			EntityID_:  NodeEntityID(doc.UserID, rec.ID),
			TripleData: recordTriples(doc, rec, ts),
			UpdatedAt:  ts,
		})
	}
	return payloads
}

// Triples flattens every record of doc into triples.
func Triples(doc *Document, ts time.Time) []message.Triple {
	var triples []message.Triple
	for _, rec := range doc.Records {
		triples = append(triples, recordTriples(doc, rec, ts)...)
	}
	return triples
}

func recordTriples(doc *Document, rec NodeRecord, ts time.Time) []message.Triple {
	subject := NodeEntityID(doc.UserID, rec.ID)
	triple := func(predicate string, object any) message.Triple {
		return message.Triple{
			Subject:    subject,
			Predicate:  predicate,
			Object:     object,
			Source:     tripleSource,
			Timestamp:  ts,
			Confidence: 1.0,
		}
	}

	triples := []message.Triple{
		triple(cnl.NodeName, rec.Name),
		triple(cnl.NodeBaseName, identity.Compose(rec.Name).BaseName),
		triple(cnl.NodeState, rec.State),
		triple(cnl.NodeGraph, doc.GraphID),
		triple(cnl.NodeComposedAt, ts.Format(time.RFC3339)),
	}
	if rec.Type != "" {
		triples = append(triples, triple(cnl.NodeType, rec.Type))
	}
	if rec.Description != "" {
		triples = append(triples, triple(cnl.NodeDescription, rec.Description))
	}
	for _, rel := range rec.Relations {
		triples = append(triples, triple(cnl.RelationPredicate(rel.RelationName), NodeEntityID(doc.UserID, rel.TargetID)))
	}
	for _, attr := range rec.Attributes {
		triples = append(triples, triple(cnl.AttributePredicate(attr.AttributeName), AttributeObject(attr.Value, attr.Unit)))
	}
	return triples
}

// AttributeObject joins an attribute value and its unit.
func AttributeObject(value, unit string) string {
	if unit == "" {
		return value
	}
	return value + " " + unit
}

// NodeEntityID returns the entity id of a user's node.
// Format: semcnl.<user>.cnl.graph.node.<id>
func NodeEntityID(userID, nodeID string) string {
	return fmt.Sprintf("semcnl.%s.cnl.graph.node.%s", userToken(userID), nodeID)
}

// userToken returns a user id as one entity id part. Ids that are already
// slugs are used as they are; any other id is base64url encoded behind a
// "b64-" marker, which no slug can start with. The empty id is the local
// user.
func userToken(userID string) string {
	if userID == "" {
		return "local"
	}
	if identity.Slug(userID) == userID {
		return userID
	}
	return "b64-" + base64.RawURLEncoding.EncodeToString([]byte(userID))
}
