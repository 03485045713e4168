// Package pipeline runs parse passes: CNL text in, composed graph and
// diagnostics out, with the user's node registry updated in between.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/c360studio/semcnl/graph"
	"github.com/c360studio/semcnl/metrics"
	"github.com/c360studio/semcnl/registry"
	"github.com/c360studio/semcnl/schema"
	"github.com/c360studio/semcnl/source"
	"github.com/c360studio/semcnl/source/parser"
	"github.com/go-playground/validator/v10"
)

// Request is one parse pass.
type Request struct {
	UserID  string `validate:"required"`
	GraphID string `validate:"required"`
	Text    string
}

// Result is the outcome of a parse pass. Diagnostics accompany every
// result; they never make the pass fail.
type Result struct {
	Document *graph.Document
	// Canonical is the canonical JSON form of Document.
	Canonical []byte
	// Readable is Document rendered back as CNL.
	Readable    string
	Hash        string
	Diagnostics []source.Diagnostic
	// SchemaTuples is filled in strict mode only.
	SchemaTuples []schema.Tuple
	// Created lists the registry nodes this pass created.
	Created []string
	// Source is the parsed document.
	Source *source.Document
}

// Service runs parse passes against a registry.
type Service struct {
	registry  *registry.Registry
	parser    *parser.CNLParser
	validate  *validator.Validate
	logger    *slog.Logger
	schema    *schema.Schema
	strict    bool
	publisher graph.Publisher
	subject   string
	metrics   *metrics.Collector
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSchema sets the advisory schema. It also marks relation edges whose
// schema rule names an inverse.
func WithSchema(sc *schema.Schema) Option {
	return func(s *Service) { s.schema = sc }
}

// WithStrict turns on schema tuple reporting.
func WithStrict(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithPublisher publishes every composed graph to subject.
func WithPublisher(p graph.Publisher, subject string) Option {
	return func(s *Service) {
		s.publisher = p
		s.subject = subject
	}
}

// WithMetrics records pass metrics.
func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// New creates a service over reg.
func New(reg *registry.Registry, opts ...Option) *Service {
	s := &Service{
		registry: reg,
		parser:   parser.NewCNLParser(),
		validate: validator.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Parse parses req.Text and composes it as graph req.GraphID.
func (s *Service) Parse(ctx context.Context, req Request) (*Result, error) {
	if err := s.checkRequest(req); err != nil {
		return nil, err
	}
	return s.ParseDocument(ctx, req.UserID, req.GraphID, s.parser.ParseText(req.Text))
}

// ParseDocument composes an already parsed document as graphID. Any
// previous content of graphID is replaced.
func (s *Service) ParseDocument(ctx context.Context, userID, graphID string, doc *source.Document) (*Result, error) {
	if err := s.checkRequest(Request{UserID: userID, GraphID: graphID}); err != nil {
		return nil, err
	}
	start := time.Now()
	s.markInverses(doc)

	var (
		composed *graph.Document
		tuples   []schema.Tuple
		created  []string
	)
	apply := func(txn *registry.Txn) error {
		var err error
		composed, err = applyDocument(txn, graphID, doc)
		if err != nil {
			return err
		}
		if s.strict || s.schema != nil {
			tuples = schemaTuples(txn, doc)
		}
		created = txn.Created()
		return nil
	}

	if err := s.update(ctx, userID, graphID, apply); err != nil {
		s.metrics.ObservePass(outcomeOf(err), time.Since(start))
		return nil, err
	}
	composed.UserID = userID

	diags := append([]source.Diagnostic(nil), doc.Diagnostics...)
	if s.schema != nil {
		diags = sortedDiagnostics(append(diags, s.schema.Advise(tuples)...))
	}

	res := &Result{
		Document:    composed,
		Readable:    graph.RenderCNL(composed),
		Diagnostics: diags,
		Created:     created,
		Source:      doc,
	}
	if s.strict {
		res.SchemaTuples = tuples
	}

	var err error
	if res.Canonical, err = graph.MarshalCanonical(composed); err != nil {
		return nil, err
	}
	if res.Hash, err = graph.Hash(composed); err != nil {
		return nil, err
	}

	if err := graph.Publish(ctx, s.publisher, s.subject, composed); err != nil {
		s.logger.Warn("Failed to publish graph", "user_id", userID, "graph_id", graphID, "error", err)
	}

	s.metrics.ObservePass(metrics.OutcomeOK, time.Since(start))
	s.metrics.ObserveDiagnostics(diags)
	s.metrics.AddNodesCreated(len(created))

	s.logger.Debug("Parse pass complete",
		"user_id", userID,
		"graph_id", graphID,
		"nodes", len(composed.Nodes),
		"created", len(created),
		"diagnostics", len(diags))
	return res, nil
}

// DeleteGraph drops graphID from every node of the user's registry and
// returns the ids of the nodes that were members. Nodes are kept even when
// no graph mentions them any more.
func (s *Service) DeleteGraph(ctx context.Context, userID, graphID string) ([]string, error) {
	if err := s.checkRequest(Request{UserID: userID, GraphID: graphID}); err != nil {
		return nil, err
	}
	var affected []string
	err := s.update(ctx, userID, graphID, func(txn *registry.Txn) error {
		affected = txn.RemoveGraph(graphID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.IncGraphsDeleted()
	s.logger.Info("Graph deleted", "user_id", userID, "graph_id", graphID, "nodes", len(affected))
	return affected, nil
}

// Describe sets a node's description outside any parse pass. A stub becomes
// complete; an empty description turns the node back into a stub.
func (s *Service) Describe(ctx context.Context, userID, nodeID, description string) error {
	if userID == "" || nodeID == "" {
		return fmt.Errorf("%w: user and node id are required", ErrInvalidRequest)
	}
	return s.update(ctx, userID, "", func(txn *registry.Txn) error {
		return txn.SetDescription(nodeID, strings.TrimSpace(description))
	})
}

// Orphans lists the user's nodes that no graph mentions.
func (s *Service) Orphans(ctx context.Context, userID string) ([]*registry.Node, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	return s.registry.Orphans(ctx, userID)
}

// update runs fn in a registry update, retrying once on conflict.
func (s *Service) update(ctx context.Context, userID, graphID string, fn func(*registry.Txn) error) error {
	err := s.registry.Update(ctx, userID, fn)
	if !errors.Is(err, registry.ErrConflict) {
		return err
	}

	s.metrics.ObserveConflict(true)
	s.logger.Warn("Registry conflict, retrying", "user_id", userID, "graph_id", graphID)

	err = s.registry.Update(ctx, userID, fn)
	if errors.Is(err, registry.ErrConflict) {
		s.metrics.ObserveConflict(false)
		return &ConflictError{UserID: userID, GraphID: graphID, Err: err}
	}
	return err
}

func (s *Service) checkRequest(req Request) error {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s is %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

func (s *Service) markInverses(doc *source.Document) {
	if s.schema == nil {
		return
	}
	for i := range doc.Sections {
		rels := doc.Sections[i].Relations
		for j := range rels {
			_, rels[j].InverseDerivable = s.schema.Inverse(rels[j].RelationName)
		}
	}
}

func outcomeOf(err error) string {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return metrics.OutcomeConflict
	}
	return metrics.OutcomeError
}

// sortedDiagnostics orders diagnostics by line, keeping the order of
// diagnostics on the same line.
func sortedDiagnostics(diags []source.Diagnostic) []source.Diagnostic {
	for i := 1; i < len(diags); i++ {
		for j := i; j > 0 && diags[j].Line < diags[j-1].Line; j-- {
			diags[j], diags[j-1] = diags[j-1], diags[j]
		}
	}
	return diags
}
