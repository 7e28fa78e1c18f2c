// Package dispatch decides which persona answers a chat message and runs the
// bounded persona loop.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/intent"

	"go.uber.org/zap"
)

const DefaultMaxRounds = 3

// ErrNoValidTarget is returned when the classifier names a persona that does
// not exist.
var ErrNoValidTarget = errors.New("no valid routing target")

// Decision is the outcome of one selection step.
type Decision struct {
	Target    string
	Reason    string
	Terminate bool
}

// AgentClassifier picks the next persona label from the conversation.
type AgentClassifier interface {
	ClassifyAgent(ctx context.Context, history []ai.Turn) (string, bool)
}

// Selector enforces the round cap and maps labels to known personas.
type Selector struct {
	classifier AgentClassifier
	targets    map[string]bool
	maxRounds  int
	logger     *zap.Logger
}

func NewSelector(classifier AgentClassifier, targets []string, maxRounds int, logger *zap.Logger) *Selector {
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	known := make(map[string]bool, len(targets))
	for _, t := range targets {
		known[t] = true
	}

	return &Selector{classifier: classifier, targets: known, maxRounds: maxRounds, logger: logger}
}

// SelectNext decides who speaks in round (zero based). Reaching the round cap
// always terminates without consulting the classifier.
func (s *Selector) SelectNext(ctx context.Context, history []ai.Turn, round int) (Decision, error) {
	if round >= s.maxRounds {
		return Decision{Terminate: true, Reason: fmt.Sprintf("round limit %d reached", s.maxRounds)}, nil
	}

	label, ok := s.classifier.ClassifyAgent(ctx, history)
	if ok && label == intent.Terminate {
		return Decision{Terminate: true, Reason: "classifier chose to terminate"}, nil
	}

	if !ok || !s.targets[label] {
		s.logger.Error("classifier chose an unknown persona",
			zap.String("label", label),
			zap.Int("round", round),
		)
		return Decision{Reason: fmt.Sprintf("unknown persona %q", label)}, fmt.Errorf("%w: %q", ErrNoValidTarget, label)
	}

	return Decision{Target: label, Reason: "classifier selected " + label}, nil
}

func (s *Selector) MaxRounds() int {
	return s.maxRounds
}
