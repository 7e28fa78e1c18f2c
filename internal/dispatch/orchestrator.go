package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/spigell/resume-butler/internal/ai"
	"github.com/spigell/resume-butler/internal/intent"
	"github.com/spigell/resume-butler/internal/logger"
	"github.com/spigell/resume-butler/internal/persona"
	"github.com/spigell/resume-butler/internal/profile"

	"go.uber.org/zap"
)

// Persona answers a chat turn.
type Persona interface {
	Name() string
	Description() string
	Respond(ctx context.Context, req persona.Request) (persona.Output, error)
}

// Task is one user chat message with its context.
type Task struct {
	Message string
	Profile map[string]any
	History []ai.Turn
}

// Result is the combined answer of the personas that spoke.
type Result struct {
	Output   persona.Output
	Decision Decision
	Rounds   int
	Speakers []string
}

// Orchestrator runs personas until one hands the turn back to the user, the
// classifier terminates, or the round cap is hit.
type Orchestrator struct {
	selector *Selector
	personas map[string]Persona
	fallback string
	logger   *zap.Logger
}

// NewOrchestrator wires personas to a selector. The first persona answers
// when the classifier terminates before anyone spoke.
func NewOrchestrator(classifier AgentClassifier, personas []Persona, maxRounds int, log *zap.Logger) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}

	byName := make(map[string]Persona, len(personas))
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		byName[p.Name()] = p
		names = append(names, p.Name())
	}

	fallback := ""
	if len(names) > 0 {
		fallback = names[0]
	}

	return &Orchestrator{
		selector: NewSelector(classifier, names, maxRounds, log),
		personas: byName,
		fallback: fallback,
		logger:   log,
	}
}

// Describe lists personas for the routing prompt.
func Describe(personas []Persona) []intent.PersonaInfo {
	infos := make([]intent.PersonaInfo, 0, len(personas))
	for _, p := range personas {
		infos = append(infos, intent.PersonaInfo{Name: p.Name(), Description: p.Description()})
	}
	return infos
}

func (o *Orchestrator) Chat(ctx context.Context, task Task) (Result, error) {
	history := make([]ai.Turn, 0, len(task.History)+o.selector.MaxRounds()+1)
	history = append(history, task.History...)
	history = append(history, ai.Turn{Role: ai.RoleUser, Content: task.Message})

	args := make(map[string]any, len(task.Profile))
	for k, v := range task.Profile {
		args[k] = v
	}

	var (
		result Result
		texts  []string
	)
	result.Output.Updates = make(map[profile.Field]string)

	for round := 0; ; round++ {
		decision, err := o.selector.SelectNext(ctx, history, round)
		if err != nil {
			result.Decision = decision
			return result, err
		}

		if decision.Terminate {
			if len(result.Speakers) > 0 || o.fallback == "" || round >= o.selector.MaxRounds() {
				if len(result.Speakers) == 0 {
					result.Decision = decision
				}
				break
			}
			decision = Decision{Target: o.fallback, Reason: "nobody answered yet"}
		}

		p := o.personas[decision.Target]
		log := logger.WithFields(o.logger, zap.String(logger.FieldPersona, p.Name()), zap.Int("round", round))
		log.Debug("persona selected", zap.String("reason", decision.Reason))

		out, err := p.Respond(ctx, persona.Request{Message: task.Message, Profile: args, History: history})
		if err != nil {
			result.Decision = decision
			return result, fmt.Errorf("persona %s: %w", p.Name(), err)
		}

		for f, v := range out.Updates {
			result.Output.Updates[f] = v
			args[string(f)] = v
		}
		if text := strings.TrimSpace(out.Text); text != "" {
			texts = append(texts, text)
		}
		if out.IsArtifact() {
			result.Output.Content = out.Content
			result.Output.Ext = out.Ext
		}

		history = append(history, ai.Turn{Role: ai.RoleAssistant, Author: p.Name(), Content: out.Text})
		result.Speakers = append(result.Speakers, p.Name())
		result.Decision = decision
		result.Rounds = round + 1

		if out.AwaitUser {
			result.Output.AwaitUser = true
			break
		}
	}

	result.Output.Text = strings.Join(texts, "\n\n")
	return result, nil
}
