package gateway

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/gameroom/go/internal/room/identity"
)

// Policy decides who receives a relayed event and who may send it.
type Policy struct {
	echo          map[EventType]bool
	presenterOnly map[EventType]bool
}

type policyFile struct {
	EchoToSender  []EventType `yaml:"echo_to_sender"`
	PresenterOnly []EventType `yaml:"presenter_only"`
}

// DefaultPolicy echoes achievements and open responses to their sender, excludes the
// sender from every other relay and restricts nothing to presenters.
func DefaultPolicy() *Policy {
	p, _ := newPolicy(policyFile{
		EchoToSender: []EventType{EventTypeWordFound, EventTypeOpenQuestionResponse},
	})
	return p
}

// LoadPolicy reads a YAML policy file. An empty path yields DefaultPolicy. Keys omitted
// from the file keep their defaults.
func LoadPolicy(path string) (*Policy, error) {
	if path == "" {
		return DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return ParsePolicy(data)
}

// ParsePolicy parses a YAML policy document.
func ParsePolicy(data []byte) (*Policy, error) {
	var raw struct {
		EchoToSender  *[]EventType `yaml:"echo_to_sender"`
		PresenterOnly *[]EventType `yaml:"presenter_only"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse policy: %w", err)
	}

	pf := policyFile{
		EchoToSender: []EventType{EventTypeWordFound, EventTypeOpenQuestionResponse},
	}
	if raw.EchoToSender != nil {
		pf.EchoToSender = *raw.EchoToSender
	}
	if raw.PresenterOnly != nil {
		pf.PresenterOnly = *raw.PresenterOnly
	}
	return newPolicy(pf)
}

func newPolicy(pf policyFile) (*Policy, error) {
	p := &Policy{
		echo:          make(map[EventType]bool),
		presenterOnly: make(map[EventType]bool),
	}
	for _, t := range pf.EchoToSender {
		if !knownEventType(t) {
			return nil, fmt.Errorf("echo_to_sender: unknown event type %q", t)
		}
		p.echo[t] = true
	}
	for _, t := range pf.PresenterOnly {
		if _, ok := inboundEvents[t]; !ok {
			return nil, fmt.Errorf("presenter_only: %q is not a client event", t)
		}
		p.presenterOnly[t] = true
	}
	return p, nil
}

// EchoToSender reports whether the sender receives its own event of type t.
func (p *Policy) EchoToSender(t EventType) bool {
	return p.echo[t]
}

// Authorize returns ErrForbiddenEvent when t is presenter-only and sender is not a presenter.
func (p *Policy) Authorize(t EventType, sender identity.Participant) error {
	if p.presenterOnly[t] && !sender.IsPresenter() {
		return fmt.Errorf("%w: %s requires presenter", ErrForbiddenEvent, t)
	}
	return nil
}
