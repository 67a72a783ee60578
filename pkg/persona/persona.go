// Package persona holds the fixed, operator-owned text of the assistant: its
// system instruction and the canned strings shown by clients.
package persona

import (
	_ "embed"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/coachchat/pkg/chat"
)

//go:embed coach.yaml
var defaultPersonaYAML []byte

const defaultApology = "I'm sorry, I'm having trouble connecting to my server. Please try again later."

type Persona struct {
	Name              string   `yaml:"name"`
	SystemInstruction string   `yaml:"system_instruction"`
	Greeting          string   `yaml:"greeting"`
	Apology           string   `yaml:"apology"`
	LoadingText       string   `yaml:"loading_text"`
	Suggestions       []string `yaml:"suggestions"`
}

// Default returns the built-in fitness coach persona.
func Default() *Persona {
	p, err := Parse(defaultPersonaYAML)
	if err != nil {
		panic(errors.Wrap(err, "embedded persona is invalid"))
	}
	return p
}

func Parse(b []byte) (*Persona, error) {
	p := &Persona{}
	if err := yaml.Unmarshal(b, p); err != nil {
		return nil, errors.Wrap(err, "parse persona yaml")
	}
	p.SystemInstruction = strings.TrimSpace(p.SystemInstruction)
	p.Greeting = strings.TrimSpace(p.Greeting)
	if p.SystemInstruction == "" {
		return nil, errors.New("persona: system_instruction is required")
	}
	if p.Greeting == "" {
		return nil, errors.New("persona: greeting is required")
	}
	if strings.TrimSpace(p.Apology) == "" {
		p.Apology = defaultApology
	}
	suggestions := p.Suggestions[:0]
	for _, s := range p.Suggestions {
		if s = strings.TrimSpace(s); s != "" {
			suggestions = append(suggestions, s)
		}
	}
	p.Suggestions = suggestions
	return p, nil
}

// Load reads a persona file, or returns Default when path is empty.
func Load(path string) (*Persona, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read persona file")
	}
	return Parse(b)
}

// GreetingMessage is the canned first message for users without history.
func (p *Persona) GreetingMessage() chat.Message {
	return chat.Message{ID: chat.GreetingID, Role: chat.RoleAI, Text: p.Greeting}
}
