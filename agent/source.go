package agent

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"summarizer-agents/client"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

var (
	ErrNoDefinitions  = errors.New("source defines no agent")
	ErrInvalidProfile = errors.New("invalid agent profile")
)

// staticSource is a fixed registration table.
type staticSource struct {
	name string
	defs []Definition
}

// Static returns a source serving defs as given.
func Static(name string, defs ...Definition) Source {
	return staticSource{name: name, defs: defs}
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Definitions() ([]Definition, error) {
	if len(s.defs) == 0 {
		return nil, ErrNoDefinitions
	}
	return s.defs, nil
}

// BuiltinSource registers the agents compiled into the binary, all talking to
// endpoint through transport.
func BuiltinSource(transport client.Transport, endpoint client.Endpoint, logger *log.Logger) Source {
	return Static("builtin",
		Definition{Identifier: "CondensedAgent", New: func() (Agent, error) {
			return NewCondensedAgent(transport, endpoint, logger), nil
		}},
		Definition{Identifier: "DescriptiveAgent", New: func() (Agent, error) {
			return NewDescriptiveAgent(transport, endpoint, logger), nil
		}},
		Definition{Identifier: "ContextMapperAgent", New: func() (Agent, error) {
			return NewContextMapperAgent(transport, endpoint, logger), nil
		}},
		Definition{Identifier: "StoryBoardAgent", New: func() (Agent, error) {
			return NewStoryBoardAgent(transport, endpoint, logger), nil
		}},
		Definition{Identifier: "ReflectiveAgent", New: func() (Agent, error) {
			return NewReflectiveAgent(transport, endpoint, logger), nil
		}},
	)
}

// profileFile is the YAML layout of one agent profile file:
//
//	identifier: BriefAgent
//	model: llama3.2
//	instruction: |
//	  Summarize in one sentence.
//	host: localhost   # optional
//	port: 11434       # optional
type profileFile struct {
	Identifier  string `yaml:"identifier"`
	Model       string `yaml:"model"`
	Instruction string `yaml:"instruction"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
}

// FileSource loads a single agent profile from a YAML file. Host and port
// fall back to endpoint when the file leaves them out.
type FileSource struct {
	path      string
	transport client.Transport
	endpoint  client.Endpoint
	logger    *log.Logger
}

func NewFileSource(path string, transport client.Transport, endpoint client.Endpoint, logger *log.Logger) *FileSource {
	return &FileSource{path: path, transport: transport, endpoint: endpoint, logger: logger}
}

func (s *FileSource) Name() string { return s.path }

func (s *FileSource) Definitions() ([]Definition, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}

	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.path, err)
	}
	if pf.Identifier == "" {
		return nil, ErrNoDefinitions
	}

	endpoint := s.endpoint
	if pf.Host != "" {
		endpoint.Host = pf.Host
	}
	if pf.Port != 0 {
		endpoint.Port = pf.Port
	}

	profile := Profile{
		Name:        DisplayName(pf.Identifier),
		Model:       strings.TrimSpace(pf.Model),
		Instruction: strings.TrimSpace(pf.Instruction),
		Endpoint:    endpoint,
	}

	return []Definition{{
		Identifier: pf.Identifier,
		New: func() (Agent, error) {
			if profile.Model == "" || profile.Instruction == "" {
				return nil, fmt.Errorf("%w: %s needs a model and an instruction", ErrInvalidProfile, s.path)
			}
			if profile.Endpoint.Port <= 0 || profile.Endpoint.Port > 65535 {
				return nil, fmt.Errorf("%w: %s has port %d", ErrInvalidProfile, s.path, profile.Endpoint.Port)
			}
			return NewBaseAgent(profile, s.transport, s.logger), nil
		},
	}}, nil
}

// DirSources returns one FileSource per *.yaml or *.yml file in dir, sorted
// by file name.
func DirSources(dir string, transport client.Transport, endpoint client.Endpoint, logger *log.Logger) ([]Source, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read profiles dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	slices.Sort(paths)

	sources := make([]Source, 0, len(paths))
	for _, p := range paths {
		sources = append(sources, NewFileSource(p, transport, endpoint, logger))
	}
	return sources, nil
}
