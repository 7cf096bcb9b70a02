package agent

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"summarizer-agents/client"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct{}

func (failingSource) Name() string                       { return "broken" }
func (failingSource) Definitions() ([]Definition, error) { return nil, errors.New("syntax error") }

func namedAgent(name string) Factory {
	return func() (Agent, error) {
		return NewBaseAgent(Profile{Name: name, Model: "m", Instruction: "i"}, &recordingTransport{}, quietLogger()), nil
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"CondensedAgent":     "Condensed",
		"DescriptiveAgent":   "Descriptive",
		"ContextMapperAgent": "Context Mapper",
		"StoryBoardAgent":    "Story Board",
		"ReflectiveAgent":    "Reflective",
		"briefAgent":         "brief",
		"Agent":              "",
	}

	for identifier, want := range tests {
		assert.Equal(t, want, DisplayName(identifier), "DisplayName(%q)", identifier)
	}
}

func TestRegistry_DiscoverBuiltins(t *testing.T) {
	r := NewRegistry(WithLogger(quietLogger()))
	n := r.Discover(BuiltinSource(&recordingTransport{}, client.DefaultEndpoint, quietLogger()))

	assert.Equal(t, 5, n)
	assert.Equal(t, []string{"Condensed", "Descriptive", "Context Mapper", "Story Board", "Reflective"}, r.List())

	a, ok := r.Resolve("Context Mapper")
	require.True(t, ok)
	assert.Equal(t, "gemma3:latest", a.Profile().Model)
}

func TestRegistry_SameDisplayNameLastWins(t *testing.T) {
	r := NewRegistry(WithLogger(quietLogger()))
	r.Discover(
		Static("first",
			Definition{Identifier: "CondensedAgent", New: namedAgent("first")},
			Definition{Identifier: "OtherAgent", New: namedAgent("other")},
		),
		Static("second", Definition{Identifier: "CondensedAgent", New: namedAgent("second")}),
	)

	assert.Equal(t, []string{"Condensed", "Other"}, r.List())

	a, ok := r.Resolve("Condensed")
	require.True(t, ok)
	assert.Equal(t, "second", a.Profile().Name)
}

func TestRegistry_SkipsUnqualifiedDefinitions(t *testing.T) {
	r := NewRegistry(WithLogger(quietLogger()))
	n := r.Discover(Static("mixed",
		Definition{Identifier: "Helper", New: namedAgent("helper")},
		Definition{Identifier: "NoFactoryAgent"},
		Definition{Identifier: "Agent", New: namedAgent("bare")},
		Definition{Identifier: "GoodAgent", New: namedAgent("good")},
	))

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Good"}, r.List())

	err := r.Register(Definition{Identifier: "Helper", New: namedAgent("helper")})
	assert.ErrorIs(t, err, ErrNotQualified)
}

func TestRegistry_FailingSourceIsSkipped(t *testing.T) {
	r := NewRegistry(WithLogger(quietLogger()))
	n := r.Discover(
		failingSource{},
		Static("empty"),
		Static("good", Definition{Identifier: "GoodAgent", New: namedAgent("good")}),
	)

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"Good"}, r.List())
}

func TestRegistry_ResolveUnknown(t *testing.T) {
	r := NewRegistry(WithLogger(quietLogger()))
	a, ok := r.Resolve("Missing")
	assert.False(t, ok)
	assert.Nil(t, a)
}

func TestRegistry_ResolveConstructsOnce(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	r := NewRegistry(WithLogger(quietLogger()))
	require.NoError(t, r.Register(Definition{Identifier: "SlowAgent", New: func() (Agent, error) {
		calls.Add(1)
		<-release
		return namedAgent("slow")()
	}}))

	const callers = 20
	results := make([]Agent, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a, ok := r.Resolve("Slow")
			assert.True(t, ok)
			results[i] = a
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, a := range results {
		assert.Same(t, results[0], a)
	}

	again, ok := r.Resolve("Slow")
	require.True(t, ok)
	assert.Same(t, results[0], again)
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegistry_ConstructionFailureRetried(t *testing.T) {
	var calls atomic.Int32
	r := NewRegistry(WithLogger(quietLogger()))
	require.NoError(t, r.Register(Definition{Identifier: "FlakyAgent", New: func() (Agent, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("model not pulled")
		}
		return namedAgent("flaky")()
	}}))

	_, ok := r.Resolve("Flaky")
	assert.False(t, ok)

	a, ok := r.Resolve("Flaky")
	require.True(t, ok)
	assert.Equal(t, "flaky", a.Profile().Name)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRegistry_FailureTTL(t *testing.T) {
	var calls atomic.Int32
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	r := NewRegistry(WithLogger(quietLogger()), WithFailureTTL(time.Minute))
	r.now = func() time.Time { return now }
	require.NoError(t, r.Register(Definition{Identifier: "FlakyAgent", New: func() (Agent, error) {
		calls.Add(1)
		return nil, nil
	}}))

	_, ok := r.Resolve("Flaky")
	assert.False(t, ok)
	_, ok = r.Resolve("Flaky")
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	now = now.Add(2 * time.Minute)
	_, ok = r.Resolve("Flaky")
	assert.False(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func writeProfile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestDirSources(t *testing.T) {
	dir := t.TempDir()
	writeProfile(t, dir, "b_brief.yaml", `
identifier: BriefAgent
model: llama3.2
instruction: |
  Summarize in one sentence.
`)
	writeProfile(t, dir, "a_remote.yml", `
identifier: RemoteOutlineAgent
model: qwen2.5
instruction: Outline the text.
host: gpu-box
port: 8080
`)
	writeProfile(t, dir, "c_broken.yaml", "identifier: [unterminated\n")
	writeProfile(t, dir, "d_nomodel.yaml", "identifier: EmptyAgent\ninstruction: x\n")
	writeProfile(t, dir, "notes.txt", "identifier: IgnoredAgent\n")

	sources, err := DirSources(dir, &recordingTransport{}, client.DefaultEndpoint, quietLogger())
	require.NoError(t, err)
	require.Len(t, sources, 4)

	r := NewRegistry(WithLogger(quietLogger()))
	n := r.Discover(sources...)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"Remote Outline", "Brief", "Empty"}, r.List())

	remote, ok := r.Resolve("Remote Outline")
	require.True(t, ok)
	assert.Equal(t, client.Endpoint{Host: "gpu-box", Port: 8080}, remote.Profile().Endpoint)
	assert.Equal(t, "qwen2.5", remote.Profile().Model)

	brief, ok := r.Resolve("Brief")
	require.True(t, ok)
	assert.Equal(t, client.DefaultEndpoint, brief.Profile().Endpoint)
	assert.Equal(t, "Summarize in one sentence.", brief.Profile().Instruction)

	_, ok = r.Resolve("Empty")
	assert.False(t, ok)
}

func TestDirSources_MissingDir(t *testing.T) {
	_, err := DirSources(filepath.Join(t.TempDir(), "nope"), &recordingTransport{}, client.DefaultEndpoint, quietLogger())
	assert.Error(t, err)
}
