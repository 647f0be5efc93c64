package corrector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/agentd/internal/models"
)

// fakeReasoner returns canned text and records the prompt it was given.
type fakeReasoner struct {
	text   string
	err    error
	prompt string
}

func (f *fakeReasoner) ProposeAlternative(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.text, f.err
}

func readStep() *models.Step {
	return &models.Step{
		ID:    "s1",
		Title: "read config",
		Action: models.Action{
			Type:   models.ActionRead,
			Params: map[string]interface{}{"path": "./config.json"},
		},
	}
}

func TestProposeReturnsAlternative(t *testing.T) {
	reasoner := &fakeReasoner{text: `Looking at the failure:

` + "```json\n" + `{"analysis": "file missing", "strategy": "locate it", "action": "search", "params": {"query": "config.json"}, "confidence": 80, "fallback": "ask user"}` + "\n```"}
	c := New(reasoner, 0)

	alt := c.Propose(context.Background(), readStep(), errors.New("open ./config.json: no such file or directory"), 1)
	require.NotNil(t, alt)
	assert.Equal(t, models.ActionSearch, alt.Type)
	assert.Equal(t, "config.json", alt.Param("query"))

	assert.Contains(t, reasoner.prompt, "read config")
	assert.Contains(t, reasoner.prompt, "no such file")
	assert.Contains(t, reasoner.prompt, "STRUCTURALLY DIFFERENT")
}

func TestProposeNilOnUnparsableResponse(t *testing.T) {
	c := New(&fakeReasoner{text: "I think you should try searching instead."}, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), errors.New("timeout"), 1))
}

func TestProposeNilOnLowConfidence(t *testing.T) {
	c := New(&fakeReasoner{text: `{"action": "search", "params": {"query": "x"}, "confidence": 10}`}, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), errors.New("timeout"), 1))
}

func TestProposeNilWhenNotStructurallyDifferent(t *testing.T) {
	c := New(&fakeReasoner{text: `{"action": "read", "params": {"path": "./config.json"}, "confidence": 90}`}, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), errors.New("timeout"), 1))
}

func TestProposeSameTypeDifferentParamsAccepted(t *testing.T) {
	c := New(&fakeReasoner{text: `{"action": "read", "params": {"path": "src/config.json"}, "confidence": 90}`}, 0)

	alt := c.Propose(context.Background(), readStep(), errors.New("not found"), 2)
	require.NotNil(t, alt)
	assert.Equal(t, "src/config.json", alt.Param("path"))
}

func TestProposeNilOnServiceError(t *testing.T) {
	c := New(&fakeReasoner{err: errors.New("rate limit")}, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), errors.New("timeout"), 1))
}

func TestProposeNilForNonRecoverableError(t *testing.T) {
	reasoner := &fakeReasoner{text: `{"action": "search", "confidence": 90}`}
	c := New(reasoner, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), errors.New("permission denied"), 1))
	assert.Empty(t, reasoner.prompt, "non-recoverable errors must never reach the reasoning service")
}

func TestProposeNilWithoutError(t *testing.T) {
	c := New(&fakeReasoner{text: `{"action": "search", "confidence": 90}`}, 0)

	assert.Nil(t, c.Propose(context.Background(), readStep(), nil, 1))
}
