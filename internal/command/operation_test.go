package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCommands(t *testing.T) {
	t.Parallel()

	t.Run("preserves submission order", func(t *testing.T) {
		t.Parallel()
		body := `{
			"set-trigger": {"name": "t1", "event": "nodeLost"},
			"set-listener": {"name": "l1", "trigger": "t1"},
			"remove-trigger": {"name": "t1"}
		}`
		ops, err := ReadCommands(strings.NewReader(body))
		require.NoError(t, err)
		require.Len(t, ops, 3)
		assert.Equal(t, OpSetTrigger, ops[0].Name)
		assert.Equal(t, OpSetListener, ops[1].Name)
		assert.Equal(t, OpRemoveTrigger, ops[2].Name)
		assert.Equal(t, "t1", ops[0].Str("name"))
	})

	t.Run("repeated operation names", func(t *testing.T) {
		t.Parallel()
		body := `{"remove-listener": {"name": "l1"}, "remove-listener": {"name": "l2"}}`
		ops, err := ReadCommands(strings.NewReader(body))
		require.NoError(t, err)
		require.Len(t, ops, 2)
		assert.Equal(t, "l1", ops[0].Str("name"))
		assert.Equal(t, "l2", ops[1].Str("name"))
	})

	t.Run("rejects non-object envelope", func(t *testing.T) {
		t.Parallel()
		_, err := ReadCommands(strings.NewReader(`["set-trigger"]`))
		require.Error(t, err)
	})

	t.Run("rejects empty envelope", func(t *testing.T) {
		t.Parallel()
		_, err := ReadCommands(strings.NewReader(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no operations")
	})

	t.Run("rejects truncated input", func(t *testing.T) {
		t.Parallel()
		_, err := ReadCommands(strings.NewReader(`{"set-trigger": {"name":`))
		require.Error(t, err)
	})
}

func TestOperationAccessors(t *testing.T) {
	t.Parallel()

	ops, err := ReadCommands(strings.NewReader(`{"set-trigger": {
		"name": "t1",
		"lowerBound": 3,
		"upperBound": "7",
		"stage": "STARTED",
		"beforeAction": ["a", "b"],
		"removeListeners": true
	}}`))
	require.NoError(t, err)
	op := ops[0]

	assert.Equal(t, "t1", op.Str("name"))
	assert.Empty(t, op.Str("missing"))

	lower, err := op.Int("lowerBound")
	require.NoError(t, err)
	require.NotNil(t, lower)
	assert.Equal(t, int64(3), *lower)

	// Numeric strings parse too.
	upper, err := op.Int("upperBound")
	require.NoError(t, err)
	require.NotNil(t, upper)
	assert.Equal(t, int64(7), *upper)

	absent, err := op.Int("missing")
	require.NoError(t, err)
	assert.Nil(t, absent)

	_, err = op.Int("name")
	require.Error(t, err)

	// A scalar string and a list both come back as a list.
	assert.Equal(t, []string{"STARTED"}, op.Strs("stage"))
	assert.Equal(t, []string{"a", "b"}, op.Strs("beforeAction"))
	assert.Nil(t, op.Strs("missing"))

	assert.True(t, op.Bool("removeListeners", false))
	assert.False(t, op.Bool("missing", false))
	assert.True(t, op.Bool("missing", true))
}
