package policy

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDocument(t *testing.T) {
	t.Parallel()

	t.Run("empty data yields empty document", func(t *testing.T) {
		t.Parallel()
		doc, err := ParseDocument(nil)
		require.NoError(t, err)
		assert.Empty(t, doc.Triggers)
		assert.Empty(t, doc.Listeners)
	})

	t.Run("round trip", func(t *testing.T) {
		t.Parallel()
		lower := int64(2)
		original := &Document{
			Triggers: map[string]TriggerSpec{
				"node_lost_trigger": {
					Event:      EventNodeLost,
					WaitFor:    120,
					LowerBound: &lower,
					Actions:    DefaultActions(),
				},
			},
			Listeners: map[string]ListenerSpec{
				"ops_listener": {
					Trigger:      "node_lost_trigger",
					Stage:        []TriggerStage{StageStarted, StageFailed},
					Class:        "scalemesh.HTTPTriggerListener",
					BeforeAction: []string{"compute_plan"},
				},
			},
		}

		data, err := json.Marshal(original)
		require.NoError(t, err)

		doc, err := ParseDocument(data)
		require.NoError(t, err)
		assert.Equal(t, original.Triggers, doc.Triggers)
		assert.Equal(t, original.Listeners, doc.Listeners)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()
		_, err := ParseDocument([]byte("{not json"))
		require.Error(t, err)
	})
}

func TestListenersFor(t *testing.T) {
	t.Parallel()

	doc := &Document{
		Listeners: map[string]ListenerSpec{
			"l1": {Trigger: "t1"},
			"l2": {Trigger: "t2"},
			"l3": {Trigger: "t1"},
		},
	}

	bound := doc.ListenersFor("t1")
	assert.ElementsMatch(t, []string{"l1", "l3"}, bound)
	assert.Empty(t, doc.ListenersFor("t3"))
}

func TestDefaultActions(t *testing.T) {
	t.Parallel()

	actions := DefaultActions()
	require.Len(t, actions, 3)
	assert.Equal(t, "compute_plan", actions[0].Name)
	assert.Equal(t, "execute_plan", actions[1].Name)
	assert.Equal(t, "log_plan", actions[2].Name)
	for _, action := range actions {
		assert.NotEmpty(t, action.Class)
	}
}
