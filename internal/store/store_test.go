package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/scalemesh/policy-server/internal/coordination"
	"github.com/scalemesh/policy-server/internal/coordination/mocks"
)

func readSection(t *testing.T, client coordination.Client, section string) map[string]json.RawMessage {
	t.Helper()
	data, _, err := client.Read(context.Background())
	require.NoError(t, err)

	doc := map[string]map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(data, &doc))
	return doc[section]
}

func TestUpdateInsertAndRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := coordination.NewMemoryClient()
	st := New(client)

	require.NoError(t, st.Update(ctx, "triggers", "t1", map[string]string{"event": "NODELOST"}))
	require.NoError(t, st.Update(ctx, "triggers", "t2", map[string]string{"event": "NODEADDED"}))

	triggers := readSection(t, client, "triggers")
	assert.Len(t, triggers, 2)
	assert.JSONEq(t, `{"event":"NODELOST"}`, string(triggers["t1"]))

	require.NoError(t, st.Update(ctx, "triggers", "t1", nil))
	triggers = readSection(t, client, "triggers")
	assert.Len(t, triggers, 1)
	assert.NotContains(t, triggers, "t1")
}

func TestUpdateRemoveAbsentEntryIsNoop(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := coordination.NewMemoryClient()
	st := New(client)

	// Removal is idempotent at this layer; existence checks belong to the
	// command processor.
	require.NoError(t, st.Update(ctx, "listeners", "ghost", nil))
}

func TestUpdatePreservesOtherSections(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := coordination.NewMemoryClient()
	require.NoError(t, client.Write(ctx, []byte(`{"properties":{"mode":"auto"},"triggers":{}}`), coordination.NoRevision))

	st := New(client)
	require.NoError(t, st.Update(ctx, "triggers", "t1", map[string]string{"event": "NODELOST"}))

	data, _, err := client.Read(ctx)
	require.NoError(t, err)
	doc := map[string]json.RawMessage{}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.JSONEq(t, `{"mode":"auto"}`, string(doc["properties"]))
}

func TestUpdateRetriesOnConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	gomock.InOrder(
		client.EXPECT().Read(gomock.Any()).Return([]byte(`{}`), coordination.Revision("1"), nil),
		client.EXPECT().Write(gomock.Any(), gomock.Any(), coordination.Revision("1")).
			Return(coordination.ErrRevisionConflict),
		client.EXPECT().Read(gomock.Any()).Return([]byte(`{}`), coordination.Revision("2"), nil),
		client.EXPECT().Write(gomock.Any(), gomock.Any(), coordination.Revision("2")).
			Return(nil),
	)

	var conflicts int
	st := New(client,
		WithInitialBackoff(time.Millisecond),
		WithConflictHook(func(context.Context) { conflicts++ }),
	)
	require.NoError(t, st.Update(ctx, "triggers", "t1", map[string]string{"event": "NODELOST"}))
	assert.Equal(t, 1, conflicts)
}

func TestUpdateGivesUpUnderSustainedContention(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Read(gomock.Any()).Return([]byte(`{}`), coordination.Revision("1"), nil).Times(3)
	client.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(coordination.ErrRevisionConflict).Times(3)

	st := New(client, WithMaxAttempts(3), WithInitialBackoff(time.Millisecond))
	err := st.Update(ctx, "triggers", "t1", map[string]string{"event": "NODELOST"})
	assert.ErrorIs(t, err, ErrTooMuchContention)
}

func TestUpdateDoesNotRetryOtherErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Read(gomock.Any()).Return([]byte(`{}`), coordination.Revision("1"), nil)
	client.EXPECT().Write(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(fmt.Errorf("backend unavailable"))

	st := New(client, WithInitialBackoff(time.Millisecond))
	err := st.Update(ctx, "triggers", "t1", map[string]string{"event": "NODELOST"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTooMuchContention)
}

func TestConcurrentUpdatesBothWin(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	client := coordination.NewMemoryClient()
	st := New(client, WithInitialBackoff(time.Millisecond))

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("t%d", i)
			errs[i] = st.Update(ctx, "triggers", name, map[string]string{"event": "NODELOST"})
		}()
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "writer %d", i)
	}
	triggers := readSection(t, client, "triggers")
	assert.Len(t, triggers, writers)
}
