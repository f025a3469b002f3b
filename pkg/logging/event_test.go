package logging

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvent_JSONFieldNames(t *testing.T) {
	event := &Event{
		Timestamp:   time.Date(2026, 2, 23, 14, 30, 0, 123000000, time.UTC),
		RunID:       "switch-9f8e7d6c",
		AgentSystem: "vswitch",
		EventType:   EventGuestLifecycle,
		Summary:     "guest 7 MacLearning -> DataRx",
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Contains(t, m, "ts")
	assert.Contains(t, m, "run_id")
	assert.Contains(t, m, "agent_system")
	assert.Contains(t, m, "event_type")
	assert.Contains(t, m, "summary")
	// Omitempty fields absent
	assert.NotContains(t, m, "component")
	assert.NotContains(t, m, "tags")
	assert.NotContains(t, m, "data")
}

func TestEvent_OmitemptyPresent(t *testing.T) {
	event := &Event{
		Timestamp:   time.Now().UTC(),
		RunID:       "test",
		AgentSystem: "test",
		EventType:   EventPoolCollision,
		Summary:     "test",
		Component:   "guest",
		Tags:        []string{"pool"},
		Data:        json.RawMessage(`{"pool_id":4}`),
	}
	b, err := json.Marshal(event)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))

	assert.Contains(t, m, "component")
	assert.Contains(t, m, "tags")
	assert.Contains(t, m, "data")
}

func TestEvent_TimestampFormat(t *testing.T) {
	ts := time.Date(2026, 2, 23, 14, 30, 0, 123456789, time.UTC)
	event := &Event{Timestamp: ts, RunID: "r", AgentSystem: "a", EventType: "t", Summary: "s"}

	b, err := json.Marshal(event)
	require.NoError(t, err)

	// Verify RFC 3339 with sub-second precision
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	tsStr := m["ts"].(string)
	parsed, err := time.Parse(time.RFC3339Nano, tsStr)
	require.NoError(t, err)
	assert.True(t, parsed.Equal(ts))
}

func TestGuestLifecycleData_ToStateAlwaysPresent(t *testing.T) {
	data := &GuestLifecycleData{
		GuestID:   7,
		FromState: "MacLearning",
		ToState:   "DataRx",
		MAC:       "02:00:00:00:00:05",
		PoolID:    4,
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "to_state")
	assert.Equal(t, "DataRx", m["to_state"])
}

func TestControlUpdateData_RowAndSlotAlwaysPresent(t *testing.T) {
	data := &ControlUpdateData{
		Row:       7,
		Slot:      0,
		RateBps:   1_000_000_000,
		BurstBits: 1_000_000,
		NTags:     2,
	}
	b, err := json.Marshal(data)
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Contains(t, m, "row")
	assert.Contains(t, m, "slot")
	assert.Equal(t, float64(0), m["slot"], "slot 0 must not be omitted")
}

func TestEventTypeConstants(t *testing.T) {
	assert.Equal(t, "guest_lifecycle", EventGuestLifecycle)
	assert.Equal(t, "pool_collision", EventPoolCollision)
	assert.Equal(t, "control_update", EventControlUpdate)
	assert.Equal(t, "shaper_drop", EventShaperDrop)
	assert.Equal(t, "guest_removed", EventGuestRemoved)
}
