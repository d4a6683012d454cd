package toast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessage(t *testing.T) {
	assert.Equal(t, "Patient record was successfully created!", Message(Success, Created))
	assert.Equal(t, "Patient record was successfully deleted!", Message(Success, Deleted))
	assert.Equal(t, "Patient record was not successfully updated. Please try again!", Message(Error, Updated))
}

func fixedBoard(at time.Time) *Board {
	b := NewBoard(DefaultTTL)
	b.now = func() time.Time { return at }
	return b
}

func TestNotifyAndExpire(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := fixedBoard(start)

	n := b.Notify(Success, Updated)
	assert.NotEmpty(t, n.ID)
	assert.Equal(t, start.Add(DefaultTTL), n.ExpiresAt)

	assert.Len(t, b.Active(start.Add(4*time.Second)), 1)
	assert.Empty(t, b.Active(start.Add(5*time.Second)))
}

func TestActiveOrder(t *testing.T) {
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	b := fixedBoard(start)
	first := b.Notify(Success, Created)

	b.now = func() time.Time { return start.Add(time.Second) }
	second := b.Notify(Error, Deleted)

	active := b.Active(start.Add(2 * time.Second))
	require.Len(t, active, 2)
	assert.Equal(t, first.ID, active[0].ID)
	assert.Equal(t, second.ID, active[1].ID)
}

func TestDismiss(t *testing.T) {
	start := time.Now()
	b := fixedBoard(start)
	n := b.Notify(Error, Created)

	assert.True(t, b.Dismiss(n.ID))
	assert.False(t, b.Dismiss(n.ID))
	assert.Empty(t, b.Active(start))
}

func TestOnNotify(t *testing.T) {
	b := NewBoard(0)

	var got []Notification
	cancel := b.OnNotify(func(n Notification) { got = append(got, n) })

	b.Notify(Success, Created)
	cancel()
	b.Notify(Success, Deleted)

	require.Len(t, got, 1)
	assert.Equal(t, Created, got[0].Action)
}
