package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nicebartender/botgate/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { d.Close() })
	return d
}

func message(id, user, group int64, text string, at time.Time) *event.Message {
	return &event.Message{
		Time:      at,
		SelfID:    42,
		MessageID: id,
		Sender:    event.Sender{UserID: user, GroupID: group, Nickname: "n"},
		Chain:     event.Chain{event.Text(text)},
		Text:      text,
	}
}

func TestRecentMessagesByPosition(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	require.NoError(t, d.RecordMessage(ctx, "main", message(1, 7, 900, "first", base)))
	require.NoError(t, d.RecordMessage(ctx, "main", message(2, 8, 900, "second", base.Add(time.Second))))
	require.NoError(t, d.RecordMessage(ctx, "main", message(3, 7, 0, "private", base.Add(2*time.Second))))
	require.NoError(t, d.RecordMessage(ctx, "other", message(4, 7, 900, "elsewhere", base.Add(3*time.Second))))

	group, err := d.RecentMessages(ctx, "main", event.GroupOf(900), 10)
	require.NoError(t, err)
	require.Len(t, group, 2)
	assert.Equal(t, "first", group[0].Content)
	assert.Equal(t, "second", group[1].Content)
	assert.JSONEq(t, `[{"type":"text","data":{"text":"first"}}]`, group[0].Segments)

	private, err := d.RecentMessages(ctx, "main", event.PrivateOf(7), 10)
	require.NoError(t, err)
	require.Len(t, private, 1)
	assert.Equal(t, int64(3), private[0].MessageID)

	last, err := d.RecentMessages(ctx, "main", event.GroupOf(900), 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "second", last[0].Content)
}

func TestCommandStats(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	m := message(1, 7, 900, "!x", time.Now())

	require.NoError(t, d.RecordInvocation(ctx, "main", "echo", m, "ok", time.Millisecond))
	require.NoError(t, d.RecordInvocation(ctx, "main", "echo", m, "error", time.Millisecond))
	require.NoError(t, d.RecordInvocation(ctx, "main", "guess", m, "hint", time.Millisecond))
	require.NoError(t, d.RecordInvocation(ctx, "other", "guess", m, "ok", time.Millisecond))

	stats, err := d.CommandStats(ctx, "main")
	require.NoError(t, err)
	assert.Equal(t, []CommandStat{
		{Command: "echo", Runs: 2, Errors: 1},
		{Command: "guess", Runs: 1, Errors: 0},
	}, stats)
}

func TestRecentMessagesLimit(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i := range MaxHistory + 5 {
		require.NoError(t, d.RecordMessage(ctx, "main", message(int64(i+1), 7, 900, "m", base.Add(time.Duration(i)*time.Second))))
	}

	all, err := d.RecentMessages(ctx, "main", event.GroupOf(900), 150)
	require.NoError(t, err)
	require.Len(t, all, MaxHistory)
	assert.Equal(t, int64(MaxHistory+5), all[len(all)-1].MessageID)

	def, err := d.RecentMessages(ctx, "main", event.GroupOf(900), 0)
	require.NoError(t, err)
	assert.Len(t, def, DefaultHistory)
}

func TestOpenExistingHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keep.db")
	d, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, d.RecordMessage(context.Background(), "main", message(1, 7, 0, "hi", time.Now())))
	require.NoError(t, d.Close())

	d, err = Open(path)
	require.NoError(t, err)
	defer d.Close()
	messages, invocations, err := d.counts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), messages)
	assert.Equal(t, int64(0), invocations)
}
