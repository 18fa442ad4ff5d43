package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientStoreUpsertMergesFields(t *testing.T) {
	t.Parallel()

	cs := newClientStore()
	cs.Upsert(ClientRecord{Clid: 5, Nickname: "Alice", UID: "uid-1"})
	cs.Upsert(ClientRecord{Clid: 5, IP: "10.0.0.1"})

	rec, ok := cs.Get(5)
	require.True(t, ok)
	assert.Equal(t, "Alice", rec.Nickname)
	assert.Equal(t, "uid-1", rec.UID)
	assert.Equal(t, "10.0.0.1", rec.IP)
}

func TestClientStoreRecordSurvivesDisconnect(t *testing.T) {
	t.Parallel()

	cs := newClientStore()
	cs.Upsert(ClientRecord{Clid: 5, Nickname: "Alice", UID: "uid-1"})
	cs.SetOnline(5, true)
	require.Equal(t, 1, cs.OnlineCount())

	cs.SetOnline(5, false)
	assert.Equal(t, 0, cs.OnlineCount())

	// the record still attributes later log rows
	rec, ok := cs.Get(5)
	require.True(t, ok)
	assert.Equal(t, "uid-1", rec.UID)

	// same person reconnects with a new clid and a new name
	cs.Upsert(ClientRecord{Clid: 9, Nickname: "Alice2", UID: "uid-1"})
	cs.SetOnline(9, true)
	assert.Equal(t, map[string]int{"uid-1": 9}, cs.OnlineUIDToClid())
}

func TestClientStoreReplaceOnlineRebuildsSet(t *testing.T) {
	t.Parallel()

	cs := newClientStore()
	cs.Upsert(ClientRecord{Clid: 1, Nickname: "Stale", UID: "uid-s"})
	cs.SetOnline(1, true)

	cs.ReplaceOnline([]ClientRecord{
		{Clid: 2, Nickname: "Bob", UID: "uid-b"},
		{Clid: 3, Nickname: "Carol", UID: "uid-c", IP: "10.0.0.3"},
	})

	assert.Equal(t, 2, cs.OnlineCount())
	online := cs.Online()
	require.Len(t, online, 2)
	assert.Equal(t, 2, online[0].Clid)
	assert.Equal(t, 3, online[1].Clid)

	// clid 1 went offline but its record remains
	_, ok := cs.Get(1)
	assert.True(t, ok)
}

func TestClientStoreOnlineUIDSkipsUnknownUID(t *testing.T) {
	t.Parallel()

	cs := newClientStore()
	cs.Upsert(ClientRecord{Clid: 4, Nickname: "NoUID"})
	cs.SetOnline(4, true)
	assert.Empty(t, cs.OnlineUIDToClid())
}

func TestChannelStoreNameFallback(t *testing.T) {
	t.Parallel()

	ch := newChannelStore()
	ch.ReplaceAll(map[int]string{1: "Lobby", 2: "AFK"})

	assert.Equal(t, "Lobby", ch.Name(1))
	assert.Equal(t, "Channel 99", ch.Name(99))

	ch.ReplaceAll(map[int]string{3: "New"})
	assert.Equal(t, "Channel 1", ch.Name(1))
	assert.Equal(t, 1, ch.Len())
}

func TestLockSet(t *testing.T) {
	t.Parallel()

	ls := newLockSet()
	ls.Lock(7)
	ls.Lock(3)
	assert.True(t, ls.Locked(7))
	assert.Equal(t, []int{3, 7}, ls.List())

	ls.Unlock(7)
	assert.False(t, ls.Locked(7))
	assert.Equal(t, []int{3}, ls.List())
}

func TestDedupFilterDropsFastDuplicate(t *testing.T) {
	t.Parallel()

	now := time.Now()
	d := newDedupFilter(time.Second)
	d.now = func() time.Time { return now }

	assert.False(t, d.Drop("notifytextmessage msg=hi"))
	now = now.Add(200 * time.Millisecond)
	assert.True(t, d.Drop("notifytextmessage msg=hi"))
}

func TestDedupFilterPassesSlowRepeat(t *testing.T) {
	t.Parallel()

	now := time.Now()
	d := newDedupFilter(time.Second)
	d.now = func() time.Time { return now }

	assert.False(t, d.Drop("notifytextmessage msg=hi"))
	now = now.Add(1100 * time.Millisecond)
	assert.False(t, d.Drop("notifytextmessage msg=hi"))
}

func TestDedupFilterPassesDifferentPayload(t *testing.T) {
	t.Parallel()

	now := time.Now()
	d := newDedupFilter(time.Second)
	d.now = func() time.Time { return now }

	assert.False(t, d.Drop("notifytextmessage msg=hi"))
	assert.False(t, d.Drop("notifytextmessage msg=bye"))
	// the different payload replaced the previous key
	now = now.Add(100 * time.Millisecond)
	assert.False(t, d.Drop("notifytextmessage msg=hi"))
}
