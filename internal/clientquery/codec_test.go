package clientquery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEscapeRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		escaped string
	}{
		{name: "spaces", raw: "hello world", escaped: `hello\sworld`},
		{name: "pipe", raw: "a|b", escaped: `a\pb`},
		{name: "backslash", raw: `a\b`, escaped: `a\\b`},
		{name: "slash", raw: "a/b", escaped: `a\/b`},
		{name: "newline", raw: "a\nb", escaped: `a\nb`},
		{name: "plain", raw: "abc", escaped: "abc"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.escaped, Escape(tc.raw))
			assert.Equal(t, tc.raw, Unescape(tc.escaped))
		})
	}
}

func TestBuildCommand(t *testing.T) {
	t.Parallel()

	line := BuildCommand("sendtextmessage",
		KV("targetmode", "1"), KV("target", "5"), KV("msg", "hello there"))
	assert.Equal(t, `sendtextmessage targetmode=1 target=5 msg=hello\sthere`, line)

	line = BuildCommand("clientlist", Flag("uid"), Flag("ip"))
	assert.Equal(t, "clientlist -uid -ip", line)
}

func TestParseLine(t *testing.T) {
	t.Parallel()

	entries := ParseLine(`clid=1 client_nickname=Alice\sX|clid=2 client_nickname=Bob`)
	require.Len(t, entries, 2)
	assert.Equal(t, "1", entries[0]["clid"])
	assert.Equal(t, "Alice X", entries[0]["client_nickname"])
	assert.Equal(t, "Bob", entries[1]["client_nickname"])
}

func TestParseLineBareToken(t *testing.T) {
	t.Parallel()

	entries := ParseLine("away clid=3")
	require.Len(t, entries, 1)
	_, ok := entries[0]["away"]
	assert.True(t, ok)
	assert.Equal(t, "3", entries[0]["clid"])
}

func TestNotificationType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "notifytextmessage",
		NotificationType("notifytextmessage targetmode=1 msg=hi invokerid=3"))
	assert.Equal(t, "notifycliententerview", NotificationType("notifycliententerview"))
	assert.Equal(t, "", NotificationType("error id=0 msg=ok"))
}

func TestSplitBatch(t *testing.T) {
	t.Parallel()

	raw := "notifytextmessage msg=a\n\rnotifyclientmoved clid=1 ctid=2\r\n"
	items := SplitBatch(raw)
	require.Len(t, items, 2)
	assert.Equal(t, "notifytextmessage msg=a", items[0])
	assert.Equal(t, "notifyclientmoved clid=1 ctid=2", items[1])
}

func TestResultFirstEmpty(t *testing.T) {
	t.Parallel()

	var r *Result
	assert.Empty(t, r.First())
	assert.Empty(t, (&Result{}).First())
}
