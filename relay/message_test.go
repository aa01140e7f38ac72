package relay_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nostrsync/negsync/relay"
)

func TestEncodeMessages(t *testing.T) {
	for _, tc := range []struct {
		name string
		msg  []byte
		want string
	}{
		{
			name: "NEG-OPEN",
			msg:  relay.EncodeNegOpen("sub1", json.RawMessage(`{"kinds":[1]}`), []byte{0x61, 0xab}),
			want: `["NEG-OPEN","sub1",{"kinds":[1]},"61ab"]`,
		},
		{
			name: "NEG-OPEN without filters",
			msg:  relay.EncodeNegOpen("sub1", nil, []byte{0x61}),
			want: `["NEG-OPEN","sub1",{},"61"]`,
		},
		{
			name: "NEG-MSG",
			msg:  relay.EncodeNegMsg("sub1", []byte{0x61, 0, 1}),
			want: `["NEG-MSG","sub1","610001"]`,
		},
		{
			name: "NEG-ERR",
			msg:  relay.EncodeNegErr("sub1", "closed: bye"),
			want: `["NEG-ERR","sub1","closed: bye"]`,
		},
		{
			name: "NEG-CLOSE",
			msg:  relay.EncodeNegClose("sub1"),
			want: `["NEG-CLOSE","sub1"]`,
		},
		{
			name: "NOTICE",
			msg:  relay.EncodeNotice("hi"),
			want: `["NOTICE","hi"]`,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.JSONEq(t, tc.want, string(tc.msg))
		})
	}
}

func TestParseMessage(t *testing.T) {
	label, elems, err := relay.ParseMessage([]byte(`["NEG-MSG", "sub1", "61"]`))
	require.NoError(t, err)
	require.Equal(t, relay.LabelNegMsg, label)
	require.Len(t, elems, 3)

	for _, bad := range []string{``, `"NEG-MSG"`, `[]`, `[null]`, `[{"a":1}]`, `["NEG-MSG"`} {
		_, _, err := relay.ParseMessage([]byte(bad))
		require.ErrorIs(t, err, relay.ErrProtocolFormat, bad)
	}
}

func TestIsNegentropyUnsupported(t *testing.T) {
	for _, tc := range []struct {
		notice string
		want   bool
	}{
		{"negentropy disabled", true},
		{"ERROR: NEGENTROPY not supported", true},
		{"bad msg: unknown cmd", true},
		{"Bad message received", true},
		{"unknown msg type", true},
		{"Unknown message type NEG-OPEN: msg ignored", true},
		{"unsupported protocol", true},
		{"unsupported filter", false},
		{"unknown subscription", false},
		{"rate-limited: slow down", false},
		{"", false},
	} {
		require.Equal(t, tc.want, relay.IsNegentropyUnsupported(tc.notice), tc.notice)
	}
}

func TestRelayError(t *testing.T) {
	err := &relay.RelayError{Relay: "wss://r", Reason: "blocked: too many open sessions"}
	require.NotErrorIs(t, err, relay.ErrRelayUnsupported)
	require.Contains(t, err.Error(), "wss://r")
	require.Contains(t, err.Error(), "blocked: too many open sessions")

	err = &relay.RelayError{Relay: "wss://r", Reason: "error: negentropy disabled"}
	require.ErrorIs(t, err, relay.ErrRelayUnsupported)
	require.True(t, relay.IsFatal(err))
}

func TestIDSet(t *testing.T) {
	s := relay.NewIDSet("bb", "aa")
	s.Merge(relay.NewIDSet("cc", "aa"))
	require.Equal(t, 3, s.Len())
	require.True(t, s.Has("cc"))
	require.False(t, s.Has("dd"))
	require.Equal(t, []string{"aa", "bb", "cc"}, s.Sorted())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	require.JSONEq(t, `["aa","bb","cc"]`, string(data))

	data, err = json.Marshal(relay.NewIDSet())
	require.NoError(t, err)
	require.Equal(t, `[]`, string(data))

	var r relay.Result
	require.NoError(t, json.Unmarshal([]byte(`{"need":["aa"],"have":[]}`), &r))
	require.Equal(t, relay.NewIDSet("aa"), r.Need)
	require.Zero(t, r.Have.Len())
}
