package mylgws

import (
	"encoding/json"
	"testing"

	"github.com/jazbelrose/mylg-presence/mylg-ws/connectiondao"
	"github.com/tj/assert"
)

func TestChooseProtocol(t *testing.T) {
	testCases := map[string]struct {
		Header  string
		Want    string
		WantOK  bool
		Session string
	}{
		"absent":            {},
		"token only":        {Header: "jwt", Want: "jwt", WantOK: true},
		"token and session": {Header: "jwt, tab-1", Want: "jwt", WantOK: true, Session: "tab-1"},
		"extra tokens":      {Header: "jwt,tab-1,other", Want: "jwt", WantOK: true, Session: "tab-1"},
		"blank tokens":      {Header: " , jwt , ", Want: "jwt", WantOK: true},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			offered := ParseProtocols(tc.Header)
			got, ok := ChooseProtocol(offered)
			assert.Equal(t, tc.WantOK, ok)
			assert.Equal(t, tc.Want, got)
			assert.Equal(t, tc.Session, SessionFromProtocols(offered))
		})
	}
}

func TestMessages(t *testing.T) {
	t.Run("changed", func(t *testing.T) {
		data, err := ChangedMessage("u1", false, fixedNow)
		assert.Nil(t, err)
		assert.JSONEq(t, `{"action":"presenceChanged","userId":"u1","online":false,"at":"2026-10-18T12:00:00Z"}`, string(data))
	})

	t.Run("empty snapshot encodes an empty list", func(t *testing.T) {
		data, err := SnapshotMessage(nil, fixedNow)
		assert.Nil(t, err)
		assert.JSONEq(t, `{"action":"presenceSnapshot","userIds":[],"at":"2026-10-18T12:00:00Z"}`, string(data))
	})

	t.Run("pong", func(t *testing.T) {
		var req Request
		assert.Nil(t, json.Unmarshal(PongMessage(), &req))
		assert.Equal(t, ActionPong, req.Action)
	})
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest(`{"action":"getPresence"}`)
	assert.Nil(t, err)
	assert.Equal(t, ActionGetPresence, req.Action)

	_, err = ParseRequest(`{}`)
	assert.NotNil(t, err)

	_, err = ParseRequest(``)
	assert.NotNil(t, err)
}

func TestOnlineUsers(t *testing.T) {
	conns := []connectiondao.Connection{
		{ConnectionID: "c1", UserID: "u2"},
		{ConnectionID: "c2", UserID: "u1"},
		{ConnectionID: "c3", UserID: "u2"},
		{ConnectionID: "c4"},
	}
	assert.Equal(t, []string{"u1", "u2", "u3"}, OnlineUsers(conns, "u3", "u1", ""))
	assert.Equal(t, []string{}, OnlineUsers(nil))
}

func TestAuthorizedUserID(t *testing.T) {
	testCases := map[string]struct {
		Authorizer interface{}
		Want       string
	}{
		"nil":          {},
		"wrong type":   {Authorizer: "u1"},
		"userId":       {Authorizer: map[string]interface{}{"userId": " u1 "}, Want: "u1"},
		"principalId":  {Authorizer: map[string]interface{}{"principalId": "u2"}, Want: "u2"},
		"userId first": {Authorizer: map[string]interface{}{"userId": "u1", "principalId": "p"}, Want: "u1"},
		"blank userId": {Authorizer: map[string]interface{}{"userId": "  ", "principalId": "u2"}, Want: "u2"},
		"nested":       {Authorizer: map[string]interface{}{"lambda": map[string]interface{}{"userId": "u3"}}, Want: "u3"},
		"non-string":   {Authorizer: map[string]interface{}{"userId": 42}},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.Want, AuthorizedUserID(tc.Authorizer))
		})
	}
}
