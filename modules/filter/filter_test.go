package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const event = `{
	"id": 3, "type": "message-created", "platform": "qq", "self_id": "10086",
	"user": {"id": "42", "name": "bob", "is_bot": false},
	"channel": {"id": "c1", "type": 0},
	"message": {"id": "m1", "content": "/help me"}
}`

func TestFilter(t *testing.T) {
	testcase := []struct {
		rule     string
		expected bool
	}{
		{`{"type": "message-created"}`, true},
		{`{"type": "guild-added"}`, false},
		{`{"platform": {".in": ["qq", "discord"]}}`, true},
		{`{"platform": {".in": "telegram"}}`, false},
		{`{".not": {"user.is_bot": true}}`, true},
		{`{"message.content": {".regex": "^/help"}}`, true},
		{`{"message.content": {".contains": "nope"}}`, false},
		{`{"channel.id": {".neq": "c2"}}`, true},
		{`{".or": [{"user.id": "1"}, {"user.id": "42"}]}`, true},
		{`{".or": [{"user.id": "1"}, {"user.id": "2"}]}`, false},
		{`{"guild": {".exists": false}, "message": {".exists": true}}`, true},
		{`{"type": "message-created", "self_id": "0"}`, false},
	}
	payload := gjson.Parse(event)
	for _, tc := range testcase {
		f, err := Parse([]byte(tc.rule))
		require.NoError(t, err, tc.rule)
		assert.Equal(t, tc.expected, f.Eval(payload), tc.rule)
	}
}

func TestInvalidRule(t *testing.T) {
	for _, rule := range []string{
		`[1]`,
		`{".not": 1}`,
		`{".or": {}}`,
		`{"a": {".regex": "("}}`,
		`{"a": {".unknown": 1}}`,
		`{"a": {".exists": "yes"}}`,
		`{"a": {".contains": [1]}}`,
		`{`,
	} {
		_, err := Parse([]byte(rule))
		assert.Error(t, err, rule)
	}
}

func TestLoad(t *testing.T) {
	file := filepath.Join(t.TempDir(), "filter.jsonc")
	require.NoError(t, os.WriteFile(file, []byte(`{
		// only human users
		"user.is_bot": false,
	}`), 0o644))

	f, err := Load(file)
	require.NoError(t, err)
	require.NotNil(t, f)
	assert.True(t, f.Eval(gjson.Parse(event)))
	assert.Same(t, f, Find(file))

	f, err = Load("")
	assert.NoError(t, err)
	assert.Nil(t, f)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestFunc(t *testing.T) {
	var f Filter = Func(func(p gjson.Result) bool { return p.Get("id").Int() == 3 })
	assert.True(t, f.Eval(gjson.Parse(event)))
}
