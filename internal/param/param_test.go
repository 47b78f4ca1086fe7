package param

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
)

func TestEnsureBool(t *testing.T) {
	assert.True(t, EnsureBool(true, false))
	assert.True(t, EnsureBool("YES", false))
	assert.False(t, EnsureBool("0", true))
	assert.True(t, EnsureBool("maybe", true))
	assert.True(t, EnsureBool(gjson.Parse(`true`), false))
	assert.False(t, EnsureBool(gjson.Parse(`"no"`), true))
	assert.True(t, EnsureBool(gjson.Result{}, true))
}

func TestEnsureInt(t *testing.T) {
	assert.Equal(t, 5500, EnsureInt(" 5500", 0))
	assert.Equal(t, 7, EnsureInt("", 7))
	assert.Equal(t, 7, EnsureInt("x", 7))
}

func TestSetDefault(t *testing.T) {
	host := ""
	SetAtDefault(&host, "localhost", "")
	assert.Equal(t, "localhost", host)
	SetAtDefault(&host, "example.com", "")
	assert.Equal(t, "localhost", host)

	port := 5500
	SetExcludeDefault(&port, 0, 0)
	assert.Equal(t, 5500, port)
	SetExcludeDefault(&port, 8080, 0)
	assert.Equal(t, 8080, port)

	token := "a"
	SetExcludeDefault(&token, 1, 0)
	assert.Equal(t, "a", token)
}
