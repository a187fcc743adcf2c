package plugins

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolverRegistry_NoneRegisteredReturnsEmpty(t *testing.T) {
	r := NewResolverRegistry()
	assert.Equal(t, "", r.Resolve("remote", "id-1", nil))
}

func TestResolverRegistry_RegisteredResolverReturnsURL(t *testing.T) {
	r := NewResolverRegistry()
	r.Register("remote", "rplugin", func(id string, opts map[string]interface{}) (string, error) {
		return "https://stream/" + id, nil
	})
	assert.Equal(t, "https://stream/id-1", r.Resolve("remote", "id-1", nil))
}

func TestResolverRegistry_FailingResolverReturnsEmpty(t *testing.T) {
	r := NewResolverRegistry()
	r.Register("remote", "rplugin", func(id string, opts map[string]interface{}) (string, error) {
		return "", errors.New("network down")
	})
	assert.Equal(t, "", r.Resolve("remote", "id-1", nil))
}

func TestResolverRegistry_PanickingResolverReturnsEmpty(t *testing.T) {
	r := NewResolverRegistry()
	r.Register("remote", "rplugin", func(id string, opts map[string]interface{}) (string, error) {
		panic("boom")
	})
	assert.Equal(t, "", r.Resolve("remote", "id-1", nil))
}

func TestResolverRegistry_OnlyOwnerMayUnregister(t *testing.T) {
	r := NewResolverRegistry()
	r.Register("remote", "rplugin", func(id string, opts map[string]interface{}) (string, error) {
		return "url", nil
	})
	r.Unregister("remote", "someone-else")
	assert.Equal(t, "url", r.Resolve("remote", "id-1", nil))

	r.Unregister("remote", "rplugin")
	assert.Equal(t, "", r.Resolve("remote", "id-1", nil))
}
