package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryNotifier_FanOutAndCancel(t *testing.T) {
	n := NewMemoryNotifier()
	var a, b []string

	cancelA, err := n.Subscribe(func(id string) { a = append(a, id) })
	require.NoError(t, err)
	_, err = n.Subscribe(func(id string) { b = append(b, id) })
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "j1"))
	cancelA()
	require.NoError(t, n.Notify(context.Background(), "j2"))

	assert.Equal(t, []string{"j1"}, a)
	assert.Equal(t, []string{"j1", "j2"}, b)
}
