package presence

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct {
	name string
	sent [][]byte
}

func (c *stubConn) Send(data []byte) bool {
	c.sent = append(c.sent, data)
	return true
}

func (c *stubConn) Close(string) {}

func TestRegisterResolve(t *testing.T) {
	d := NewDirectory()
	alice := uuid.New()
	conn := &stubConn{name: "a1"}

	_, ok := d.Resolve(alice)
	assert.False(t, ok)

	prev := d.Register(alice, conn)
	assert.Nil(t, prev)

	got, ok := d.Resolve(alice)
	require.True(t, ok)
	assert.Same(t, conn, got)
	assert.True(t, d.IsOnline(alice))
	assert.Equal(t, []uuid.UUID{alice}, d.ListOnline())
}

func TestRegisterLastWriteWins(t *testing.T) {
	d := NewDirectory()
	alice := uuid.New()
	first, second := &stubConn{name: "first"}, &stubConn{name: "second"}

	d.Register(alice, first)
	prev := d.Register(alice, second)

	assert.Same(t, first, prev)
	got, _ := d.Resolve(alice)
	assert.Same(t, second, got)
	assert.Equal(t, 1, d.Count())

	assert.Nil(t, d.Register(alice, second), "re-registering the same conn reports no replacement")
}

func TestUnregister(t *testing.T) {
	d := NewDirectory()
	alice := uuid.New()

	d.Unregister(alice)
	assert.Equal(t, 0, d.Count())

	d.Register(alice, &stubConn{})
	d.Unregister(alice)
	assert.False(t, d.IsOnline(alice))
	assert.Empty(t, d.ListOnline())
}

func TestReleaseIgnoresReplacedConn(t *testing.T) {
	d := NewDirectory()
	alice := uuid.New()
	old, cur := &stubConn{name: "old"}, &stubConn{name: "new"}

	d.Register(alice, old)
	d.Register(alice, cur)

	assert.False(t, d.Release(alice, old))
	assert.True(t, d.IsOnline(alice))

	assert.True(t, d.Release(alice, cur))
	assert.False(t, d.IsOnline(alice))
	assert.False(t, d.Release(alice, cur))
}

func TestOnChange(t *testing.T) {
	d := NewDirectory()
	var counts []int
	d.OnChange(func(n int) { counts = append(counts, n) })
	alice, bob := uuid.New(), uuid.New()
	c := &stubConn{}

	d.Register(alice, c)
	d.Register(bob, &stubConn{})
	d.Unregister(bob)
	d.Unregister(bob)
	d.Release(alice, &stubConn{})
	d.Release(alice, c)

	assert.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestListOnlineIsSorted(t *testing.T) {
	d := NewDirectory()
	for i := 0; i < 20; i++ {
		d.Register(uuid.New(), &stubConn{})
	}

	ids := d.ListOnline()
	require.Len(t, ids, 20)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i-1].String(), ids[i].String())
	}
}

func TestConcurrentRegisterUnregister(t *testing.T) {
	d := NewDirectory()
	const users = 50
	var changes atomic.Int64
	d.OnChange(func(int) { changes.Add(1) })

	ids := make([]uuid.UUID, users)
	for i := range ids {
		ids[i] = uuid.New()
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			conn := &stubConn{}
			d.Register(id, conn)
			// same goroutine must observe its own registration
			got, ok := d.Resolve(id)
			assert.True(t, ok)
			assert.Same(t, conn, got)
			_ = d.ListOnline()
			assert.True(t, d.Release(id, conn))
		}(id)
	}
	wg.Wait()

	assert.Equal(t, 0, d.Count())
	assert.Equal(t, int64(2*users), changes.Load())
}
