package persist

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubscribers(t *testing.T) {
	var subs Subscribers[[]string]
	subs.Notify([]string{"nobody listening"})

	var got1, got2 [][]string
	unsubscribe1 := subs.Subscribe(func(ids []string) { got1 = append(got1, ids) })
	unsubscribe2 := subs.Subscribe(func(ids []string) { got2 = append(got2, ids) })
	assert.Equal(t, 2, subs.Len())

	subs.Notify([]string{"1"})
	unsubscribe1()
	unsubscribe1()
	assert.Equal(t, 1, subs.Len())
	subs.Notify([]string{"1", "2"})

	assert.Equal(t, [][]string{{"1"}}, got1)
	assert.Equal(t, [][]string{{"1"}, {"1", "2"}}, got2)

	unsubscribe2()
	assert.Equal(t, 0, subs.Len())
}

func TestSubscribers_Clone(t *testing.T) {
	subs := Subscribers[[]string]{Clone: slices.Clone[[]string]}

	var got []string
	subs.Subscribe(func(ids []string) { ids[0] = "mutated" })
	subs.Subscribe(func(ids []string) { got = ids })

	snapshot := []string{"1", "2"}
	subs.Notify(snapshot)

	assert.Equal(t, []string{"1", "2"}, got)
	assert.Equal(t, []string{"1", "2"}, snapshot)
}
