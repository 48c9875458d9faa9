package notify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"taskapp/internal/alarm"
)

func TestRequestPermission(t *testing.T) {
	assert.Equal(t, Granted, RequestPermission(true, nil))
	assert.Equal(t, Denied, RequestPermission(false, nil))
	assert.Equal(t, "denied", Denied.String())
}

func TestSinkDeliversWhenGranted(t *testing.T) {
	s := NewSink(Granted, nil)
	var got []alarm.Reminder
	s.Attach(func(r alarm.Reminder) { got = append(got, r) })

	s.Notify(alarm.Reminder{ID: 1, Title: "Buy milk"})
	assert.Equal(t, []alarm.Reminder{{ID: 1, Title: "Buy milk"}}, got)

	s.Attach(nil)
	s.Notify(alarm.Reminder{ID: 2})
	assert.Len(t, got, 1)
}

func TestSinkSuppressesWhenDenied(t *testing.T) {
	s := NewSink(Denied, nil)
	called := false
	s.Attach(func(alarm.Reminder) { called = true })

	s.Notify(alarm.Reminder{ID: 1})
	assert.False(t, called)
}
