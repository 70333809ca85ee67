package iotask

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadInvokesOnDoneWithResult(t *testing.T) {
	l := New(2, 8, time.Second, nil, "test")

	var mu sync.Mutex
	var got any
	done := make(chan struct{})

	l.Load(func() (any, error) {
		return 42, nil
	}, func(result any, err error) {
		mu.Lock()
		got = result
		mu.Unlock()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("onDone never called")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 42, got)
}

func TestLoadPropagatesError(t *testing.T) {
	l := New(2, 8, time.Second, nil, "test")
	wantErr := errors.New("load failed")

	done := make(chan error, 1)
	l.Load(func() (any, error) {
		return nil, wantErr
	}, func(_ any, err error) {
		done <- err
	})

	select {
	case err := <-done:
		assert.Equal(t, wantErr, err)
	case <-time.After(2 * time.Second):
		t.Fatal("onDone never called")
	}
}

func TestLoadAllWaitsForAllResults(t *testing.T) {
	l := New(4, 16, time.Second, nil, "test")

	fns := make([]func() (any, error), 5)
	for i := range fns {
		i := i
		fns[i] = func() (any, error) { return i * 2, nil }
	}

	results := l.LoadAll(fns)
	for i, r := range results {
		assert.Equal(t, i*2, r)
	}
}
