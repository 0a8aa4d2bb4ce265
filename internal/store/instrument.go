package store

import (
	"context"
	"time"
)

// Observer receives the outcome of every store operation.
type Observer interface {
	ObserveStoreOperation(operation string, err error, duration time.Duration)
}

type instrumented struct {
	next Store
	obs  Observer
}

// Instrument decorates s so each call is reported to obs.
func Instrument(s Store, obs Observer) Store {
	if obs == nil {
		return s
	}
	return &instrumented{next: s, obs: obs}
}

func (i *instrumented) observe(op string, start time.Time, err error) {
	i.obs.ObserveStoreOperation(op, err, time.Since(start))
}

func (i *instrumented) Get(ctx context.Context, key string) (rec Record, err error) {
	defer func(start time.Time) { i.observe("get", start, ignoreNotFound(err)) }(time.Now())
	return i.next.Get(ctx, key)
}

func (i *instrumented) List(ctx context.Context, prefix string) (recs []Record, err error) {
	defer func(start time.Time) { i.observe("list", start, err) }(time.Now())
	return i.next.List(ctx, prefix)
}

func (i *instrumented) Set(ctx context.Context, key string, value []byte) (v int64, err error) {
	defer func(start time.Time) { i.observe("set", start, err) }(time.Now())
	return i.next.Set(ctx, key, value)
}

func (i *instrumented) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { i.observe("delete", start, ignoreNotFound(err)) }(time.Now())
	return i.next.Delete(ctx, key)
}

func (i *instrumented) CompareAndSwap(ctx context.Context, key string, expected int64, value []byte) (v int64, err error) {
	defer func(start time.Time) {
		if err == ErrVersionConflict {
			i.observe("cas", start, nil)
			return
		}
		i.observe("cas", start, err)
	}(time.Now())
	return i.next.CompareAndSwap(ctx, key, expected, value)
}

func (i *instrumented) Subscribe(prefix string, fn func(Event)) func() {
	return i.next.Subscribe(prefix, fn)
}

func ignoreNotFound(err error) error {
	if err == ErrNotFound {
		return nil
	}
	return err
}
