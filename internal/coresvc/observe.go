package coresvc

import (
	"context"
	"time"
)

// ObservationHooks captures optional callbacks around an operation, letting
// metrics attach to quote/execution/settlement flows without those packages
// importing the metrics package directly.
type ObservationHooks struct {
	OnStart    func(ctx context.Context, meta map[string]string)
	OnComplete func(ctx context.Context, meta map[string]string, err error, duration time.Duration)
}

var NoopObservationHooks = ObservationHooks{}

// StartObservation triggers OnStart and returns the completion callback.
func StartObservation(ctx context.Context, hooks ObservationHooks, meta map[string]string) func(error) {
	if hooks.OnStart != nil {
		hooks.OnStart(ctx, meta)
	}
	start := time.Now()
	return func(err error) {
		if hooks.OnComplete != nil {
			hooks.OnComplete(ctx, meta, err, time.Since(start))
		}
	}
}
