package pkg

import (
	"context"
	"errors"

	"github.com/aquamarinepk/aqm/events"
)

// FanoutPublisher delivers each event to every underlying publisher. All
// targets are attempted even when an earlier one fails.
type FanoutPublisher struct {
	targets []events.Publisher
}

func NewFanoutPublisher(targets ...events.Publisher) *FanoutPublisher {
	return &FanoutPublisher{targets: targets}
}

func (p *FanoutPublisher) Publish(ctx context.Context, topic string, msg []byte) error {
	var errs []error
	for _, target := range p.targets {
		if target == nil {
			continue
		}
		if err := target.Publish(ctx, topic, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
