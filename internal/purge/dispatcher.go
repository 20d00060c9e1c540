package purge

import (
	"context"
	"fmt"
	"time"

	"github.com/aatumaykin/purgebot/internal/logger"
)

// Observer receives completed purge results.
type Observer interface {
	ObservePurge(trigger string, r Result)
}

// Dispatcher runs purges against a Client.
type Dispatcher struct {
	client   Client
	logger   *logger.Logger
	observer Observer
	now      func() time.Time
}

// NewDispatcher creates a dispatcher. observer may be nil.
func NewDispatcher(client Client, log *logger.Logger, observer Observer) *Dispatcher {
	return &Dispatcher{
		client:   client,
		logger:   log,
		observer: observer,
		now:      time.Now,
	}
}

// Purge resolves channelID and deletes every message matching pred.
func (d *Dispatcher) Purge(ctx context.Context, channelID string, pred Predicate) Result {
	start := d.now()

	ch, err := d.client.Channel(ctx, channelID)
	if err != nil {
		res := Result{
			ChannelID: channelID,
			Err:       fmt.Errorf("resolve channel %s: %w", channelID, err),
			Duration:  d.now().Sub(start),
		}
		d.report("scheduled", res)
		return res
	}

	res := d.purgeChannel(ctx, ch, pred, start)
	d.report("scheduled", res)
	return res
}

// PurgeAll purges each channel sequentially. A failure in one channel does
// not stop the others.
func (d *Dispatcher) PurgeAll(ctx context.Context, channels []Channel, pred Predicate) Summary {
	var sum Summary
	for _, ch := range channels {
		if ctx.Err() != nil {
			sum.Results = append(sum.Results, Result{ChannelID: ch.ID(), ChannelName: ch.Name(), Err: ctx.Err()})
			continue
		}

		res := d.purgeChannel(ctx, ch, pred, d.now())
		d.report("manual", res)
		sum.Results = append(sum.Results, res)
		sum.Total += res.Deleted
	}
	return sum
}

func (d *Dispatcher) purgeChannel(ctx context.Context, ch Channel, pred Predicate, start time.Time) Result {
	deleted, err := ch.Purge(ctx, pred)
	res := Result{
		ChannelID:   ch.ID(),
		ChannelName: ch.Name(),
		Deleted:     deleted,
		Duration:    d.now().Sub(start),
	}
	if err != nil {
		res.Err = fmt.Errorf("purge channel %s: %w", ch.ID(), err)
	}
	return res
}

func (d *Dispatcher) report(trigger string, res Result) {
	fields := []logger.Field{
		{Key: "trigger", Value: trigger},
		{Key: "channel_id", Value: res.ChannelID},
		{Key: "channel_name", Value: res.ChannelName},
		{Key: "deleted", Value: res.Deleted},
		{Key: "duration_ms", Value: res.Duration.Milliseconds()},
	}
	if res.Err != nil {
		d.logger.Error("purge failed", res.Err, append(fields, logger.Field{Key: "reason", Value: Reason(res.Err)})...)
	} else {
		d.logger.Info("purge finished", fields...)
	}

	if d.observer != nil {
		d.observer.ObservePurge(trigger, res)
	}
}
