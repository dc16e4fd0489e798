// Package recycle bounds the set of soft-deleted links kept per owner.
package recycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"linkstash/internal/links"
)

// Bin applies the soft-delete and cap-eviction policy. The cap bounds
// the recycle bin to a small fixed window without a separate cleanup
// job.
type Bin struct {
	store     links.Store
	clock     links.Clock
	publisher links.Publisher
	topic     string
	keep      int
	logger    *zap.Logger
}

// New constructs a Bin retaining the keep most-recently-deleted links
// per owner. publisher may be nil.
func New(store links.Store, clock links.Clock, publisher links.Publisher, topic string, keep int, logger *zap.Logger) *Bin {
	if keep < 1 {
		keep = 1
	}
	return &Bin{
		store:     store,
		clock:     clock,
		publisher: publisher,
		topic:     topic,
		keep:      keep,
		logger:    logger,
	}
}

// SoftDelete moves a link into the bin, then immediately evicts
// anything past the cap. Deleting an already-deleted link is a no-op so
// the retention clock never resets.
func (b *Bin) SoftDelete(ctx context.Context, owner string, id int64) error {
	if err := b.store.SoftDelete(ctx, owner, id, b.clock.Now()); err != nil {
		return fmt.Errorf("move link to bin: %w", err)
	}
	if err := b.store.PurgeExcess(ctx, owner, b.keep); err != nil {
		return fmt.Errorf("purge excess deleted links: %w", err)
	}
	b.publish(ctx, links.EventLinkBinned, owner, id)
	return nil
}

// Restore clears the deletion timestamp unconditionally.
func (b *Bin) Restore(ctx context.Context, owner string, id int64) error {
	if err := b.store.Restore(ctx, owner, id); err != nil {
		return fmt.Errorf("restore link: %w", err)
	}
	b.publish(ctx, links.EventLinkRestored, owner, id)
	return nil
}

// Delete permanently removes a link, bypassing the bin.
func (b *Bin) Delete(ctx context.Context, owner string, id int64) error {
	if err := b.store.Delete(ctx, owner, id); err != nil {
		return fmt.Errorf("delete link: %w", err)
	}
	return nil
}

// Contents lists the owner's recycle bin, most recently deleted first.
func (b *Bin) Contents(ctx context.Context, owner string) ([]links.Link, error) {
	deleted, err := b.store.ListDeleted(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("list deleted links: %w", err)
	}
	return deleted, nil
}

func (b *Bin) publish(ctx context.Context, eventType, owner string, id int64) {
	if b.publisher == nil {
		return
	}
	event := links.Event{
		Type:   eventType,
		Owner:  owner,
		LinkID: id,
		At:     b.clock.Now(),
	}
	if _, err := b.publisher.Publish(ctx, b.topic, event); err != nil {
		b.logger.Warn("publish link event",
			zap.String("type", eventType), zap.Error(err))
	}
}
