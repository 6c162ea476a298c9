package patterns

import (
	"context"

	"github.com/harborstack/channelwatch/internal/models"
)

// StoreFunc adapts a function to the Store interface.
type StoreFunc func(ctx context.Context, patterns []models.ChannelPattern) error

// StorePatterns implements Store.
func (f StoreFunc) StorePatterns(ctx context.Context, patterns []models.ChannelPattern) error {
	return f(ctx, patterns)
}
