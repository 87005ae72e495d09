package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"feedsync/internal/domain"
)

type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (*domain.Channel, error)
}

type FeedStore interface {
	GetAll(ctx context.Context) ([]domain.Feed, error)
	Upsert(ctx context.Context, feed *domain.Feed) error
	InsertAll(ctx context.Context, feeds []domain.Feed) error
	DeleteBySource(ctx context.Context, source string) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	Publish(ctx context.Context, report *domain.SyncReport) error
	Close() error
}
