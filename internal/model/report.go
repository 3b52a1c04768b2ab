package model

import "time"

// Итог синхронизации одной ленты за проход
type FeedStatus string

const (
	FeedSynced FeedStatus = "synced"
	FeedFailed FeedStatus = "failed"
)

// Причина, по которой ленту пометили как failed
type FailureKind string

const (
	FailureFetch   FailureKind = "fetch"
	FailureParse   FailureKind = "parse"
	FailureStorage FailureKind = "storage"
)

type FeedReport struct {
	FeedID   int64
	FeedName string
	Status   FeedStatus
	Failure  FailureKind
	Err      error

	Ingested   int
	Existing   int
	Malformed  int
	Filtered   int
	ReadStates int64
	Keywords   int64
}

// Skipped - сколько элементов не стали новыми постами
func (r FeedReport) Skipped() int {
	return r.Existing + r.Malformed + r.Filtered
}

// Отчет по одному проходу синхронизации
type PassReport struct {
	StartedAt time.Time
	Duration  time.Duration
	Feeds     []FeedReport
}

func (r PassReport) Ingested() int {
	var n int
	for _, f := range r.Feeds {
		n += f.Ingested
	}
	return n
}

func (r PassReport) Failed() int {
	var n int
	for _, f := range r.Feeds {
		if f.Status == FeedFailed {
			n++
		}
	}
	return n
}
