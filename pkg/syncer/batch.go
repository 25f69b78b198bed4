package syncer

import (
	"sync"

	"github.com/latoulicious/rpsync/pkg/cloud"
)

// batch is the shared state of one UploadProfiles call. Workers only touch
// it through claim and finish, which also serialize progress callbacks
type batch struct {
	mu         sync.Mutex
	id         string
	total      int
	completed  int
	success    []cloud.CloudProfile
	failed     []string
	onProgress ProgressFunc
}

func newBatch(id string, total int, onProgress ProgressFunc) *batch {
	return &batch{
		id:         id,
		total:      total,
		success:    make([]cloud.CloudProfile, 0, total),
		failed:     []string{},
		onProgress: onProgress,
	}
}

func (b *batch) claim(item cloud.ProfileData) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.report(item)
}

func (b *batch) finish(item cloud.ProfileData, profile *cloud.CloudProfile, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil || profile == nil {
		b.failed = append(b.failed, item.ID)
	} else {
		b.success = append(b.success, *profile)
	}
	b.completed++
	b.report(item)
}

// report must be called with b.mu held
func (b *batch) report(item cloud.ProfileData) {
	if b.onProgress == nil {
		return
	}
	b.onProgress(Progress{
		Total:     b.total,
		Completed: b.completed,
		Current:   item.ProfileName,
		CurrentID: item.ID,
		Failed:    append([]string{}, b.failed...),
	})
}

func (b *batch) result() Result {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Result{
		BatchID: b.id,
		Success: append([]cloud.CloudProfile{}, b.success...),
		Failed:  append([]string{}, b.failed...),
	}
}
