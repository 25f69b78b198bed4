// Package reconcile decides, per profile, whether the local or the cloud copy
// moves, and carries the decision out with the upload service and the
// SavedVariables writer
package reconcile

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/latoulicious/rpsync/pkg/cloud"
	"github.com/latoulicious/rpsync/pkg/conflict"
	"github.com/latoulicious/rpsync/pkg/logging"
	"github.com/latoulicious/rpsync/pkg/profile"
	"github.com/latoulicious/rpsync/pkg/savedvars"
	"github.com/latoulicious/rpsync/pkg/syncer"
)

// Action is what a run does with one profile
type Action string

const (
	ActionUpload   Action = "upload"
	ActionSkip     Action = "skip"
	ActionPull     Action = "pull"
	ActionConflict Action = "conflict"
)

// Baselines stores the state of each profile at its last sync
type Baselines interface {
	Get(ctx context.Context, profileID string) (*conflict.Baseline, error)
	Put(ctx context.Context, b conflict.Baseline) error
}

// Item is the plan for one local profile
type Item struct {
	Local    savedvars.LocalProfile
	Cloud    *cloud.CloudProfile
	Baseline *conflict.Baseline
	Status   conflict.Status
	Action   Action
	Conflict *conflict.Info
}

// Plan is the outcome of comparing local profiles with the cloud
type Plan struct {
	Items []Item
}

// Count returns how many items have the given action
func (p Plan) Count(a Action) int {
	n := 0
	for _, it := range p.Items {
		if it.Action == a {
			n++
		}
	}
	return n
}

// Conflicts lists the items that need a resolution
func (p Plan) Conflicts() []conflict.Info {
	out := []conflict.Info{}
	for _, it := range p.Items {
		if it.Conflict != nil {
			out = append(out, *it.Conflict)
		}
	}
	return out
}

// Report is what a run did. BatchID names the upload batch in the sync log
// and is empty when nothing was uploaded
type Report struct {
	BatchID    string          `json:"batchId,omitempty"`
	Uploaded   []string        `json:"uploaded"`
	Pulled     []string        `json:"pulled"`
	Skipped    []string        `json:"skipped"`
	CloudNewer []string        `json:"cloudNewer"`
	Failed     []string        `json:"failed"`
	Conflicts  []conflict.Info `json:"conflicts"`
}

// WriterFunc writes records into a SavedVariables file
type WriterFunc func(path string, records map[string]profile.Raw) error

// Reconciler ties the gateway, the baseline store and the upload pipeline
// together
type Reconciler struct {
	gateway  cloud.Gateway
	meta     Baselines
	uploader *syncer.Service
	logger   logging.Logger
	write    WriterFunc
	now      func() time.Time
}

// New creates a reconciler. Pulled records are written with
// savedvars.WriteProfiles
func New(gw cloud.Gateway, meta Baselines, uploader *syncer.Service, logger logging.Logger) *Reconciler {
	return &Reconciler{
		gateway:  gw,
		meta:     meta,
		uploader: uploader,
		logger:   logger,
		write:    savedvars.WriteProfiles,
		now:      time.Now,
	}
}

// Plan compares every local profile with its cloud copy and baseline. It
// reads only; nothing is uploaded or written
func (r *Reconciler) Plan(ctx context.Context, locals []savedvars.LocalProfile) (Plan, error) {
	remote, err := r.gateway.ListProfiles(ctx)
	if err != nil {
		return Plan{}, fmt.Errorf("failed to list cloud profiles: %w", err)
	}
	byID := make(map[string]*cloud.CloudProfile, len(remote))
	for i := range remote {
		byID[remote[i].ID] = &remote[i]
	}

	plan := Plan{Items: make([]Item, 0, len(locals))}
	for _, local := range locals {
		baseline, err := r.meta.Get(ctx, local.Data.ID)
		if err != nil {
			return Plan{}, err
		}
		plan.Items = append(plan.Items, classify(local, byID[local.Data.ID], baseline))
	}
	return plan, nil
}

func classify(local savedvars.LocalProfile, cp *cloud.CloudProfile, baseline *conflict.Baseline) Item {
	it := Item{Local: local, Cloud: cp, Baseline: baseline}

	if cp == nil {
		it.Status = conflict.StatusOf(baseline, local.Data.Checksum, nil)
		it.Action = ActionUpload
		return it
	}

	it.Status = conflict.StatusOf(baseline, local.Data.Checksum, &cp.Version)

	cloudSide := conflict.Side{Checksum: cp.Checksum, ModifiedAt: cp.UpdatedAt}
	info, diverged := conflict.Detect(local.Data.ID, local.Data.ProfileName, local.Side(), cloudSide)
	if !diverged {
		it.Status = conflict.Synced
		it.Action = ActionSkip
		return it
	}

	switch it.Status {
	case conflict.LocalChanged:
		it.Action = ActionUpload
	case conflict.CloudChanged:
		it.Action = ActionPull
	default:
		// never synced, or both sides moved
		it.Action = ActionConflict
		it.Conflict = &info
	}
	return it
}

// Run carries out a plan. Without a resolution conflicts are reported and
// left alone and cloud-newer profiles are only listed. KeepLocal uploads
// conflicting profiles; KeepCloud writes the cloud copy of conflicting and
// cloud-newer profiles into the local file
func (r *Reconciler) Run(ctx context.Context, plan Plan, resolution conflict.Resolution, onProgress syncer.ProgressFunc) (Report, error) {
	report := Report{
		Uploaded:   []string{},
		Pulled:     []string{},
		Skipped:    []string{},
		CloudNewer: []string{},
		Failed:     []string{},
		Conflicts:  []conflict.Info{},
	}

	var uploads, pulls []Item
	for _, it := range plan.Items {
		switch it.Action {
		case ActionUpload:
			uploads = append(uploads, it)
		case ActionSkip:
			report.Skipped = append(report.Skipped, it.Local.Data.ID)
			r.refreshBaseline(ctx, it)
		case ActionPull:
			if resolution == conflict.KeepCloud {
				pulls = append(pulls, it)
			} else {
				report.CloudNewer = append(report.CloudNewer, it.Local.Data.ID)
			}
		case ActionConflict:
			switch resolution {
			case conflict.KeepLocal:
				uploads = append(uploads, it)
			case conflict.KeepCloud:
				pulls = append(pulls, it)
			default:
				report.Conflicts = append(report.Conflicts, *it.Conflict)
			}
		}
	}

	if len(pulls) > 0 {
		pulled, err := r.pull(ctx, pulls)
		if err != nil {
			return report, err
		}
		report.Pulled = pulled
	}

	if len(uploads) > 0 {
		r.upload(ctx, uploads, onProgress, &report)
	}

	sort.Strings(report.Failed)
	return report, nil
}

func (r *Reconciler) upload(ctx context.Context, items []Item, onProgress syncer.ProgressFunc, report *Report) {
	data := make([]cloud.ProfileData, 0, len(items))
	for _, it := range items {
		data = append(data, it.Local.Data)
	}

	res := r.uploader.UploadProfiles(ctx, data, onProgress)
	report.BatchID = res.BatchID
	for _, cp := range res.Success {
		report.Uploaded = append(report.Uploaded, cp.ID)
		r.putBaseline(ctx, cp.ID, cp.Checksum, cp.Version)
	}
	report.Failed = append(report.Failed, res.Failed...)
	sort.Strings(report.Uploaded)
}

// pull writes the current cloud copy of each item into its local file, one
// write per file
func (r *Reconciler) pull(ctx context.Context, items []Item) ([]string, error) {
	type pending struct {
		id      string
		raw     profile.Raw
		version int
	}
	byPath := map[string][]pending{}

	for _, it := range items {
		cp, err := r.gateway.GetProfile(ctx, it.Local.Data.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch cloud copy of %s: %w", it.Local.Data.ID, err)
		}
		raw, err := savedvars.ParseRecord(cp.RawLua)
		if err != nil {
			return nil, fmt.Errorf("cloud copy of %s: %w", cp.ID, err)
		}
		byPath[it.Local.Path] = append(byPath[it.Local.Path], pending{id: cp.ID, raw: raw, version: cp.Version})
	}

	pulled := []string{}
	for path, records := range byPath {
		batch := make(map[string]profile.Raw, len(records))
		for _, p := range records {
			batch[p.id] = p.raw
		}
		if err := r.write(path, batch); err != nil {
			return pulled, fmt.Errorf("failed to write %s: %w", path, err)
		}

		for _, p := range records {
			sum, err := profile.Checksum(p.raw)
			if err != nil {
				return pulled, err
			}
			r.putBaseline(ctx, p.id, sum, p.version)
			pulled = append(pulled, p.id)
		}
	}
	sort.Strings(pulled)
	return pulled, nil
}

// Restore writes one cloud profile into the local file. With version 0 the
// current cloud copy is used and the baseline is updated; an older version
// is written as a local edit, so the next run uploads it
func (r *Reconciler) Restore(ctx context.Context, path, id string, version int) (profile.Raw, error) {
	payload, current, err := r.cloudPayload(ctx, id, version)
	if err != nil {
		return nil, err
	}

	raw, err := savedvars.ParseRecord(payload)
	if err != nil {
		return nil, err
	}
	if err := r.write(path, map[string]profile.Raw{id: raw}); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	if current != nil {
		sum, err := profile.Checksum(raw)
		if err != nil {
			return nil, err
		}
		r.putBaseline(ctx, id, sum, current.Version)
	}

	r.logger.Info("Profile restored from cloud", map[string]interface{}{
		"profile_id": id,
		"version":    version,
		"path":       path,
	})
	return raw, nil
}

func (r *Reconciler) cloudPayload(ctx context.Context, id string, version int) (string, *cloud.CloudProfile, error) {
	if version <= 0 {
		cp, err := r.gateway.GetProfile(ctx, id)
		if err != nil {
			return "", nil, err
		}
		return cp.RawLua, cp, nil
	}

	versions, err := r.gateway.GetVersions(ctx, id)
	if err != nil {
		return "", nil, err
	}
	for _, v := range versions {
		if v.Version == version {
			return v.RawLua, nil, nil
		}
	}

	// the current version is not part of the history
	cp, err := r.gateway.GetProfile(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if cp.Version == version {
		return cp.RawLua, cp, nil
	}
	return "", nil, fmt.Errorf("%w: %s@%d", cloud.ErrVersionNotFound, id, version)
}

func (r *Reconciler) refreshBaseline(ctx context.Context, it Item) {
	b := it.Baseline
	if b != nil && b.LastSyncedChecksum == it.Local.Data.Checksum && b.CloudVersion == it.Cloud.Version {
		return
	}
	r.putBaseline(ctx, it.Local.Data.ID, it.Local.Data.Checksum, it.Cloud.Version)
}

// putBaseline failures are logged only: the next run sees a stale baseline
// and reports a conflict instead of losing data
func (r *Reconciler) putBaseline(ctx context.Context, id, checksum string, version int) {
	err := r.meta.Put(ctx, conflict.Baseline{
		ProfileID:          id,
		LastSyncedAt:       r.now(),
		LastSyncedChecksum: checksum,
		CloudVersion:       version,
	})
	if err != nil {
		r.logger.Error("Failed to record sync baseline", err, map[string]interface{}{
			"profile_id": id,
		})
	}
}
