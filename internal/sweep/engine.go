package sweep

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aa-dank/slug-sweep-deduper/internal/filter"
	"github.com/aa-dank/slug-sweep-deduper/internal/model"
	"github.com/aa-dank/slug-sweep-deduper/internal/pathmap"
)

// Deps are the collaborators of an Engine. Ledger, Finder, Deleter and
// Operator are required; the rest default to no-ops or real implementations.
type Deps struct {
	Ledger   Ledger
	Finder   DuplicateFinder
	Deleter  DeletionService
	Operator Operator
	Scratch  Scratch
	Filters  *filter.Pipeline
	Logger   Logger
	Clock    Clock
	IDs      IDGenerator
}

// Options tune a sweep.
type Options struct {
	// Mount is where the file server is mounted locally.
	Mount string

	// CheckpointInterval is the minimum time between mid-sweep syncs.
	CheckpointInterval time.Duration

	// SessionID is stamped on the processed location row. Generated when empty.
	SessionID string
}

// Report summarizes one Run.
type Report struct {
	SessionID  string
	Location   string
	Canonical  string
	LocationID int64 // zero when nothing needed review

	Discovered       int // catalog records at the location
	Excluded         int // records removed by filters
	AlreadyProcessed int // records whose file already has a decision
	Groups           int // logical files queued for review

	Reviewed    int
	Kept        int
	DeletedSome int
	DeletedAll  int
	Skipped     int

	DeletionsAccepted int
	DeletionsFailed   int
	BytesAccepted     int64

	Checkpoints        int
	CheckpointFailures int

	Outcome   model.Outcome
	Completed bool

	FinalSyncErr error
}

// Engine runs interactive duplicate sweeps. It is not safe for concurrent use;
// a sweep blocks on the operator between steps.
type Engine struct {
	deps Deps
	opts Options
}

type reviewResult int

const (
	resultDecided reviewResult = iota
	resultSkipped
	resultQuit
)

func NewEngine(deps Deps, opts Options) *Engine {
	if deps.Scratch == nil {
		deps.Scratch = nopScratch{}
	}
	if deps.Filters == nil {
		deps.Filters = filter.NewPipeline()
	}
	if deps.Logger == nil {
		deps.Logger = NewNopLogger()
	}
	if deps.Clock == nil {
		deps.Clock = RealClock{}
	}
	if deps.IDs == nil {
		deps.IDs = UUIDGenerator{}
	}
	if opts.CheckpointInterval <= 0 {
		opts.CheckpointInterval = DefaultCheckpointInterval
	}
	if opts.SessionID == "" {
		opts.SessionID = deps.IDs.New()
	}
	return &Engine{deps: deps, opts: opts}
}

// SessionID returns the id stamped on rows written by this engine.
func (e *Engine) SessionID() string {
	return e.opts.SessionID
}

// Run sweeps location, a local path under the mount. The ledger is always
// synced and the catalog, deletion service and scratch area are always
// released before Run returns, whatever happened in between. A failed final
// sync is returned as an error and recorded in Report.FinalSyncErr.
func (e *Engine) Run(ctx context.Context, location string) (report *Report, err error) {
	report = &Report{
		SessionID: e.opts.SessionID,
		Location:  location,
		Outcome:   model.OutcomeError,
	}
	log := e.deps.Logger
	op := e.deps.Operator

	defer func() {
		if err != nil {
			log.Error("sweep failed", "location", location, "error", err)
			op.Error(fmt.Sprintf("Error during sweep: %v", err))
			if _, lerr := e.deps.Ledger.LogError("sweep", err.Error(), location); lerr != nil {
				log.Error("recording sweep error failed", "error", lerr)
			}
		}
		e.cleanup(report, &err)
	}()

	canonical, err := pathmap.ToCanonical(location, e.opts.Mount)
	if err != nil {
		return report, err
	}
	report.Canonical = canonical
	log.Info("sweep started", "location", location, "canonical", canonical)
	op.Info(fmt.Sprintf("Querying for duplicates in: %s", displayCanonical(canonical)))

	groups, err := e.discover(ctx, canonical, report)
	if err != nil {
		return report, err
	}
	if len(groups) == 0 {
		report.Outcome = model.OutcomeExhausted
		report.Completed = true
		return report, nil
	}

	locationID, err := e.deps.Ledger.RecordProcessedLocation(location, len(groups), e.opts.SessionID)
	if err != nil {
		return report, err
	}
	report.LocationID = locationID
	op.Info(fmt.Sprintf("Ready to review %d unique files.", len(groups)))

	outcome, loopErr := e.reviewAll(ctx, groups, canonical, location, report)
	report.Outcome = outcome
	report.Completed = outcome == model.OutcomeExhausted && report.Reviewed == len(groups) && report.Skipped == 0

	if ferr := e.deps.Ledger.FinishProcessedLocation(locationID, outcome, report.Completed); ferr != nil {
		log.Error("finishing processed location failed", "id", locationID, "error", ferr)
		if loopErr == nil {
			loopErr = ferr
		}
	}

	switch outcome {
	case model.OutcomeExhausted:
		op.Info("All files in location processed.")
	case model.OutcomeQuit:
		op.Info("Quitting and syncing the ledger...")
	}
	return report, loopErr
}

// discover finds, filters, de-duplicates against the ledger and groups the
// records at canonical.
func (e *Engine) discover(ctx context.Context, canonical string, report *Report) ([]Group, error) {
	op := e.deps.Operator

	records, err := e.deps.Finder.FindDuplicates(ctx, canonical)
	if err != nil {
		return nil, fmt.Errorf("finding duplicates: %w", err)
	}
	report.Discovered = len(records)
	if len(records) == 0 {
		op.Info("No duplicate files found in this location.")
		return nil, nil
	}
	op.Info(fmt.Sprintf("Found %d duplicate file instances.", len(records)))

	kept := e.deps.Filters.Apply(records)
	report.Excluded = len(records) - len(kept)
	op.Info(fmt.Sprintf("After filtering: %d file instances to review.", len(kept)))

	processed := make(map[int64]bool)
	unprocessed := kept[:0:0]
	for _, r := range kept {
		done, ok := processed[r.FileID]
		if !ok {
			done, err = e.deps.Ledger.IsFileProcessed(r.FileID)
			if err != nil {
				return nil, fmt.Errorf("checking file %d: %w", r.FileID, err)
			}
			processed[r.FileID] = done
		}
		if done {
			report.AlreadyProcessed++
			continue
		}
		unprocessed = append(unprocessed, r)
	}
	op.Info(fmt.Sprintf("Unprocessed files: %d instances.", len(unprocessed)))

	groups := GroupByFileID(unprocessed)
	report.Groups = len(groups)
	if len(groups) == 0 && len(kept) > 0 {
		op.Info("All files have already been processed.")
	}
	e.deps.Logger.Info("discovery finished",
		"discovered", report.Discovered,
		"excluded", report.Excluded,
		"already_processed", report.AlreadyProcessed,
		"groups", report.Groups)
	return groups, nil
}

func (e *Engine) reviewAll(ctx context.Context, groups []Group, canonical, location string, report *Report) (model.Outcome, error) {
	timer := newCheckpointTimer(e.deps.Clock, e.opts.CheckpointInterval)

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return model.OutcomeError, err
		}

		res, err := e.review(ctx, i+1, len(groups), g, canonical, report)
		if err != nil {
			return model.OutcomeError, err
		}
		if res == resultQuit {
			return model.OutcomeQuit, nil
		}
		report.Reviewed++

		if timer.due() {
			e.checkpoint(location, report)
			timer.reset()
		}
	}
	return model.OutcomeExhausted, nil
}

// review runs the per-file state machine until the file reaches a terminal state.
func (e *Engine) review(ctx context.Context, index, total int, g Group, canonical string, report *Report) (reviewResult, error) {
	op := e.deps.Operator
	log := e.deps.Logger

	locations, err := e.deps.Finder.GetAllLocations(ctx, g.FileID)
	if err != nil {
		return 0, fmt.Errorf("fetching locations of file %d: %w", g.FileID, err)
	}
	if len(locations) == 0 {
		op.Warn(fmt.Sprintf("File %d no longer has any locations in the catalog; skipping.", g.FileID))
		report.Skipped++
		return resultSkipped, nil
	}

	r := &Review{
		Index:    index,
		Total:    total,
		FileID:   g.FileID,
		Filename: g.Records[0].Filename,
		Target:   canonical,
		Entries:  make([]ReviewEntry, len(locations)),
	}
	for i, loc := range locations {
		r.Entries[i] = ReviewEntry{
			Number:    i + 1,
			LocalPath: pathmap.ToLocal(e.opts.Mount, loc.Directory, loc.Filename),
			Location:  loc,
			Current:   loc.Directory == canonical,
		}
	}
	op.Present(r)
	log.Debug("reviewing file", "file_id", g.FileID, "locations", len(locations))

	for {
		line, err := op.ReadCommand(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return resultQuit, nil
			}
			return 0, fmt.Errorf("reading command: %w", err)
		}

		cmd, err := ParseCommand(line, len(r.Entries))
		if err != nil {
			op.Error(fmt.Sprintf("Invalid command: %v. Please try again.", err))
			continue
		}

		switch cmd.Kind {
		case CommandQuit:
			return resultQuit, nil

		case CommandSkip:
			op.Info("Skipping this file.")
			report.Skipped++
			return resultSkipped, nil

		case CommandKeep:
			if _, err := e.deps.Ledger.RecordProcessedFile(g.FileID, report.LocationID, model.DecisionKeptAll); err != nil {
				return 0, err
			}
			report.Kept++
			op.Info("Marked as processed (all copies kept).")
			return resultDecided, nil

		case CommandOpen:
			entry := r.Entries[cmd.Numbers[0]-1]
			op.Info(fmt.Sprintf("Opening file: %s", entry.LocalPath))
			if err := e.deps.Scratch.Open(entry.LocalPath); err != nil {
				log.Warn("open failed", "path", entry.LocalPath, "error", err)
				op.Error(fmt.Sprintf("Failed to open file: %v", err))
			}
			continue

		case CommandDelete:
			ok, err := op.Confirm(ctx, deletePrompt(r, cmd.Numbers))
			if err != nil {
				if errors.Is(err, io.EOF) {
					return resultQuit, nil
				}
				return 0, fmt.Errorf("reading confirmation: %w", err)
			}
			if !ok {
				op.Info("Deletion cancelled.")
				continue
			}
			if err := e.delete(ctx, r, cmd.Numbers, report); err != nil {
				return 0, err
			}
			return resultDecided, nil
		}
	}
}

// delete records the decision, then enqueues each selected copy. A failed
// enqueue is logged and the remaining copies are still attempted.
func (e *Engine) delete(ctx context.Context, r *Review, numbers []int, report *Report) error {
	op := e.deps.Operator
	log := e.deps.Logger

	decision := model.DecisionDeletedSome
	if len(numbers) == len(r.Entries) {
		decision = model.DecisionDeletedAll
	}
	processedFileID, err := e.deps.Ledger.RecordProcessedFile(r.FileID, report.LocationID, decision)
	if err != nil {
		return err
	}
	if decision == model.DecisionDeletedAll {
		report.DeletedAll++
	} else {
		report.DeletedSome++
	}

	for _, n := range numbers {
		entry := r.Entries[n-1]
		op.Info(fmt.Sprintf("Deleting: %s", entry.LocalPath))

		if err := e.deps.Deleter.EnqueueDelete(ctx, entry.LocalPath); err != nil {
			report.DeletionsFailed++
			log.Warn("enqueue delete failed", "file_id", r.FileID, "path", entry.LocalPath, "error", err)
			if _, lerr := e.deps.Ledger.LogError("delete", err.Error(), entry.LocalPath); lerr != nil {
				log.Error("recording delete error failed", "error", lerr)
			}
			op.Error(fmt.Sprintf("Error enqueuing deletion: %v", err))
			continue
		}

		if _, err := e.deps.Ledger.RecordDeletedFile(processedFileID, entry.LocalPath, entry.Location.Size); err != nil {
			return err
		}
		report.DeletionsAccepted++
		report.BytesAccepted += entry.Location.Size
		log.Info("deletion enqueued", "file_id", r.FileID, "path", entry.LocalPath, "size", entry.Location.Size)
		op.Info("Deletion task enqueued successfully.")
	}
	op.Info("File processed.")
	return nil
}

// checkpoint syncs the ledger mid-sweep. Failure is recorded and the sweep
// carries on; the next checkpoint or the final sync tries again.
func (e *Engine) checkpoint(location string, report *Report) {
	e.deps.Operator.Info("Performing periodic ledger sync...")
	if err := e.deps.Ledger.SyncToStorage(); err != nil {
		report.CheckpointFailures++
		e.deps.Logger.Warn("checkpoint sync failed", "error", err)
		if _, lerr := e.deps.Ledger.LogError("checkpoint", err.Error(), location); lerr != nil {
			e.deps.Logger.Error("recording checkpoint error failed", "error", lerr)
		}
		e.deps.Operator.Warn(fmt.Sprintf("Periodic sync failed, will retry: %v", err))
		return
	}
	report.Checkpoints++
	e.deps.Logger.Info("checkpoint synced")
}

// cleanup runs on every exit from Run.
func (e *Engine) cleanup(report *Report, errp *error) {
	op := e.deps.Operator
	log := e.deps.Logger

	op.Info("Syncing ledger to storage...")
	if err := e.deps.Ledger.SyncToStorage(); err != nil {
		report.FinalSyncErr = err
		log.Error("final sync failed", "error", err)
		op.Error(fmt.Sprintf("FINAL SYNC FAILED: %v. Decisions from this sweep are only in the local staging copy.", err))
		if *errp == nil {
			*errp = fmt.Errorf("final ledger sync: %w", err)
		} else {
			*errp = errors.Join(*errp, fmt.Errorf("final ledger sync: %w", err))
		}
	}

	if err := e.deps.Scratch.Cleanup(); err != nil {
		log.Warn("scratch cleanup failed", "error", err)
	}
	if err := e.deps.Finder.Close(); err != nil {
		log.Warn("closing catalog failed", "error", err)
	}
	if err := e.deps.Deleter.Close(); err != nil {
		log.Warn("closing deletion service failed", "error", err)
	}

	log.Info("sweep finished",
		"outcome", string(report.Outcome),
		"completed", report.Completed,
		"reviewed", report.Reviewed,
		"kept", report.Kept,
		"deleted_some", report.DeletedSome,
		"deleted_all", report.DeletedAll,
		"skipped", report.Skipped,
		"deletions_accepted", report.DeletionsAccepted,
		"deletions_failed", report.DeletionsFailed,
		"checkpoint_failures", report.CheckpointFailures)
	op.Info("Sweep complete.")
}

func deletePrompt(r *Review, numbers []int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are about to delete %d file(s):", len(numbers))
	for _, n := range numbers {
		fmt.Fprintf(&b, "\n  [%d] %s", n, r.Entries[n-1].LocalPath)
	}
	return b.String()
}

func displayCanonical(c string) string {
	if c == "" {
		return "(mount root)"
	}
	return c
}

type nopScratch struct{}

func (nopScratch) Open(string) error { return errors.New("no scratch area configured") }
func (nopScratch) Cleanup() error    { return nil }
