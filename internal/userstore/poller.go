package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
)

// runScheduler drives the fixed-delay poll loop described in §4.4: the next
// iteration is scheduled only after the previous one completes, via a
// re-armed timer rather than a ticker, so a slow iteration never causes
// iterations to pile up.
func (s *DefaultStore) runScheduler(ctx context.Context) {
	defer close(s.pollDone)

	timer := time.NewTimer(s.config.ReloadInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			if err := s.runPollIteration(ctx); err != nil {
				s.logger.Error("poll iteration failed", "error", err)
			}
			timer.Reset(s.config.ReloadInterval)
		}
	}
}

// runPollIteration implements the seven-step algorithm of §4.4.
func (s *DefaultStore) runPollIteration(ctx context.Context) error {
	start := time.Now()
	outcome := "completed"
	defer func() {
		s.recordPollOutcome(outcome, time.Since(start))
	}()

	// Step 1: stopped/stopping exits immediately.
	if st := s.state.Load(); st == StateStopped || st == StateStopping {
		outcome = "skipped"
		return nil
	}

	// Step 2: indexReady gates the scan; no state change on failure.
	if !s.indexReady.Load() {
		s.logger.Debug("skipping poll iteration: index not ready")
		outcome = "skipped"
		return nil
	}

	if s.lock != nil {
		acquired, err := s.lock.AcquireWithRetry(ctx, 3)
		if err != nil {
			outcome = "error"
			return err
		}
		if !acquired {
			outcome = "skipped"
			return nil
		}
		defer func() {
			if err := s.lock.Release(ctx); err != nil {
				s.logger.Warn("failed to release poll lock", "error", err)
			}
		}()
	}

	// Step 3: snapshot the known username set before scanning.
	known := s.versions.Snapshot()

	// Step 4: scroll the full user set with version metadata, aborting at
	// the checkpoint if stopping turns true mid-scroll.
	hits, scrollID, aborted, err := s.scrollAllUsers(ctx)
	if scrollID != "" {
		defer s.clearScrollBestEffort(scrollID)
	}
	if err != nil {
		if errors.Is(err, docstore.ErrIndexNotFound) {
			s.logger.Debug("poll iteration found no index", "index", s.config.IndexName)
			outcome = "skipped"
			return nil
		}
		outcome = "error"
		return err
	}
	if aborted {
		outcome = "aborted"
		return nil
	}

	// Checkpoint before diffing: an abort here must not mutate versions.
	if s.state.Load() == StateStopping {
		outcome = "aborted"
		return nil
	}

	// Steps 5-6: diff against the known set.
	var changedUsers []string
	for _, hit := range hits {
		username := hit.ID
		if lastKnown, ok := known[username]; ok {
			if hit.Version != lastKnown {
				if hit.Version < lastKnown {
					s.logger.Error("observed version regression", "username", username, "last_known", lastKnown, "observed", hit.Version)
				}
				s.versions.Set(username, hit.Version)
				changedUsers = append(changedUsers, username)
			}
			delete(known, username)
		} else {
			// New to us: recorded, but per §4.4/§9 a first observation is
			// not itself published as a change.
			s.versions.Set(username, hit.Version)
		}
	}
	for username := range known {
		s.versions.Delete(username)
		changedUsers = append(changedUsers, username)
	}

	// Step 7: dispatch to listeners, unless the delta is empty.
	if len(changedUsers) == 0 {
		return nil
	}

	if s.metr != nil {
		s.metr.changedUsersTotal.Add(float64(len(changedUsers)))
	}

	frozen := make([]string, len(changedUsers))
	copy(frozen, changedUsers)

	if err := dispatchChangedUsers(s.listeners.Snapshot(), frozen); err != nil {
		outcome = "error"
		return err
	}

	return nil
}

// scrollAllUsers scrolls the full user set with version metadata
// requested, honoring the second stop checkpoint (before scroll
// continuation). aborted is true if a checkpoint fired mid-scan; in that
// case the caller must treat the version map as unchanged.
func (s *DefaultStore) scrollAllUsers(ctx context.Context) (hits []docstore.Document, scrollID string, aborted bool, err error) {
	page, err := s.client.Search(ctx, s.config.IndexName, docType, nil, true, s.config.ScrollSize, s.config.ScrollKeepAlive)
	if err != nil {
		return nil, "", false, err
	}

	for {
		hits = append(hits, page.Hits...)
		scrollID = page.ScrollID

		if page.Done || page.ScrollID == "" {
			return hits, scrollID, false, nil
		}

		// Checkpoint before scroll continuation.
		if s.state.Load() == StateStopping {
			return nil, scrollID, true, nil
		}

		next, err := s.client.SearchScroll(ctx, page.ScrollID, s.config.ScrollKeepAlive)
		if err != nil {
			return nil, scrollID, false, err
		}
		page = next
	}
}

func (s *DefaultStore) recordPollOutcome(outcome string, d time.Duration) {
	if s.metr == nil {
		return
	}
	s.metr.pollsTotal.WithLabelValues(outcome).Inc()
	if outcome == "completed" {
		s.metr.pollDuration.Observe(d.Seconds())
	}
}
