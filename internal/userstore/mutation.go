package userstore

import (
	"context"
	"fmt"
)

// Put implements §4.3's put: writes the record as a whole-document index.
// A creation short-circuits and reports success immediately, since a
// just-created username cannot have been cached as present anywhere
// downstream. An update invokes clearRealmCache and only then reports
// success; a purge failure surfaces as CachePurgeFailed with the
// underlying cause preserved, while the index write itself is already
// durable.
func (s *DefaultStore) Put(ctx context.Context, req PutRequest, refresh bool) error {
	if err := s.requireStarted(); err != nil {
		return err
	}
	if err := s.validate.Struct(req); err != nil {
		return fmt.Errorf("userstore: invalid put request: %w", err)
	}

	rec := &UserAndPassword{
		User: User{
			Username: req.Username,
			Roles:    req.Roles,
			FullName: req.FullName,
			Email:    req.Email,
			Metadata: req.Metadata,
		},
		PasswordHash: req.PasswordHash,
	}

	created, _, err := s.client.Index(ctx, s.config.IndexName, docType, req.Username, encodeRecord(rec), refresh)
	if err != nil {
		s.recordPutOutcome("error")
		return err
	}

	if created {
		s.recordPutOutcome("created")
		return nil
	}

	if err := s.purger.ClearRealmCache(ctx, []string{req.Username}); err != nil {
		s.recordPutOutcome("cache_purge_failed")
		return &CachePurgeFailedError{Username: req.Username, Err: err}
	}

	s.recordPutOutcome("updated")
	return nil
}

// Delete implements §4.3's delete: issues a delete by primary key, then
// invokes clearRealmCache and reports the found boolean only after purge
// completes, regardless of whether the document existed. Same
// cache-failure handling as Put.
func (s *DefaultStore) Delete(ctx context.Context, username string, refresh bool) (bool, error) {
	if err := s.requireStarted(); err != nil {
		return false, err
	}

	found, err := s.client.Delete(ctx, s.config.IndexName, docType, username, refresh)
	if err != nil {
		s.recordDeleteOutcome("error")
		return false, err
	}

	if err := s.purger.ClearRealmCache(ctx, []string{username}); err != nil {
		s.recordDeleteOutcome("cache_purge_failed")
		return false, &CachePurgeFailedError{Username: username, Err: err}
	}

	s.recordDeleteOutcome("found_or_not_found")
	return found, nil
}

func (s *DefaultStore) recordPutOutcome(outcome string) {
	if s.metr == nil {
		return
	}
	s.metr.putsTotal.WithLabelValues(outcome).Inc()
}

func (s *DefaultStore) recordDeleteOutcome(outcome string) {
	if s.metr == nil {
		return
	}
	s.metr.deletesTotal.WithLabelValues(outcome).Inc()
}
