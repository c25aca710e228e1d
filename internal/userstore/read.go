package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/vitaliisemenov/native-user-store/internal/infrastructure/docstore"
)

// GetUserAsync implements §4.2's asynchronous getUser: a point lookup by
// primary key. IndexNotFound and other retrieval errors are suppressed —
// the continuation receives (nil, nil), never an error. Only pre-check
// failures propagate as errors.
func (s *DefaultStore) GetUserAsync(ctx context.Context, username string, continuation func(*User, error)) {
	if err := s.requireStarted(); err != nil {
		continuation(nil, err)
		return
	}

	go func() {
		rec, err := s.fetchRecord(ctx, username)
		if err != nil {
			if !errors.Is(err, docstore.ErrNotFound) && !errors.Is(err, docstore.ErrIndexNotFound) && !errors.Is(err, ErrDecodeFailed) {
				s.logger.Debug("suppressed user retrieval error", "username", username, "error", err)
			}
			continuation(nil, nil)
			return
		}
		if rec == nil {
			continuation(nil, nil)
			return
		}
		continuation(&rec.User, nil)
	}()
}

// GetUser implements §4.2's blocking getUser: a 30-second bounded wait over
// the asynchronous variant. Timeout, interruption, and decode failure all
// return nil rather than an error — per §5's "Suspension / blocking
// points", this surface never raises.
func (s *DefaultStore) GetUser(ctx context.Context, username string) *User {
	rec, err := s.getRecordBlocking(ctx, username)
	if err != nil || rec == nil {
		return nil
	}
	return &rec.User
}

// getRecordBlocking is the shared blocking bridge used by both GetUser and
// VerifyPassword, so verification looks up via the same internal variant as
// a plain read (§4.2: "Looks up via the blocking getUser internal
// variant").
func (s *DefaultStore) getRecordBlocking(ctx context.Context, username string) (*UserAndPassword, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.GetTimeout)
	defer cancel()

	result := make(chan asyncRecordResult, 1)
	go func() {
		rec, err := s.fetchRecord(context.Background(), username)
		result <- asyncRecordResult{rec: rec, err: err}
	}()

	select {
	case r := <-result:
		if r.err != nil {
			return nil, nil
		}
		return r.rec, nil
	case <-ctx.Done():
		return nil, nil
	}
}

type asyncRecordResult struct {
	rec *UserAndPassword
	err error
}

// fetchRecord issues the point lookup and decodes the result. Decode
// failures surface as an error the caller treats the same as not-found.
func (s *DefaultStore) fetchRecord(ctx context.Context, username string) (*UserAndPassword, error) {
	doc, err := s.client.Get(ctx, s.config.IndexName, docType, username)
	if err != nil {
		return nil, err
	}
	rec, err := decodeRecord(username, doc.Source)
	if err != nil {
		s.logger.Warn("failed to decode user record", "username", username, "error", err)
		return nil, err
	}
	return rec, nil
}

// VerifyPassword implements §4.2's verifyPassword: looks up via the
// blocking getUser internal variant; returns the user only if present and
// the hasher confirms plaintext against the stored hash.
func (s *DefaultStore) VerifyPassword(ctx context.Context, username, plaintext string) *User {
	rec, err := s.getRecordBlocking(ctx, username)
	if err != nil || rec == nil {
		return nil
	}
	if !s.hasher.Verify(plaintext, rec.PasswordHash) {
		return nil
	}
	return &rec.User
}

// GetUsers implements §4.2's getUsers: scans all users when usernames is
// empty, otherwise filters to the given ids, via a scroll cursor. Missing
// index returns an empty slice, never an error.
func (s *DefaultStore) GetUsers(ctx context.Context, usernames []string) ([]User, error) {
	if err := s.requireStarted(); err != nil {
		return nil, err
	}

	page, err := s.client.Search(ctx, s.config.IndexName, docType, usernames, false, s.config.ScrollSize, s.config.ScrollKeepAlive)
	if err != nil {
		if errors.Is(err, docstore.ErrIndexNotFound) {
			return []User{}, nil
		}
		return nil, err
	}

	var out []User
	scrollID := page.ScrollID
	defer s.clearScrollBestEffort(scrollID)

	for {
		for _, hit := range page.Hits {
			rec, err := decodeRecord(hit.ID, hit.Source)
			if err != nil {
				s.logger.Warn("skipping undecodable record during scan", "username", hit.ID, "error", err)
				continue
			}
			out = append(out, rec.User)
		}

		if page.Done || page.ScrollID == "" {
			break
		}

		next, err := s.client.SearchScroll(ctx, page.ScrollID, s.config.ScrollKeepAlive)
		if err != nil {
			return nil, err
		}
		page = next
		scrollID = page.ScrollID
	}

	return out, nil
}

func (s *DefaultStore) clearScrollBestEffort(scrollID string) {
	if scrollID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.ClearScroll(ctx, scrollID); err != nil {
		s.logger.Warn("failed to clear scroll cursor", "error", err)
	}
}
