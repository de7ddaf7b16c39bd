package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"cmt/internal/domain"
)

type submissionService struct {
	tx             domain.Transactor
	confRepo       domain.ConferenceRepository
	submissionRepo domain.SubmissionRepository
	userRepo       domain.UserRepository
	files          domain.FileStore
	emailService   domain.EmailService
	logger         *slog.Logger
	contextTimeout time.Duration
}

// NewSubmissionService creates a SubmissionService.
func NewSubmissionService(
	tx domain.Transactor,
	confRepo domain.ConferenceRepository,
	submissionRepo domain.SubmissionRepository,
	userRepo domain.UserRepository,
	files domain.FileStore,
	emailService domain.EmailService,
	logger *slog.Logger,
	timeout time.Duration,
) domain.SubmissionService {
	return &submissionService{
		tx:             tx,
		confRepo:       confRepo,
		submissionRepo: submissionRepo,
		userRepo:       userRepo,
		files:          files,
		emailService:   emailService,
		logger:         logger,
		contextTimeout: timeout,
	}
}

func validateUpload(f *domain.Upload) error {
	if f == nil || f.Content == nil {
		return domain.NewValidationError("file is required")
	}
	if !strings.EqualFold(filepath.Ext(f.Filename), ".pdf") {
		return domain.NewValidationError("only PDF files are accepted")
	}
	if f.Size > domain.MaxPaperSize {
		return domain.NewValidationError("file must not exceed 10 MB")
	}
	return nil
}

// resolveCoAuthors maps co-author emails to registered user ids.
func (s *submissionService) resolveCoAuthors(ctx context.Context, emails []string, authorUserID string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	var msgs []string
	for _, raw := range emails {
		email := normalizeEmail(raw)
		if email == "" {
			continue
		}
		if _, dup := seen[email]; dup {
			msgs = append(msgs, fmt.Sprintf("co-author %s is listed twice", email))
			continue
		}
		seen[email] = struct{}{}
		u, err := s.userRepo.GetByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				msgs = append(msgs, fmt.Sprintf("co-author %s is not a registered user", email))
				continue
			}
			return nil, fmt.Errorf("get co-author: %w", err)
		}
		if u.ID == authorUserID {
			msgs = append(msgs, "the primary author cannot be listed as a co-author")
			continue
		}
		ids = append(ids, u.ID)
	}
	if len(seen) > domain.MaxCoAuthors {
		msgs = append(msgs, fmt.Sprintf("at most %d co-authors are allowed", domain.MaxCoAuthors))
	}
	if len(msgs) > 0 {
		return nil, domain.NewValidationError(msgs...)
	}
	return ids, nil
}

func (s *submissionService) trackIn(ctx context.Context, trackID, conferenceID string) (*domain.Track, error) {
	if strings.TrimSpace(trackID) == "" {
		return nil, domain.NewValidationError("track_id is required")
	}
	t, err := s.confRepo.GetTrackByID(ctx, trackID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("unknown track")
		}
		return nil, fmt.Errorf("get track: %w", err)
	}
	if t.ConferenceID != conferenceID {
		return nil, domain.NewValidationError("track does not belong to this conference")
	}
	return t, nil
}

func (s *submissionService) removeFile(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.files.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "delete paper file failed", "file_key", key, "err", err)
	}
}

func (s *submissionService) Create(ctx context.Context, viewer domain.Viewer, slug string, in domain.SubmissionInput) (*domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	c, err := s.confRepo.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get conference: %w", err)
	}
	m, ok := viewer.Membership(c.ID)
	if !ok {
		return nil, domain.ErrMembershipRequired
	}
	title := strings.TrimSpace(in.PaperTitle)
	if title == "" {
		return nil, domain.NewValidationError("paper_title is required")
	}
	if err := validateUpload(in.File); err != nil {
		return nil, err
	}
	track, err := s.trackIn(ctx, in.TrackID, c.ID)
	if err != nil {
		return nil, err
	}
	coAuthors, err := s.resolveCoAuthors(ctx, in.CoAuthorEmails, viewer.UserID())
	if err != nil {
		return nil, err
	}

	key, err := s.files.Save(ctx, in.File.Filename, in.File.Content)
	if err != nil {
		return nil, fmt.Errorf("store paper: %w", err)
	}
	now := time.Now()
	sub := &domain.Submission{
		MembershipID: m.ID,
		TrackID:      track.ID,
		ConferenceID: c.ID,
		AuthorUserID: viewer.UserID(),
		PaperTitle:   title,
		FileKey:      key,
		Status:       domain.SubmissionPending,
		SubmittedAt:  now,
		UpdatedAt:    now,
	}
	sub.SetCoAuthors(coAuthors)
	if err := s.submissionRepo.Create(ctx, sub); err != nil {
		s.removeFile(ctx, key)
		if errors.Is(err, domain.ErrDuplicateSubmission) {
			return nil, err
		}
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.sendConfirmation(ctx, sub, c, track)
	return sub, nil
}

func (s *submissionService) sendConfirmation(ctx context.Context, sub *domain.Submission, c *domain.Conference, t *domain.Track) {
	if s.emailService == nil {
		return
	}
	author, err := s.userRepo.GetByID(ctx, sub.AuthorUserID)
	if err != nil {
		s.logger.WarnContext(ctx, "submission confirmation skipped", "submission_id", sub.ID, "err", err)
		return
	}
	data := &domain.SubmissionConfirmationEmailData{
		Email:          author.Email,
		AuthorName:     author.FullName(),
		PaperTitle:     sub.PaperTitle,
		ConferenceName: c.Name,
		TrackName:      t.Name,
		SubmissionID:   sub.ID,
	}
	if err := s.emailService.SendSubmissionConfirmation(ctx, data); err != nil {
		s.logger.WarnContext(ctx, "submission confirmation failed", "submission_id", sub.ID, "err", err)
	}
}

func (s *submissionService) ListMine(ctx context.Context, viewer domain.Viewer) ([]*domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	subs, err := s.submissionRepo.ListByUser(ctx, viewer.UserID())
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if subs == nil {
		subs = []*domain.Submission{}
	}
	return subs, nil
}

func (s *submissionService) get(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// lock reads the submission under a row lock so status checks hold until commit.
func (s *submissionService) lock(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := s.submissionRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("lock submission: %w", err)
	}
	return sub, nil
}

func (s *submissionService) Get(ctx context.Context, viewer domain.Viewer, id string) (*domain.SubmissionDetail, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	sub, err := s.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !viewer.CanViewSubmission(sub) {
		return nil, domain.ErrForbidden
	}
	track, err := s.confRepo.GetTrackByID(ctx, sub.TrackID)
	if err != nil {
		return nil, fmt.Errorf("get track: %w", err)
	}
	users, err := s.userRepo.ListByIDs(ctx, sub.AuthorIDs())
	if err != nil {
		return nil, fmt.Errorf("list authors: %w", err)
	}
	byID := make(map[string]*domain.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	detail := &domain.SubmissionDetail{Submission: sub, Track: track, Author: byID[sub.AuthorUserID], CoAuthors: []*domain.User{}}
	for _, id := range sub.CoAuthors() {
		if u, ok := byID[id]; ok {
			detail.CoAuthors = append(detail.CoAuthors, u)
		}
	}
	return detail, nil
}

func (s *submissionService) Update(ctx context.Context, viewer domain.Viewer, id string, upd domain.SubmissionUpdate) (*domain.Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var sub *domain.Submission
	var newKey, oldKey string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		sub, err = s.lock(ctx, id)
		if err != nil {
			return err
		}
		if !viewer.CanViewSubmission(sub) {
			return domain.ErrForbidden
		}
		if !viewer.CanEditSubmission(sub) {
			return domain.ErrSubmissionLocked
		}

		if upd.PaperTitle != nil {
			title := strings.TrimSpace(*upd.PaperTitle)
			if title == "" {
				return domain.NewValidationError("paper_title is required")
			}
			sub.PaperTitle = title
		}
		if upd.TrackID != nil {
			track, err := s.trackIn(ctx, *upd.TrackID, sub.ConferenceID)
			if err != nil {
				return err
			}
			sub.TrackID = track.ID
		}
		if upd.CoAuthorEmails != nil {
			ids, err := s.resolveCoAuthors(ctx, *upd.CoAuthorEmails, sub.AuthorUserID)
			if err != nil {
				return err
			}
			sub.SetCoAuthors(ids)
		}
		if upd.File != nil {
			if err := validateUpload(upd.File); err != nil {
				return err
			}
			key, err := s.files.Save(ctx, upd.File.Filename, upd.File.Content)
			if err != nil {
				return fmt.Errorf("store paper: %w", err)
			}
			newKey = key
			oldKey, sub.FileKey = sub.FileKey, key
		}

		sub.UpdatedAt = time.Now()
		if err := s.submissionRepo.Update(ctx, sub); err != nil {
			if errors.Is(err, domain.ErrDuplicateSubmission) || errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return fmt.Errorf("update submission: %w", err)
		}
		return nil
	})
	if err != nil {
		s.removeFile(ctx, newKey)
		return nil, err
	}
	s.removeFile(ctx, oldKey)
	return sub, nil
}

func (s *submissionService) Delete(ctx context.Context, viewer domain.Viewer, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.contextTimeout)
	defer cancel()

	var fileKey string
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		sub, err := s.lock(ctx, id)
		if err != nil {
			return err
		}
		if !sub.IsAuthor(viewer.UserID()) {
			return domain.ErrForbidden
		}
		if !viewer.CanDeleteSubmission(sub) {
			return domain.ErrSubmissionLocked
		}
		if err := s.submissionRepo.Delete(ctx, sub.ID); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return err
			}
			return fmt.Errorf("delete submission: %w", err)
		}
		fileKey = sub.FileKey
		return nil
	})
	if err != nil {
		return err
	}
	s.removeFile(ctx, fileKey)
	return nil
}

func (s *submissionService) OpenFile(ctx context.Context, viewer domain.Viewer, id string) (io.ReadCloser, *domain.Submission, error) {
	sub, err := s.get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !viewer.CanViewSubmission(sub) {
		return nil, nil, domain.ErrForbidden
	}
	rc, err := s.files.Open(ctx, sub.FileKey)
	if err != nil {
		return nil, nil, fmt.Errorf("open paper: %w", err)
	}
	return rc, sub, nil
}
