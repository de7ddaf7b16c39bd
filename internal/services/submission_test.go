package services

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt/internal/domain"
)

func newSubmissionFixture(t *testing.T) (*world, domain.SubmissionService) {
	t.Helper()
	w := newWorld()
	for _, id := range []string{"author", "co", "chair", "stranger"} {
		w.addUser(id, domain.OccupationFaculty)
	}
	w.addConference("c1", "icse")
	w.addConference("c2", "fse")
	w.addTrack("t1", "c1", "Testing")
	w.addTrack("t2", "c1", "Tools")
	w.addTrack("t-fse", "c2", "Other")
	w.addMember("m-author", "author", "c1", domain.MemberRoleAuthor)
	w.addMember("m-chair", "chair", "c1", domain.MemberRoleChair)
	svc := NewSubmissionService(w.tx, w.confs, w.subs, w.users, w.files, w.emails, discardLogger, testTimeout)
	return w, svc
}

func TestSubmissionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		sub, err := svc.Create(ctx, w.viewer("author"), "icse", domain.SubmissionInput{
			TrackID:        "t1",
			PaperTitle:     "  Flaky Tests Considered Harmful ",
			CoAuthorEmails: []string{"CO@example.org", ""},
			File:           pdf("paper.PDF", "%PDF-1.7"),
		})
		require.NoError(t, err)
		assert.Equal(t, "Flaky Tests Considered Harmful", sub.PaperTitle)
		assert.Equal(t, domain.SubmissionPending, sub.Status)
		assert.Equal(t, []string{"co"}, sub.CoAuthors())
		assert.Equal(t, "m-author", sub.MembershipID)
		assert.Contains(t, w.files.files, sub.FileKey)
		require.Len(t, w.emails.byTemplate("submission_confirmation"), 1)
	})

	tests := []struct {
		name    string
		viewer  string
		slug    string
		in      domain.SubmissionInput
		wantErr error
	}{
		{name: "not a member", viewer: "stranger", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", File: pdf("a.pdf", "x")}, wantErr: domain.ErrMembershipRequired},
		{name: "unknown conference", viewer: "author", slug: "nope", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", File: pdf("a.pdf", "x")}, wantErr: domain.ErrNotFound},
		{name: "missing title", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", File: pdf("a.pdf", "x")}, wantErr: domain.ErrInvalidInput},
		{name: "not a pdf", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", File: pdf("a.docx", "x")}, wantErr: domain.ErrInvalidInput},
		{name: "missing file", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x"}, wantErr: domain.ErrInvalidInput},
		{name: "track of another conference", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t-fse", PaperTitle: "x", File: pdf("a.pdf", "x")}, wantErr: domain.ErrInvalidInput},
		{name: "unregistered co-author", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", CoAuthorEmails: []string{"ghost@example.org"}, File: pdf("a.pdf", "x")}, wantErr: domain.ErrInvalidInput},
		{name: "author as co-author", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", CoAuthorEmails: []string{"author@example.org"}, File: pdf("a.pdf", "x")}, wantErr: domain.ErrInvalidInput},
		{name: "too many co-authors", viewer: "author", slug: "icse", in: domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", CoAuthorEmails: []string{"co@example.org", "chair@example.org", "stranger@example.org", "ghost@example.org"}, File: pdf("a.pdf", "x")}, wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, svc := newSubmissionFixture(t)
			_, err := svc.Create(ctx, w.viewer(tt.viewer), tt.slug, tt.in)
			require.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, w.subs.subs)
			assert.Empty(t, w.files.files)
		})
	}

	t.Run("oversized file", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		up := pdf("big.pdf", "x")
		up.Size = domain.MaxPaperSize + 1
		_, err := svc.Create(ctx, w.viewer("author"), "icse", domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", File: up})
		require.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate removes stored file", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		in := func() domain.SubmissionInput {
			return domain.SubmissionInput{TrackID: "t1", PaperTitle: "Same", File: pdf("a.pdf", "x")}
		}
		_, err := svc.Create(ctx, w.viewer("author"), "icse", in())
		require.NoError(t, err)
		_, err = svc.Create(ctx, w.viewer("author"), "icse", in())
		require.ErrorIs(t, err, domain.ErrDuplicateSubmission)
		assert.Len(t, w.files.files, 1)
		assert.Len(t, w.files.deleted, 1)
	})

	t.Run("storage failure", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		w.files.saveErr = errors.New("disk full")
		_, err := svc.Create(ctx, w.viewer("author"), "icse", domain.SubmissionInput{TrackID: "t1", PaperTitle: "x", File: pdf("a.pdf", "x")})
		require.Error(t, err)
		assert.Empty(t, w.subs.subs)
	})
}

func TestSubmissionService_Access(t *testing.T) {
	ctx := context.Background()
	w, svc := newSubmissionFixture(t)
	w.addSubmission("s1", "m-author", "t1", "co")

	for _, user := range []string{"author", "co", "chair"} {
		detail, err := svc.Get(ctx, w.viewer(user), "s1")
		require.NoError(t, err, user)
		assert.Equal(t, "author", detail.Author.ID)
		require.Len(t, detail.CoAuthors, 1)
	}
	_, err := svc.Get(ctx, w.viewer("stranger"), "s1")
	require.ErrorIs(t, err, domain.ErrForbidden)

	_, err = svc.Get(ctx, w.viewer("author"), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	rc, sub, err := svc.OpenFile(ctx, w.viewer("co"), "s1")
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(body))
	assert.Equal(t, "s1", sub.ID)

	_, _, err = svc.OpenFile(ctx, w.viewer("stranger"), "s1")
	require.ErrorIs(t, err, domain.ErrForbidden)

	mine, err := svc.ListMine(ctx, w.viewer("co"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

// staleSubmissionRepo answers plain reads with a copy taken before a concurrent status change.
type staleSubmissionRepo struct {
	*fakeSubmissionRepo
	snapshot domain.Submission
}

func (r *staleSubmissionRepo) GetByID(ctx context.Context, id string) (*domain.Submission, error) {
	cp := r.snapshot
	return &cp, nil
}

func TestSubmissionService_UpdateAndDelete(t *testing.T) {
	ctx := context.Background()

	t.Run("update replaces file and fields", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		w.addSubmission("s1", "m-author", "t1")
		title := "Better Title"
		track := "t2"
		got, err := svc.Update(ctx, w.viewer("author"), "s1", domain.SubmissionUpdate{PaperTitle: &title, TrackID: &track, File: pdf("v2.pdf", "%PDF v2")})
		require.NoError(t, err)
		assert.Equal(t, "Better Title", got.PaperTitle)
		assert.Equal(t, "t2", got.TrackID)
		assert.Equal(t, []string{"s1.pdf"}, w.files.deleted)
		assert.Equal(t, "%PDF v2", string(w.files.files[got.FileKey]))
	})

	statusTests := []struct {
		status    domain.SubmissionStatus
		canEdit   bool
		canDelete bool
	}{
		{domain.SubmissionPending, true, true},
		{domain.SubmissionRevision, true, true},
		{domain.SubmissionRejected, false, true},
		{domain.SubmissionAccepted, false, false},
	}
	for _, tt := range statusTests {
		t.Run(string(tt.status), func(t *testing.T) {
			w, svc := newSubmissionFixture(t)
			w.addSubmission("s1", "m-author", "t1", "co").Status = tt.status
			title := "Edited"

			_, err := svc.Update(ctx, w.viewer("co"), "s1", domain.SubmissionUpdate{PaperTitle: &title})
			if tt.canEdit {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, domain.ErrSubmissionLocked)
			}

			err = svc.Delete(ctx, w.viewer("author"), "s1")
			if tt.canDelete {
				require.NoError(t, err)
				assert.NotContains(t, w.subs.subs, "s1")
			} else {
				require.ErrorIs(t, err, domain.ErrSubmissionLocked)
				assert.Contains(t, w.subs.subs, "s1")
			}
		})
	}

	t.Run("chair may view but not delete", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		w.addSubmission("s1", "m-author", "t1")
		err := svc.Delete(ctx, w.viewer("chair"), "s1")
		require.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("acceptance between read and write", func(t *testing.T) {
		w, _ := newSubmissionFixture(t)
		w.addSubmission("s1", "m-author", "t1")
		stale := &staleSubmissionRepo{fakeSubmissionRepo: w.subs, snapshot: *w.subs.subs["s1"]}
		w.subs.subs["s1"].Status = domain.SubmissionAccepted
		svc := NewSubmissionService(w.tx, w.confs, stale, w.users, w.files, w.emails, discardLogger, testTimeout)

		title := "Edited"
		_, err := svc.Update(ctx, w.viewer("author"), "s1", domain.SubmissionUpdate{PaperTitle: &title, File: pdf("v2.pdf", "%PDF v2")})
		require.ErrorIs(t, err, domain.ErrSubmissionLocked)
		err = svc.Delete(ctx, w.viewer("author"), "s1")
		require.ErrorIs(t, err, domain.ErrSubmissionLocked)

		require.Contains(t, w.subs.subs, "s1")
		assert.NotEqual(t, "Edited", w.subs.subs["s1"].PaperTitle)
		assert.Equal(t, []string{"s1", "s1"}, w.subs.locked)
		assert.Empty(t, w.files.deleted)
	})

	t.Run("stranger cannot edit", func(t *testing.T) {
		w, svc := newSubmissionFixture(t)
		w.addSubmission("s1", "m-author", "t1")
		title := "Hijack"
		_, err := svc.Update(ctx, w.viewer("stranger"), "s1", domain.SubmissionUpdate{PaperTitle: &title})
		require.ErrorIs(t, err, domain.ErrForbidden)
	})
}
