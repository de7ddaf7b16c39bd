package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cmt/internal/domain"
)

var submissionRowColumns = []string{"id", "membership_id", "track_id", "conference_id", "user_id", "paper_title", "file_key",
	"co_author1_id", "co_author2_id", "co_author3_id", "status", "submitted_at", "updated_at"}

func TestSubmissionRepository_Create(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "success with one co-author",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO submissions`).
					WithArgs("m-1", "t-1", "On Graphs", "papers/k.pdf",
						sql.NullString{String: "u-2", Valid: true}, sql.NullString{}, sql.NullString{},
						domain.SubmissionPending, now, now).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("s-1"))
			},
		},
		{
			name: "duplicate title",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO submissions`).WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: domain.ErrDuplicateSubmission,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			tt.mock(mock)

			s := &domain.Submission{MembershipID: "m-1", TrackID: "t-1", PaperTitle: "On Graphs", FileKey: "papers/k.pdf",
				Status: domain.SubmissionPending, SubmittedAt: now, UpdatedAt: now}
			s.SetCoAuthors([]string{"u-2"})
			err = NewSubmissionRepository(db).Create(ctx, s)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, "s-1", s.ID)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSubmissionRepository_GetByIDForUpdate(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now()
	mock.ExpectQuery(`WHERE s.id = \$1 FOR UPDATE OF s`).
		WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows(submissionRowColumns).
			AddRow("s-1", "m-1", "t-1", "c-1", "u-1", "On Graphs", "k.pdf", nil, "u-3", nil, "Revision", now, now))

	s, err := NewSubmissionRepository(db).GetByIDForUpdate(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, "c-1", s.ConferenceID)
	assert.Equal(t, "u-1", s.AuthorUserID)
	assert.Equal(t, domain.SubmissionRevision, s.Status)
	assert.Nil(t, s.CoAuthor1ID)
	require.NotNil(t, s.CoAuthor2ID)
	assert.Equal(t, []string{"u-3"}, s.CoAuthors())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmissionRepository_DeleteNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM submissions`).WithArgs("s-9").WillReturnResult(sqlmock.NewResult(0, 0))
	err = NewSubmissionRepository(db).Delete(context.Background(), "s-9")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
