package domain

import (
	"context"
	"io"
	"time"
)

// SubmissionStatus is the aggregate review status of a paper.
type SubmissionStatus string

const (
	SubmissionPending  SubmissionStatus = "Pending"
	SubmissionAccepted SubmissionStatus = "Accepted"
	SubmissionRejected SubmissionStatus = "Rejected"
	SubmissionRevision SubmissionStatus = "Revision"
)

// Locked reports whether a submission in this status may no longer be edited.
func (s SubmissionStatus) Locked() bool {
	return s == SubmissionAccepted || s == SubmissionRejected
}

// Deletable reports whether an author may still withdraw a submission in this status.
func (s SubmissionStatus) Deletable() bool {
	return s != SubmissionAccepted
}

// MaxCoAuthors is the number of co-author slots on a submission.
const MaxCoAuthors = 3

// MaxPaperSize is the largest accepted paper upload in bytes.
const MaxPaperSize = 10 << 20

// Submission is a paper submitted by an author membership to a track.
// swagger:model Submission
type Submission struct {
	ID           string           `json:"id"`
	MembershipID string           `json:"membership_id"`
	TrackID      string           `json:"track_id"`
	ConferenceID string           `json:"conference_id"`
	AuthorUserID string           `json:"author_user_id"`
	PaperTitle   string           `json:"paper_title"`
	FileKey      string           `json:"-"`
	CoAuthor1ID  *string          `json:"co_author_1_id,omitempty"`
	CoAuthor2ID  *string          `json:"co_author_2_id,omitempty"`
	CoAuthor3ID  *string          `json:"co_author_3_id,omitempty"`
	Status       SubmissionStatus `json:"status"`
	SubmittedAt  time.Time        `json:"submitted_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// CoAuthors returns the non-empty co-author user ids in slot order.
func (s *Submission) CoAuthors() []string {
	var out []string
	for _, id := range []*string{s.CoAuthor1ID, s.CoAuthor2ID, s.CoAuthor3ID} {
		if id != nil && *id != "" {
			out = append(out, *id)
		}
	}
	return out
}

// SetCoAuthors fills the co-author slots from ids; extra slots are cleared.
func (s *Submission) SetCoAuthors(ids []string) {
	slots := []**string{&s.CoAuthor1ID, &s.CoAuthor2ID, &s.CoAuthor3ID}
	for i, slot := range slots {
		if i < len(ids) {
			id := ids[i]
			*slot = &id
		} else {
			*slot = nil
		}
	}
}

// IsAuthor reports whether userID is the primary author or any co-author.
func (s *Submission) IsAuthor(userID string) bool {
	if userID == "" {
		return false
	}
	if s.AuthorUserID == userID {
		return true
	}
	for _, id := range s.CoAuthors() {
		if id == userID {
			return true
		}
	}
	return false
}

// AuthorIDs returns the primary author followed by the co-authors.
func (s *Submission) AuthorIDs() []string {
	return append([]string{s.AuthorUserID}, s.CoAuthors()...)
}

// Upload is a file received from a client.
type Upload struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// SubmissionInput is used to create a submission.
type SubmissionInput struct {
	TrackID        string
	PaperTitle     string
	CoAuthorEmails []string
	File           *Upload
}

// SubmissionUpdate carries author edits; nil fields are left unchanged.
type SubmissionUpdate struct {
	TrackID        *string
	PaperTitle     *string
	CoAuthorEmails *[]string
	File           *Upload
}

// SubmissionDetail is a submission with the data needed to render it.
type SubmissionDetail struct {
	Submission *Submission `json:"submission"`
	Track      *Track      `json:"track"`
	Author     *User       `json:"author"`
	CoAuthors  []*User     `json:"co_authors"`
}

// SubmissionRepository defines storage operations for submissions.
type SubmissionRepository interface {
	// Create inserts a submission. Returns ErrDuplicateSubmission on a duplicate title in the conference.
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id string) (*Submission, error)
	// GetByIDForUpdate locks the submission row for the current transaction.
	GetByIDForUpdate(ctx context.Context, id string) (*Submission, error)
	ListByUser(ctx context.Context, userID string) ([]*Submission, error)
	ListByConference(ctx context.Context, conferenceID string) ([]*Submission, error)
	ListAllIDs(ctx context.Context) ([]string, error)
	Update(ctx context.Context, s *Submission) error
	UpdateStatus(ctx context.Context, id string, status SubmissionStatus) error
	Delete(ctx context.Context, id string) error
}

// FileStore persists uploaded files and returns an opaque key.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (key string, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// SubmissionService defines paper submission by authors.
type SubmissionService interface {
	Create(ctx context.Context, viewer Viewer, slug string, in SubmissionInput) (*Submission, error)
	ListMine(ctx context.Context, viewer Viewer) ([]*Submission, error)
	Get(ctx context.Context, viewer Viewer, id string) (*SubmissionDetail, error)
	Update(ctx context.Context, viewer Viewer, id string, upd SubmissionUpdate) (*Submission, error)
	Delete(ctx context.Context, viewer Viewer, id string) error
	// OpenFile returns the paper file for viewers allowed to see the submission.
	OpenFile(ctx context.Context, viewer Viewer, id string) (io.ReadCloser, *Submission, error)
}
