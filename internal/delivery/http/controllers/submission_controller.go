package controllers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"unicode"

	"cmt/internal/delivery/http/helpers"
	"cmt/internal/domain"
)

// maxSubmissionBody bounds a multipart submission: the paper plus form fields.
const maxSubmissionBody = domain.MaxPaperSize + 1<<20

// multipartMemory is kept in memory while parsing; larger files spill to disk.
const multipartMemory = 2 << 20

// SubmissionController handles paper submission by authors.
type SubmissionController struct {
	Logger  *slog.Logger
	Service domain.SubmissionService
}

func NewSubmissionController(logger *slog.Logger, svc domain.SubmissionService) *SubmissionController {
	return &SubmissionController{Logger: logger, Service: svc}
}

// submissionForm is the parsed multipart body of create and update.
type submissionForm struct {
	values map[string][]string
	file   *domain.Upload
	closer io.Closer
}

func (f *submissionForm) field(name string) (string, bool) {
	vs, ok := f.values[name]
	if !ok || len(vs) == 0 {
		return "", ok
	}
	return strings.TrimSpace(vs[0]), true
}

// coAuthorEmails accepts repeated fields and comma separated values. Blanks are dropped.
func (f *submissionForm) coAuthorEmails() ([]string, bool) {
	vs, ok := f.values["co_author_emails"]
	if !ok {
		return nil, false
	}
	emails := []string{}
	for _, v := range vs {
		for _, e := range strings.Split(v, ",") {
			if e = strings.TrimSpace(e); e != "" {
				emails = append(emails, e)
			}
		}
	}
	return emails, true
}

func (f *submissionForm) Close() {
	if f.closer != nil {
		f.closer.Close()
	}
}

// parseSubmissionForm reads the multipart body. It writes a 400 or 413 and returns false on failure.
func parseSubmissionForm(w http.ResponseWriter, r *http.Request) (*submissionForm, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSubmissionBody)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			helpers.WriteJSONError(w, http.StatusRequestEntityTooLarge, helpers.ErrCodeBadRequest, "file must not exceed 10 MB")
			return nil, false
		}
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "expected a multipart/form-data body")
		return nil, false
	}
	form := &submissionForm{values: r.MultipartForm.Value}
	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		r.MultipartForm.RemoveAll()
		helpers.WriteJSONError(w, http.StatusBadRequest, helpers.ErrCodeBadRequest, "could not read file")
		return nil, false
	default:
		form.file = &domain.Upload{Filename: header.Filename, Size: header.Size, Content: file}
		form.closer = closerFunc(func() error {
			file.Close()
			return r.MultipartForm.RemoveAll()
		})
		return form, true
	}
	form.closer = closerFunc(r.MultipartForm.RemoveAll)
	return form, true
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Create godoc
// @Summary Submit a paper
// @Description Creates a submission in the conference for the caller's membership. The file must be a PDF of at most 10 MB. Co-authors are registered users given by email (at most three).
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Conference slug"
// @Param paper_title formData string true "Paper title"
// @Param track_id formData string true "Track ID"
// @Param co_author_emails formData []string false "Co-author emails" collectionFormat(multi)
// @Param file formData file true "Paper (PDF)"
// @Success 201 {object} helpers.APIResponse{data=domain.Submission}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Failure 413 {object} helpers.APIResponse "error.code: bad_request"
// @Router /conferences/{slug}/submissions [post]
func (c *SubmissionController) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	form, ok := parseSubmissionForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	in := domain.SubmissionInput{File: form.file}
	in.PaperTitle, _ = form.field("paper_title")
	in.TrackID, _ = form.field("track_id")
	in.CoAuthorEmails, _ = form.coAuthorEmails()

	sub, err := c.Service.Create(r.Context(), viewer, r.PathValue("slug"), in)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusCreated, sub)
}

// ListMine godoc
// @Summary List my submissions
// @Description Submissions where the caller is primary author or co-author.
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Success 200 {object} helpers.APIResponse{data=[]domain.Submission}
// @Router /submissions [get]
func (c *SubmissionController) ListMine(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	subs, err := c.Service.ListMine(r.Context(), viewer)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, subs)
}

// Get godoc
// @Summary Get a submission
// @Description Authors, conference chairs and reviewers, and staff.
// @Tags submissions
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Success 200 {object} helpers.APIResponse{data=domain.SubmissionDetail}
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /submissions/{submissionID} [get]
func (c *SubmissionController) Get(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	detail, err := c.Service.Get(r.Context(), viewer, r.PathValue("submissionID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, detail)
}

// Download godoc
// @Summary Download the paper
// @Tags submissions
// @Produce application/pdf
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Success 200 {file} file
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /submissions/{submissionID}/file [get]
func (c *SubmissionController) Download(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	rc, sub, err := c.Service.OpenFile(r.Context(), viewer, r.PathValue("submissionID"))
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": paperFilename(sub.PaperTitle)}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		c.Logger.WarnContext(r.Context(), "paper download interrupted", "submission_id", sub.ID, "err", err)
	}
}

// paperFilename turns a title into a safe ASCII file name.
func paperFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
		case r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		name = "paper"
	}
	return name + ".pdf"
}

// Update godoc
// @Summary Update a submission
// @Description Authors may edit until the paper is accepted or rejected. Omitted fields are left unchanged; a new file replaces the old one.
// @Tags submissions
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Param paper_title formData string false "Paper title"
// @Param track_id formData string false "Track ID"
// @Param co_author_emails formData []string false "Co-author emails" collectionFormat(multi)
// @Param file formData file false "Paper (PDF)"
// @Success 200 {object} helpers.APIResponse{data=domain.Submission}
// @Failure 400 {object} helpers.APIResponse "error.code: bad_request"
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 409 {object} helpers.APIResponse "error.code: conflict"
// @Router /submissions/{submissionID} [patch]
func (c *SubmissionController) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	form, ok := parseSubmissionForm(w, r)
	if !ok {
		return
	}
	defer form.Close()

	upd := domain.SubmissionUpdate{File: form.file}
	if v, ok := form.field("paper_title"); ok {
		upd.PaperTitle = &v
	}
	if v, ok := form.field("track_id"); ok {
		upd.TrackID = &v
	}
	if emails, ok := form.coAuthorEmails(); ok {
		upd.CoAuthorEmails = &emails
	}

	sub, err := c.Service.Update(r.Context(), viewer, r.PathValue("submissionID"), upd)
	if err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	helpers.WriteJSONSuccess(w, http.StatusOK, sub)
}

// Delete godoc
// @Summary Delete a submission
// @Description Authors may delete unless the paper was accepted.
// @Tags submissions
// @Security BearerAuth
// @Param submissionID path string true "Submission ID"
// @Success 204
// @Failure 403 {object} helpers.APIResponse "error.code: forbidden"
// @Failure 404 {object} helpers.APIResponse "error.code: not_found"
// @Router /submissions/{submissionID} [delete]
func (c *SubmissionController) Delete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r)
	if !ok {
		return
	}
	if err := c.Service.Delete(r.Context(), viewer, r.PathValue("submissionID")); err != nil {
		helpers.WriteServiceError(w, r, c.Logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
