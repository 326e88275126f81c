package upload

import (
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	pdfutil "github.com/dharsanguruparan/DocDesk/internal/pdf"
)

type fakeUploader struct {
	req    apiclient.UploadRequest
	body   []byte
	fields map[string]string
	resp   model.UploadResponse
	err    error
}

func (u *fakeUploader) Upload(_ context.Context, req apiclient.UploadRequest) (model.UploadResponse, error) {
	u.req = req
	u.fields = map[string]string{}
	for _, f := range req.Fields {
		u.fields[f.Name] = f.Value
	}
	data, err := io.ReadAll(req.File)
	if err != nil {
		return model.UploadResponse{}, err
	}
	u.body = data
	return u.resp, u.err
}

func page(t *testing.T, dir, name string, w, h int) *model.CapturedPage {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(imaging.New(w, h, color.White), path, imaging.JPEGQuality(90)))
	return model.NewCapturedPage(path, w, h)
}

func studentMeta() *model.StudentMetadata {
	return &model.StudentMetadata{
		Owner: &model.Owner{ID: 42, Name: "Maria"},
		Common: model.Common{
			DocumentType: "Histórico",
			Date:         time.Date(2024, 3, 5, 0, 0, 0, 0, time.Local),
			Location:     "Arquivo A",
		},
	}
}

func pdfsIn(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.pdf"))
	require.NoError(t, err)
	return matches
}

func TestRunStudentHappyPath(t *testing.T) {
	src, work := t.TempDir(), t.TempDir()
	pages := []*model.CapturedPage{page(t, src, "1.jpg", 200, 300), page(t, src, "2.jpg", 300, 200)}
	up := &fakeUploader{resp: model.UploadResponse{ID: "doc-1", Message: "created"}}

	var progress []Progress
	res := NewStage(up, work, zap.NewNop()).Run(context.Background(), studentMeta(), pages, func(p Progress) {
		progress = append(progress, p)
	})

	assert.Equal(t, model.UploadResult{Success: true, DocumentID: "doc-1", Message: "created"}, res)
	assert.Equal(t, "/documentos/create/42", up.req.Endpoint)
	assert.Equal(t, map[string]string{
		"tipoDocumento": "Histórico",
		"dataDocumento": "2024-03-05",
		"localizacao":   "Arquivo A",
	}, up.fields)
	assert.True(t, strings.HasSuffix(up.req.FileName, ".pdf"))

	count, err := pdfutil.PageCountBytes(up.body)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	var percents []int
	for _, p := range progress {
		percents = append(percents, p.Percent)
	}
	assert.Equal(t, []int{0, 50, 60, 65, 100}, percents)
	assert.Empty(t, pdfsIn(t, work))
}

func TestRunNetworkFailure(t *testing.T) {
	src, work := t.TempDir(), t.TempDir()
	up := &fakeUploader{err: &apiclient.RequestError{Kind: apiclient.KindNetwork, Op: "upload document", Err: errors.New("connection refused")}}

	res := NewStage(up, work, zap.NewNop()).Run(context.Background(), studentMeta(), []*model.CapturedPage{page(t, src, "1.jpg", 50, 50)}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, string(apiclient.KindNetwork), res.Failure)
	assert.Contains(t, res.Message, "connection refused")
	assert.Empty(t, pdfsIn(t, work))
}

func TestRunSessionExpired(t *testing.T) {
	src, work := t.TempDir(), t.TempDir()
	up := &fakeUploader{err: &apiclient.APIError{Status: 401, Message: "jwt expired"}}

	res := NewStage(up, work, zap.NewNop()).Run(context.Background(), studentMeta(), []*model.CapturedPage{page(t, src, "1.jpg", 50, 50)}, nil)

	assert.False(t, res.Success)
	assert.Equal(t, string(apiclient.KindSessionExpired), res.Failure)
	assert.True(t, apiclient.IsSessionExpiredMessage(res.Message))
}

func TestRunProcessingFailureSendsNothing(t *testing.T) {
	work := t.TempDir()
	up := &fakeUploader{}
	missing := model.NewCapturedPage(filepath.Join(t.TempDir(), "gone.jpg"), 10, 10)

	var last Progress
	res := NewStage(up, work, zap.NewNop()).Run(context.Background(), studentMeta(), []*model.CapturedPage{missing}, func(p Progress) { last = p })

	assert.False(t, res.Success)
	assert.Equal(t, FailureProcessing, res.Failure)
	assert.Empty(t, up.req.Endpoint)
	assert.Equal(t, 100, last.Percent)
	assert.Empty(t, pdfsIn(t, work))
}

func TestBuildRequestPerCategory(t *testing.T) {
	date := time.Date(2023, 12, 31, 0, 0, 0, 0, time.Local)
	common := model.Common{DocumentType: "Ata", Date: date, Location: "Reitoria"}

	tests := []struct {
		name     string
		meta     model.Metadata
		endpoint string
		title    string
		wantErr  error
	}{
		{name: "student", meta: &model.StudentMetadata{Owner: &model.Owner{ID: 7}, Common: common}, endpoint: "/documentos/create/7"},
		{name: "staff", meta: &model.StaffMetadata{Owner: &model.Owner{ID: 9}, Common: common}, endpoint: "/documentos/create/9"},
		{name: "institution", meta: &model.InstitutionMetadata{Title: "Ata 12", Common: common}, endpoint: InstitutionEndpoint, title: "Ata 12"},
		{name: "staff without owner", meta: &model.StaffMetadata{Common: common}, wantErr: ErrNoOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := BuildRequest(tt.meta, "doc.pdf", strings.NewReader("%PDF"))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.endpoint, req.Endpoint)
			fields := map[string]string{}
			for _, f := range req.Fields {
				fields[f.Name] = f.Value
			}
			assert.Equal(t, "2023-12-31", fields["dataDocumento"])
			assert.Equal(t, "Ata", fields["tipoDocumento"])
			assert.Equal(t, "Reitoria", fields["localizacao"])
			title, ok := fields["titulo"]
			assert.Equal(t, tt.title != "", ok)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestReporterIsMonotonic(t *testing.T) {
	var got []int
	r := newReporter(func(p Progress) { got = append(got, p.Percent) })
	r.report(50, "")
	r.report(20, "")
	r.report(140, "")
	assert.Equal(t, []int{50, 50, 100}, got)
}

func TestRunWorkDirUnwritable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	res := NewStage(&fakeUploader{}, filepath.Join(file, "sub"), zap.NewNop()).Run(context.Background(), studentMeta(), nil, nil)
	assert.False(t, res.Success)
	assert.Equal(t, FailureProcessing, res.Failure)
}
