package workflow

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/upload"
)

type imageCapturer struct {
	dir   string
	count int
}

func (c *imageCapturer) Capture(context.Context) (*model.CapturedPage, error) {
	c.count++
	path := filepath.Join(c.dir, fmt.Sprintf("page-%d.jpg", c.count))
	if err := imaging.Save(imaging.New(120, 160, color.White), path); err != nil {
		return nil, err
	}
	return model.NewCapturedPage(path, 120, 160), nil
}

// scriptedUI answers each prompt from the queues below; when a queue runs
// out it picks the answer that ends the run.
type scriptedUI struct {
	entities []model.EntityType
	forms    []func(prefill model.Metadata) (model.Metadata, error)
	reviews  []PageDecision
	outcomes []Action

	prefills []model.Metadata
	results  []model.UploadResult
	alerts   []Alert
	actions  [][]Action
	notices  []string
	progress []int
}

func (u *scriptedUI) Confirm(string) bool { return true }
func (u *scriptedUI) Notify(m string)     { u.notices = append(u.notices, m) }

func (u *scriptedUI) ChooseEntity() (model.EntityType, bool) {
	if len(u.entities) == 0 {
		return "", false
	}
	e := u.entities[0]
	u.entities = u.entities[1:]
	return e, true
}

func (u *scriptedUI) FillMetadata(_ context.Context, _ model.EntityType, prefill model.Metadata) (model.Metadata, error) {
	u.prefills = append(u.prefills, prefill)
	if len(u.forms) == 0 {
		return nil, ErrBack
	}
	f := u.forms[0]
	u.forms = u.forms[1:]
	return f(prefill)
}

func (u *scriptedUI) ReviewPages([]*model.CapturedPage) PageDecision {
	if len(u.reviews) == 0 {
		return PageDecision{Choice: ChoiceProceed}
	}
	d := u.reviews[0]
	u.reviews = u.reviews[1:]
	return d
}

func (u *scriptedUI) Progress(p upload.Progress) { u.progress = append(u.progress, p.Percent) }

func (u *scriptedUI) Outcome(r model.UploadResult, actions []Action) Action {
	u.results = append(u.results, r)
	return u.pick(actions)
}

func (u *scriptedUI) Failed(a Alert) Action {
	u.alerts = append(u.alerts, a)
	return u.pick(a.Actions)
}

func (u *scriptedUI) pick(actions []Action) Action {
	u.actions = append(u.actions, actions)
	if len(u.outcomes) == 0 {
		return actions[len(actions)-1]
	}
	a := u.outcomes[0]
	u.outcomes = u.outcomes[1:]
	return a
}

type uploadLog struct {
	mu    sync.Mutex
	paths []string
	forms []map[string]string
}

func (l *uploadLog) handler(status int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields := map[string]string{}
		if err := r.ParseMultipartForm(10 << 20); err == nil {
			for k, v := range r.MultipartForm.Value {
				fields[k] = v[0]
			}
		}
		l.mu.Lock()
		l.paths = append(l.paths, r.URL.Path)
		l.forms = append(l.forms, fields)
		n := len(l.paths)
		l.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status >= 400 {
			fmt.Fprint(w, `{"error":"token rejected"}`)
			return
		}
		fmt.Fprintf(w, `{"id":"doc-%d","message":"Documento salvo"}`, n)
	}
}

func (l *uploadLog) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.paths)
}

func newRunner(t *testing.T, baseURL string, ui UI) *Runner {
	t.Helper()
	client := apiclient.NewClient(baseURL, apiclient.WithToken(apiclient.StaticToken("token")))
	ctrl := NewController(context.Background(), WithClock(func() time.Time { return today }))
	return NewRunner(ctrl, ui, &imageCapturer{dir: t.TempDir()}, upload.NewStage(client, t.TempDir(), zap.NewNop()), zap.NewNop())
}

func fillStudent(prefill model.Metadata) (model.Metadata, error) {
	return validStudent(), nil
}

func TestScenarioStudentHappyPath(t *testing.T) {
	log := &uploadLog{}
	srv := httptest.NewServer(log.handler(http.StatusCreated))
	defer srv.Close()

	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms:    []func(model.Metadata) (model.Metadata, error){fillStudent},
		reviews:  []PageDecision{{Choice: ChoiceAdd}, {Choice: ChoiceProceed}},
		outcomes: []Action{ActionDashboard},
	}
	require.NoError(t, newRunner(t, srv.URL, ui).Run(context.Background()))

	require.Equal(t, []string{"/documentos/create/42"}, log.paths)
	assert.Equal(t, "RG", log.forms[0]["tipoDocumento"])
	assert.Equal(t, today.AddDate(0, 0, -1).Format(model.DateLayout), log.forms[0]["dataDocumento"])
	assert.Equal(t, "Arquivo A", log.forms[0]["localizacao"])
	require.Len(t, ui.results, 1)
	assert.True(t, ui.results[0].Success)
	assert.Equal(t, "doc-1", ui.results[0].DocumentID)
	assert.Equal(t, []Action{ActionScanAnother, ActionDashboard}, ui.actions[0])
	assert.Equal(t, 100, ui.progress[len(ui.progress)-1])
}

func TestScenarioInstitutionWithoutTitle(t *testing.T) {
	log := &uploadLog{}
	srv := httptest.NewServer(log.handler(http.StatusCreated))
	defer srv.Close()

	untitled := func(model.Metadata) (model.Metadata, error) {
		return &model.InstitutionMetadata{Common: model.Common{DocumentType: "Ata", Date: today, Location: "Reitoria"}}, nil
	}
	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityInstitution},
		forms:    []func(model.Metadata) (model.Metadata, error){untitled},
	}
	require.NoError(t, newRunner(t, srv.URL, ui).Run(context.Background()))

	assert.Zero(t, log.count())
	require.Len(t, ui.notices, 1)
	assert.Contains(t, ui.notices[0], "title")
	assert.Empty(t, ui.results)
}

func TestScenarioNetworkFailureOffersRetry(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms:    []func(model.Metadata) (model.Metadata, error){fillStudent},
		outcomes: []Action{ActionRetry, ActionDashboard},
	}
	require.NoError(t, newRunner(t, url, ui).Run(context.Background()))

	require.Len(t, ui.alerts, 2)
	assert.Empty(t, ui.results)
	for i, a := range ui.alerts {
		assert.Equal(t, FailureUpload, a.Kind)
		assert.NotEmpty(t, a.Message)
		assert.Equal(t, []Action{ActionRetry, ActionDashboard}, ui.actions[i])
	}
}

func TestScenarioSessionExpiredOffersLoginOnly(t *testing.T) {
	log := &uploadLog{}
	srv := httptest.NewServer(log.handler(http.StatusUnauthorized))
	defer srv.Close()

	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms:    []func(model.Metadata) (model.Metadata, error){fillStudent},
	}
	err := newRunner(t, srv.URL, ui).Run(context.Background())
	assert.True(t, errors.Is(err, apiclient.ErrSessionExpired))

	require.Len(t, ui.alerts, 1)
	assert.Equal(t, []Action{ActionLogin}, ui.alerts[0].Actions)
	assert.True(t, apiclient.IsSessionExpiredMessage(ui.alerts[0].Message))
	assert.NotContains(t, ui.alerts[0].Message, "token rejected")
}

func TestScenarioScanAnotherPrefills(t *testing.T) {
	log := &uploadLog{}
	srv := httptest.NewServer(log.handler(http.StatusCreated))
	defer srv.Close()

	var second model.Metadata
	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms: []func(model.Metadata) (model.Metadata, error){
			fillStudent,
			func(prefill model.Metadata) (model.Metadata, error) {
				second = prefill
				return nil, ErrBack
			},
		},
		outcomes: []Action{ActionScanAnother},
	}
	require.NoError(t, newRunner(t, srv.URL, ui).Run(context.Background()))

	require.NotNil(t, second)
	meta := second.(*model.StudentMetadata)
	require.NotNil(t, meta.Owner)
	assert.Equal(t, model.Owner{ID: 42, Name: "Maria"}, *meta.Owner)
	assert.Equal(t, "Arquivo A", meta.Location)
	assert.Empty(t, meta.DocumentType)
	assert.True(t, meta.Date.IsZero())
	assert.Equal(t, 1, log.count())
}

// failingUploader fails with a processing error until it is told to succeed.
type failingUploader struct {
	failures int
	calls    int
	pages    []int
}

func (u *failingUploader) Run(_ context.Context, _ model.Metadata, pages []*model.CapturedPage, _ upload.ProgressFunc) model.UploadResult {
	u.calls++
	u.pages = append(u.pages, len(pages))
	if u.calls <= u.failures {
		return model.UploadResult{Message: "generate PDF: broken image", Failure: upload.FailureProcessing}
	}
	return model.UploadResult{Success: true, DocumentID: "d1", Message: "ok"}
}

func TestScenarioProcessingFailureGoesBackToPages(t *testing.T) {
	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms:    []func(model.Metadata) (model.Metadata, error){fillStudent},
		reviews:  []PageDecision{{Choice: ChoiceProceed}, {Choice: ChoiceAdd}, {Choice: ChoiceProceed}},
		outcomes: []Action{ActionBack, ActionDashboard},
	}
	uploader := &failingUploader{failures: 1}
	ctrl := NewController(context.Background(), WithClock(func() time.Time { return today }))
	r := NewRunner(ctrl, ui, &imageCapturer{dir: t.TempDir()}, uploader, zap.NewNop())
	require.NoError(t, r.Run(context.Background()))

	require.Len(t, ui.alerts, 1)
	assert.Equal(t, FailureProcessing, ui.alerts[0].Kind)
	assert.Equal(t, []Action{ActionRetry, ActionBack}, ui.alerts[0].Actions)
	assert.Equal(t, []int{1, 2}, uploader.pages, "pages survive going back")
	require.Len(t, ui.results, 1)
	assert.True(t, ui.results[0].Success)
}

func TestScenarioBackFromPagesKeepsMetadata(t *testing.T) {
	log := &uploadLog{}
	srv := httptest.NewServer(log.handler(http.StatusCreated))
	defer srv.Close()

	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms: []func(model.Metadata) (model.Metadata, error){
			fillStudent,
			func(prefill model.Metadata) (model.Metadata, error) { return prefill, nil },
		},
		reviews:  []PageDecision{{Choice: ChoiceBack}, {Choice: ChoiceProceed}},
		outcomes: []Action{ActionDashboard},
	}
	require.NoError(t, newRunner(t, srv.URL, ui).Run(context.Background()))

	require.Len(t, ui.prefills, 2)
	assert.Equal(t, validStudent(), ui.prefills[1])
	require.Equal(t, 1, log.count())
	assert.Equal(t, "RG", log.forms[0]["tipoDocumento"])
}

func TestScenarioClosedInputLeavesCleanly(t *testing.T) {
	ui := &scriptedUI{
		entities: []model.EntityType{model.EntityStudent},
		forms:    []func(model.Metadata) (model.Metadata, error){fillStudent},
		reviews:  []PageDecision{{Choice: ChoiceLeave}},
	}
	require.NoError(t, newRunner(t, "http://127.0.0.1:1", ui).Run(context.Background()))
	assert.Len(t, ui.prefills, 1)
	assert.Empty(t, ui.alerts)

	ui = &scriptedUI{
		entities: []model.EntityType{model.EntityStaff},
		forms: []func(model.Metadata) (model.Metadata, error){
			func(model.Metadata) (model.Metadata, error) { return nil, ErrLeave },
		},
	}
	require.NoError(t, newRunner(t, "http://127.0.0.1:1", ui).Run(context.Background()))
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ui := &scriptedUI{entities: []model.EntityType{model.EntityStudent}}
	err := newRunner(t, "http://127.0.0.1:1", ui).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
