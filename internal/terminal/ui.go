// Package terminal is the line-oriented console front end of the
// digitalization workflow. It implements workflow.UI on top of any reader and
// writer so the same code drives a real terminal and scripted tests.
package terminal

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/dharsanguruparan/DocDesk/internal/form"
	"github.com/dharsanguruparan/DocDesk/internal/model"
	"github.com/dharsanguruparan/DocDesk/internal/upload"
	"github.com/dharsanguruparan/DocDesk/internal/workflow"
)

// backKey leaves the current form prompt for the previous stage.
const backKey = "<"

var (
	errSearchTimeout = errors.New("owner search timed out")
	errSearchFailed  = errors.New("owner search failed")
)

// Directory is the backend surface the form needs.
type Directory interface {
	form.OwnerDirectory
	form.DocumentTypeLister
}

// Presets are values given on the command line. They seed the first form
// only; later documents are prefilled from the previous upload.
type Presets struct {
	Entity       model.EntityType
	OwnerQuery   string
	DocumentType string
	Date         string
	Location     string
	Title        string
}

type searchOutcome struct {
	query  string
	owners []model.Owner
	err    string
}

// UI reads answers line by line from in and writes prompts to out.
type UI struct {
	in  *bufio.Reader
	dir Directory

	mu  sync.Mutex
	out io.Writer

	presets    Presets
	usedEntity bool
	usedFields bool

	debounce   time.Duration
	minQuery   int
	maxResults int
	searchWait time.Duration
	formOpts   []form.Option

	eof bool
}

type Option func(*UI)

// WithPresets seeds the first entity choice and form.
func WithPresets(p Presets) Option {
	return func(u *UI) { u.presets = p }
}

// WithSearch tunes the owner search of the form.
func WithSearch(debounce time.Duration, minQuery, maxResults int) Option {
	return func(u *UI) {
		u.debounce, u.minQuery, u.maxResults = debounce, minQuery, maxResults
	}
}

// WithSearchWait bounds how long a prompt waits for owner results.
func WithSearchWait(d time.Duration) Option {
	return func(u *UI) { u.searchWait = d }
}

// WithFormOptions passes extra options to every form, for example a logger.
func WithFormOptions(opts ...form.Option) Option {
	return func(u *UI) { u.formOpts = append(u.formOpts, opts...) }
}

func New(in io.Reader, out io.Writer, dir Directory, opts ...Option) *UI {
	u := &UI{
		in:         bufio.NewReader(in),
		out:        out,
		dir:        dir,
		debounce:   form.DefaultDebounce,
		minQuery:   form.DefaultMinQuery,
		maxResults: form.DefaultMaxResults,
		searchWait: 35 * time.Second,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func (u *UI) printf(format string, args ...any) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, format, args...)
}

// ask prints prompt and returns the trimmed answer. ok is false once the
// input is exhausted.
func (u *UI) ask(prompt string) (string, bool) {
	if u.eof {
		return "", false
	}
	u.printf("%s", prompt)
	line, err := u.in.ReadString('\n')
	if err != nil && line == "" {
		u.eof = true
		u.printf("\n")
		return "", false
	}
	return strings.TrimSpace(line), true
}

// Confirm asks a yes/no question. Anything but an explicit yes is no.
func (u *UI) Confirm(question string) bool {
	answer, ok := u.ask(question + " [y/N] ")
	if !ok {
		return false
	}
	switch strings.ToLower(answer) {
	case "y", "yes", "s", "sim":
		return true
	}
	return false
}

func (u *UI) Notify(message string) {
	u.printf("! %s\n", message)
}

// ChooseEntity returns false when the user quits.
func (u *UI) ChooseEntity() (model.EntityType, bool) {
	if !u.usedEntity && u.presets.Entity != "" {
		u.usedEntity = true
		return u.presets.Entity, true
	}
	u.usedEntity = true
	for {
		u.printf("\nWho does the document belong to?\n")
		for i, e := range model.EntityTypes {
			u.printf("  %d) %s\n", i+1, e.Label())
		}
		answer, ok := u.ask(fmt.Sprintf("Choose 1-%d (q to quit): ", len(model.EntityTypes)))
		if !ok || strings.EqualFold(answer, "q") {
			return "", false
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(model.EntityTypes) {
			return model.EntityTypes[n-1], true
		}
		if e, err := model.ParseEntityType(answer); err == nil {
			return e, true
		}
		u.Notify("Unknown choice " + strconv.Quote(answer))
	}
}

// FillMetadata walks the user through the missing fields and returns the
// submitted metadata, workflow.ErrBack, or workflow.ErrLeave once the input is
// closed.
func (u *UI) FillMetadata(ctx context.Context, entity model.EntityType, prefill model.Metadata) (model.Metadata, error) {
	results := make(chan searchOutcome, 8)
	push := func(o searchOutcome) {
		select {
		case results <- o:
		default:
		}
	}
	opts := []form.Option{
		form.WithDirectory(u.dir),
		form.WithDebounce(u.debounce),
		form.WithMinQuery(u.minQuery),
		form.WithMaxResults(u.maxResults),
		form.WithOnAlert(func(msg string) {
			u.Notify(msg)
			push(searchOutcome{err: msg})
		}),
		form.WithOnResults(func(query string, owners []model.Owner) {
			push(searchOutcome{query: query, owners: owners})
		}),
	}
	f, err := form.New(entity, prefill, append(opts, u.formOpts...)...)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	u.printf("\n%s document (%s at any prompt goes back)\n", entity.Label(), backKey)
	f.LoadDocumentTypes(ctx, u.dir)
	if err := u.applyPresets(ctx, f, results); err != nil {
		return nil, err
	}

	askedLocation := false
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if u.eof {
			return nil, workflow.ErrLeave
		}
		if missing := f.Missing(); len(missing) > 0 {
			if err := u.fill(ctx, f, missing[0], results); err != nil {
				return nil, err
			}
			continue
		}
		meta := f.Metadata()
		if !askedLocation && meta.Shared().Location == "" {
			askedLocation = true
			if err := u.fill(ctx, f, model.FieldLocation, results); err != nil {
				return nil, err
			}
			continue
		}
		u.summary(meta)
		answer, ok := u.ask("Enter to continue, a field name to edit it, or " + backKey + " to go back: ")
		if !ok {
			return nil, workflow.ErrLeave
		}
		switch answer {
		case "":
			return f.Submit()
		case backKey:
			return nil, workflow.ErrBack
		}
		field, known := editable(entity, answer)
		if !known {
			u.Notify("Unknown field " + strconv.Quote(answer))
			continue
		}
		if field == model.FieldOwner {
			_ = f.ClearOwner()
		}
		if err := u.fill(ctx, f, field, results); err != nil {
			return nil, err
		}
	}
}

func (u *UI) applyPresets(ctx context.Context, f *form.Form, results chan searchOutcome) error {
	if u.usedFields {
		return nil
	}
	u.usedFields = true
	p := u.presets
	if p.DocumentType != "" {
		f.SetDocumentType(p.DocumentType)
	}
	if p.Date != "" {
		if err := f.SetDate(p.Date); err != nil {
			u.Notify(err.Error())
		}
	}
	if p.Location != "" {
		f.SetLocation(p.Location)
	}
	if p.Title != "" && f.Entity() == model.EntityInstitution {
		_ = f.SetTitle(p.Title)
	}
	if p.OwnerQuery != "" && f.Entity().HasOwner() {
		owners, err := u.search(ctx, f, p.OwnerQuery, results)
		if err != nil {
			return u.searchError(err)
		}
		if len(owners) == 1 {
			u.printf("Owner: %s\n", ownerLabel(owners[0]))
			return f.SelectOwner(owners[0])
		}
		if len(owners) > 1 {
			return u.pickOwner(f, owners)
		}
	}
	return nil
}

// fill prompts for one field. It returns workflow.ErrBack when the user goes
// back and workflow.ErrLeave when the input ends.
func (u *UI) fill(ctx context.Context, f *form.Form, field model.Field, results chan searchOutcome) error {
	switch field {
	case model.FieldOwner:
		query, ok := u.ask(fmt.Sprintf("Search %s by name: ", strings.ToLower(f.Entity().Label())))
		if err := answered(query, ok); err != nil {
			return err
		}
		if utf8.RuneCountInString(query) < u.minQuery {
			u.Notify(fmt.Sprintf("Type at least %d characters", u.minQuery))
			return nil
		}
		owners, err := u.search(ctx, f, query, results)
		if err != nil {
			return u.searchError(err)
		}
		if len(owners) == 0 {
			u.Notify("Nobody matches " + strconv.Quote(query))
			return nil
		}
		return u.pickOwner(f, owners)

	case model.FieldDocumentType:
		types := f.DocumentTypes()
		if len(types) == 0 {
			name, ok := u.ask("Document type: ")
			if err := answered(name, ok); err != nil {
				return err
			}
			f.SetDocumentType(name)
			return nil
		}
		u.printf("Document types:\n")
		for i, t := range types {
			u.printf("  %d) %s\n", i+1, t.Nome)
		}
		answer, ok := u.ask(fmt.Sprintf("Choose 1-%d: ", len(types)))
		if err := answered(answer, ok); err != nil {
			return err
		}
		n, err := strconv.Atoi(answer)
		if err != nil || n < 1 || n > len(types) {
			u.Notify("Unknown choice " + strconv.Quote(answer))
			return nil
		}
		f.SetDocumentType(types[n-1].Nome)
		return nil

	case model.FieldDate:
		answer, ok := u.ask("Document date (YYYY-MM-DD): ")
		if err := answered(answer, ok); err != nil {
			return err
		}
		if err := f.SetDate(answer); err != nil {
			u.Notify("Use the YYYY-MM-DD format")
			return nil
		}
		for _, m := range f.Missing() {
			if m == model.FieldDate && answer != "" {
				u.Notify("The date cannot be in the future")
			}
		}
		return nil

	case model.FieldLocation:
		answer, ok := u.ask("Physical location (optional): ")
		if err := answered(answer, ok); err != nil {
			return err
		}
		f.SetLocation(answer)
		return nil

	case model.FieldTitle:
		answer, ok := u.ask("Title: ")
		if err := answered(answer, ok); err != nil {
			return err
		}
		return f.SetTitle(answer)
	}
	return fmt.Errorf("fill: unknown field %q", field)
}

// search runs one debounced owner query and waits for its results.
func (u *UI) search(ctx context.Context, f *form.Form, query string, results chan searchOutcome) ([]model.Owner, error) {
	for len(results) > 0 {
		<-results
	}
	query = strings.TrimSpace(query)
	f.QueryOwner(query)
	timer := time.NewTimer(u.searchWait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, errSearchTimeout
		case o := <-results:
			if o.err != "" {
				return nil, errSearchFailed
			}
			if o.query == query {
				return o.owners, nil
			}
		}
	}
}

// searchError keeps the prompt alive after a failed lookup. The form has
// already shown failures as alerts.
func (u *UI) searchError(err error) error {
	switch {
	case errors.Is(err, errSearchTimeout):
		u.Notify(err.Error())
		return nil
	case errors.Is(err, errSearchFailed):
		return nil
	}
	return err
}

func (u *UI) pickOwner(f *form.Form, owners []model.Owner) error {
	for i, o := range owners {
		u.printf("  %d) %s\n", i+1, ownerLabel(o))
	}
	answer, ok := u.ask(fmt.Sprintf("Choose 1-%d (enter to search again): ", len(owners)))
	if err := answered(answer, ok); err != nil {
		return err
	}
	if answer == "" {
		return nil
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(owners) {
		u.Notify("Unknown choice " + strconv.Quote(answer))
		return nil
	}
	return f.SelectOwner(owners[n-1])
}

func (u *UI) summary(m model.Metadata) {
	c := m.Shared()
	u.printf("\n%s document\n", m.Entity().Label())
	if o := model.OwnerOf(m); o != nil {
		u.printf("  owner:    %s\n", ownerLabel(*o))
	}
	if inst, ok := m.(*model.InstitutionMetadata); ok {
		u.printf("  title:    %s\n", inst.Title)
	}
	u.printf("  type:     %s\n", c.DocumentType)
	u.printf("  date:     %s\n", c.Date.Format(model.DateLayout))
	if c.Location != "" {
		u.printf("  location: %s\n", c.Location)
	}
}

// ReviewPages lists the collected pages and reads the next command.
func (u *UI) ReviewPages(pages []*model.CapturedPage) workflow.PageDecision {
	for {
		u.printf("\n%d page(s):\n", len(pages))
		for i, p := range pages {
			u.printf("  %d) %dx%d\n", i+1, p.Width, p.Height)
		}
		answer, ok := u.ask("a add page, r N remove page N, u upload, " + backKey + " back: ")
		if !ok {
			return workflow.PageDecision{Choice: workflow.ChoiceLeave}
		}
		fields := strings.Fields(strings.ToLower(answer))
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "a":
			return workflow.PageDecision{Choice: workflow.ChoiceAdd}
		case "u":
			return workflow.PageDecision{Choice: workflow.ChoiceProceed}
		case backKey:
			return workflow.PageDecision{Choice: workflow.ChoiceBack}
		case "r":
			if len(fields) == 2 {
				if n, err := strconv.Atoi(fields[1]); err == nil {
					return workflow.PageDecision{Choice: workflow.ChoiceRemove, Index: n - 1}
				}
			}
		}
		u.Notify("Unknown command " + strconv.Quote(answer))
	}
}

const barWidth = 20

func (u *UI) Progress(p upload.Progress) {
	filled := p.Percent * barWidth / 100
	u.printf("  [%s%s] %3d%% %s\n", strings.Repeat("#", filled), strings.Repeat(".", barWidth-filled), p.Percent, p.Status)
}

var actionLabels = map[workflow.Action]string{
	workflow.ActionRetry:       "Retry the upload",
	workflow.ActionBack:        "Back to page review",
	workflow.ActionScanAnother: "Scan another document",
	workflow.ActionLogin:       "Log in again",
	workflow.ActionDashboard:   "Back to the dashboard",
	workflow.ActionContinue:    "Continue",
}

var failureTitles = map[workflow.FailureKind]string{
	workflow.FailureProcessing: "Could not build the PDF",
	workflow.FailureUpload:     "Upload failed",
}

// Outcome reports a successful upload. Enter picks the first action.
func (u *UI) Outcome(result model.UploadResult, actions []workflow.Action) workflow.Action {
	u.printf("\nUploaded: %s (id %s)\n", result.Message, result.DocumentID)
	return u.choose(actions)
}

// Failed reports a failed upload and offers the alert's actions.
func (u *UI) Failed(alert workflow.Alert) workflow.Action {
	title, ok := failureTitles[alert.Kind]
	if !ok {
		title = "Failed"
	}
	u.printf("\n%s: %s\n", title, alert.Message)
	return u.choose(alert.Actions)
}

// choose lists actions and reads one. Closed input means the dashboard.
func (u *UI) choose(actions []workflow.Action) workflow.Action {
	if len(actions) == 0 {
		return workflow.ActionDashboard
	}
	for {
		for i, a := range actions {
			u.printf("  %d) %s\n", i+1, actionLabels[a])
		}
		answer, ok := u.ask(fmt.Sprintf("Choose 1-%d: ", len(actions)))
		if !ok {
			return workflow.ActionDashboard
		}
		if answer == "" {
			return actions[0]
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(actions) {
			return actions[n-1]
		}
		u.Notify("Unknown choice " + strconv.Quote(answer))
	}
}

func answered(answer string, ok bool) error {
	if !ok {
		return workflow.ErrLeave
	}
	if answer == backKey {
		return workflow.ErrBack
	}
	return nil
}

func editable(entity model.EntityType, name string) (model.Field, bool) {
	field := model.Field(name)
	switch field {
	case model.FieldDocumentType, model.FieldDate, model.FieldLocation:
		return field, true
	case model.FieldOwner:
		return field, entity.HasOwner()
	case model.FieldTitle:
		return field, entity == model.EntityInstitution
	}
	switch strings.ToLower(name) {
	case "type":
		return model.FieldDocumentType, true
	}
	return "", false
}

func ownerLabel(o model.Owner) string {
	return fmt.Sprintf("%s (#%d)", o.Name, o.ID)
}
