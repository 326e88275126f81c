// Package form holds the metadata form of the digitalization workflow: the
// per-category field set, its validity, owner lookup and document types.
package form

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// ErrInvalid is returned by Submit while required fields are missing.
var ErrInvalid = errors.New("form incomplete")

const (
	DefaultDebounce   = 500 * time.Millisecond
	DefaultMinQuery   = 2
	DefaultMaxResults = 10
)

// OwnerDirectory looks up owners by name for the entity's endpoint.
type OwnerDirectory interface {
	SearchOwners(ctx context.Context, entity model.EntityType, query string, limit int) ([]model.Owner, error)
}

// DocumentTypeLister returns the active document types of every category.
type DocumentTypeLister interface {
	ActiveDocumentTypes(ctx context.Context) ([]model.DocumentType, error)
}

// Form is safe for concurrent use; callbacks run outside its lock.
type Form struct {
	mu sync.Mutex

	entity model.EntityType
	meta   model.Metadata
	types  []model.DocumentType

	directory  OwnerDirectory
	onChange   func(model.Metadata, bool)
	onAlert    func(string)
	onResults  func(string, []model.Owner)
	now        func() time.Time
	debounce   time.Duration
	minQuery   int
	maxResults int
	log        *zap.Logger

	ctx       context.Context
	stop      context.CancelFunc
	timer     *time.Timer
	inflight  context.CancelFunc
	searchSeq uint64
	closed    bool
}

// Option configures a Form.
type Option func(*Form)

// WithOnChange is called with a copy of the metadata and its validity after
// every change.
func WithOnChange(fn func(model.Metadata, bool)) Option {
	return func(f *Form) { f.onChange = fn }
}

// WithOnAlert receives non-blocking lookup failures.
func WithOnAlert(fn func(string)) Option {
	return func(f *Form) { f.onAlert = fn }
}

// WithOnResults receives the owners matching the last query.
func WithOnResults(fn func(query string, owners []model.Owner)) Option {
	return func(f *Form) { f.onResults = fn }
}

func WithClock(now func() time.Time) Option {
	return func(f *Form) { f.now = now }
}

func WithDirectory(d OwnerDirectory) Option {
	return func(f *Form) { f.directory = d }
}

func WithDebounce(d time.Duration) Option {
	return func(f *Form) { f.debounce = d }
}

func WithMinQuery(n int) Option {
	return func(f *Form) { f.minQuery = n }
}

func WithMaxResults(n int) Option {
	return func(f *Form) { f.maxResults = n }
}

func WithLogger(log *zap.Logger) Option {
	return func(f *Form) { f.log = log }
}

// New renders the field set for entity, starting from a copy of prefill when
// its category matches.
func New(entity model.EntityType, prefill model.Metadata, opts ...Option) (*Form, error) {
	meta := model.NewMetadata(entity)
	if meta == nil {
		return nil, fmt.Errorf("new form: unknown entity type %q", entity)
	}
	if prefill != nil && prefill.Entity() == entity {
		meta = model.Clone(prefill)
	}
	f := &Form{
		entity:     entity,
		meta:       meta,
		now:        time.Now,
		debounce:   DefaultDebounce,
		minQuery:   DefaultMinQuery,
		maxResults: DefaultMaxResults,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.log = f.log.With(zap.String("component", "form"), zap.String("entity", string(entity)))
	f.ctx, f.stop = context.WithCancel(context.Background())
	return f, nil
}

// Entity returns the category the form was rendered for.
func (f *Form) Entity() model.EntityType { return f.entity }

// Metadata returns a copy of the current field state.
func (f *Form) Metadata() model.Metadata {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Clone(f.meta)
}

// Valid reports whether every required field is populated.
func (f *Form) Valid() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.Valid(f.meta, f.now())
}

// Missing lists the required fields still empty.
func (f *Form) Missing() []model.Field {
	f.mu.Lock()
	defer f.mu.Unlock()
	return model.MissingFields(f.meta, f.now())
}

// Submit returns the metadata when it is complete, ErrInvalid otherwise.
func (f *Form) Submit() (model.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if missing := model.MissingFields(f.meta, f.now()); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalid, joinFields(missing))
	}
	return model.Clone(f.meta), nil
}

func (f *Form) SetDocumentType(name string) {
	f.update(func(c *model.Common) error {
		c.DocumentType = strings.TrimSpace(name)
		return nil
	})
}

func (f *Form) SetLocation(location string) {
	f.update(func(c *model.Common) error {
		c.Location = strings.TrimSpace(location)
		return nil
	})
}

// SetDate accepts YYYY-MM-DD; an empty value clears the date.
func (f *Form) SetDate(value string) error {
	return f.update(func(c *model.Common) error {
		value = strings.TrimSpace(value)
		if value == "" {
			c.Date = time.Time{}
			return nil
		}
		d, err := time.ParseInLocation(model.DateLayout, value, time.Local)
		if err != nil {
			return fmt.Errorf("set date: %w", err)
		}
		c.Date = d
		return nil
	})
}

// SetTitle sets the title of an institutional document.
func (f *Form) SetTitle(title string) error {
	return f.apply(func(m model.Metadata) error {
		inst, ok := m.(*model.InstitutionMetadata)
		if !ok {
			return fmt.Errorf("set title: %s documents have no title", f.entity)
		}
		inst.Title = strings.TrimSpace(title)
		return nil
	})
}

// SelectOwner picks one of the search results as the document owner.
func (f *Form) SelectOwner(owner model.Owner) error {
	return f.setOwner(&owner)
}

func (f *Form) ClearOwner() error {
	return f.setOwner(nil)
}

func (f *Form) setOwner(owner *model.Owner) error {
	return f.apply(func(m model.Metadata) error {
		switch v := m.(type) {
		case *model.StudentMetadata:
			v.Owner = owner
		case *model.StaffMetadata:
			v.Owner = owner
		default:
			return fmt.Errorf("set owner: %s documents have no owner", f.entity)
		}
		return nil
	})
}

// Set routes a text change to the matching field. A change to the owner
// field is treated as a search query.
func (f *Form) Set(field model.Field, value string) error {
	switch field {
	case model.FieldOwner:
		f.QueryOwner(value)
		return nil
	case model.FieldDocumentType:
		f.SetDocumentType(value)
		return nil
	case model.FieldDate:
		return f.SetDate(value)
	case model.FieldLocation:
		f.SetLocation(value)
		return nil
	case model.FieldTitle:
		return f.SetTitle(value)
	}
	return fmt.Errorf("set: unknown field %q", field)
}

func (f *Form) update(fn func(*model.Common) error) error {
	return f.apply(func(m model.Metadata) error { return fn(m.Shared()) })
}

func (f *Form) apply(fn func(model.Metadata) error) error {
	f.mu.Lock()
	if err := fn(f.meta); err != nil {
		f.mu.Unlock()
		return err
	}
	snapshot := model.Clone(f.meta)
	valid := model.Valid(f.meta, f.now())
	onChange := f.onChange
	f.mu.Unlock()

	if onChange != nil {
		onChange(snapshot, valid)
	}
	return nil
}

// DocumentTypes returns the types loaded by LoadDocumentTypes.
func (f *Form) DocumentTypes() []model.DocumentType {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.DocumentType(nil), f.types...)
}

// LoadDocumentTypes fetches the active document types and keeps those of the
// form's category. Failures are reported through the alert callback, except
// for an expired session, and leave the list empty.
func (f *Form) LoadDocumentTypes(ctx context.Context, lister DocumentTypeLister) []model.DocumentType {
	types, err := lister.ActiveDocumentTypes(ctx)
	if err != nil {
		f.lookupFailed("load document types", err)
		return nil
	}
	filtered := model.FilterDocumentTypes(types, f.entity)
	f.mu.Lock()
	f.types = filtered
	f.mu.Unlock()
	return append([]model.DocumentType(nil), filtered...)
}

// QueryOwner schedules an owner search. Only the last query scheduled within
// the debounce window runs, and a newer query cancels a search still in
// flight. Queries shorter than the minimum length only cancel.
func (f *Form) QueryOwner(query string) {
	query = strings.TrimSpace(query)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || !f.entity.HasOwner() || f.directory == nil {
		return
	}
	f.searchSeq++
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	if f.inflight != nil {
		f.inflight()
		f.inflight = nil
	}
	if utf8.RuneCountInString(query) < f.minQuery {
		return
	}
	seq := f.searchSeq
	f.timer = time.AfterFunc(f.debounce, func() { f.search(seq, query) })
}

func (f *Form) search(seq uint64, query string) {
	f.mu.Lock()
	if f.closed || seq != f.searchSeq {
		f.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(f.ctx)
	f.inflight = cancel
	directory, limit := f.directory, f.maxResults
	f.mu.Unlock()
	defer cancel()

	owners, err := directory.SearchOwners(ctx, f.entity, query, limit)

	f.mu.Lock()
	current := seq == f.searchSeq && !f.closed
	if current {
		f.inflight = nil
	}
	onResults := f.onResults
	f.mu.Unlock()

	if !current || ctx.Err() != nil {
		f.log.Debug("owner search superseded", zap.String("query", query))
		return
	}
	if err != nil {
		f.lookupFailed("search owners", err)
		return
	}
	if limit > 0 && len(owners) > limit {
		owners = owners[:limit]
	}
	if onResults != nil {
		onResults(query, owners)
	}
}

func (f *Form) lookupFailed(op string, err error) {
	if apiclient.IsSessionExpired(err) || apiclient.Classify(err) == apiclient.KindCancelled {
		f.log.Debug("lookup failure suppressed", zap.String("op", op), zap.Error(err))
		return
	}
	f.log.Warn("lookup failed", zap.String("op", op), zap.Error(err))
	if f.onAlert != nil {
		f.onAlert(err.Error())
	}
}

// Close stops the debouncer and cancels any search in flight.
func (f *Form) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	if f.timer != nil {
		f.timer.Stop()
	}
	f.stop()
}

func joinFields(fields []model.Field) string {
	parts := make([]string, len(fields))
	for i, fl := range fields {
		parts[i] = string(fl)
	}
	return strings.Join(parts, ", ")
}
