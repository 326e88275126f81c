// Package apiclient calls the DocDesk REST backend used by the digitalization
// workflow.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dharsanguruparan/DocDesk/internal/model"
)

// TokenSource returns the current bearer token, or "" when logged out.
type TokenSource func() string

// StaticToken returns a TokenSource that always yields token.
func StaticToken(token string) TokenSource {
	return func() string { return token }
}

// Client calls the backend over HTTP.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	token         TokenSource
	staffPageSize int
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithToken sets the bearer token source.
func WithToken(ts TokenSource) Option {
	return func(c *Client) { c.token = ts }
}

// WithStaffPageSize sets how many staff records are fetched for client-side
// filtering.
func WithStaffPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.staffPageSize = n
		}
	}
}

// NewClient constructs a backend client.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		token:         StaticToken(""),
		staffPageSize: 200,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken swaps the bearer token source, for example after a login.
func (c *Client) SetToken(ts TokenSource) { c.token = ts }

// Login exchanges credentials for a session token.
func (c *Client) Login(ctx context.Context, login, password string) (model.LoginResponse, error) {
	body, err := json.Marshal(model.LoginRequest{Login: login, Password: password})
	if err != nil {
		return model.LoginResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/user/login", bytes.NewReader(body))
	if err != nil {
		return model.LoginResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	var resp model.LoginResponse
	if err := c.do(req, "login", &resp); err != nil {
		if errors.Is(err, ErrSessionExpired) {
			return model.LoginResponse{}, ErrInvalidCredentials
		}
		return model.LoginResponse{}, err
	}
	if strings.TrimSpace(resp.Token) == "" {
		return model.LoginResponse{}, &RequestError{Kind: KindInvalidResponse, Op: "login", Err: errors.New("empty token")}
	}
	return resp, nil
}

// ActiveDocumentTypes returns every active document type.
func (c *Client) ActiveDocumentTypes(ctx context.Context) ([]model.DocumentType, error) {
	req, err := c.authed(ctx, http.MethodGet, "/tipo-documento/ativos", nil)
	if err != nil {
		return nil, err
	}
	var types []model.DocumentType
	if err := c.do(req, "list document types", &types); err != nil {
		return nil, err
	}
	return types, nil
}

// SearchStudents pages through students matching term.
func (c *Client) SearchStudents(ctx context.Context, term string, page, size int) (model.Page[model.Student], error) {
	q := url.Values{}
	q.Set("termoBusca", term)
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	req, err := c.authed(ctx, http.MethodGet, "/alunos/all?"+q.Encode(), nil)
	if err != nil {
		return model.Page[model.Student]{}, err
	}
	var out model.Page[model.Student]
	if err := c.do(req, "search students", &out); err != nil {
		return model.Page[model.Student]{}, err
	}
	return out, nil
}

// GetStudent returns one student by id.
func (c *Client) GetStudent(ctx context.Context, id int64) (model.Student, error) {
	req, err := c.authed(ctx, http.MethodGet, fmt.Sprintf("/alunos/%d", id), nil)
	if err != nil {
		return model.Student{}, err
	}
	var out model.Student
	if err := c.do(req, "get student", &out); err != nil {
		return model.Student{}, err
	}
	return out, nil
}

// ListStaff pages through staff members. The backend has no search parameter
// for staff.
func (c *Client) ListStaff(ctx context.Context, page, size int) (model.Page[model.Staff], error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	req, err := c.authed(ctx, http.MethodGet, "/colaboradores?"+q.Encode(), nil)
	if err != nil {
		return model.Page[model.Staff]{}, err
	}
	var out model.Page[model.Staff]
	if err := c.do(req, "list staff", &out); err != nil {
		return model.Page[model.Staff]{}, err
	}
	return out, nil
}

// GetStaff returns one staff member by id.
func (c *Client) GetStaff(ctx context.Context, id int64) (model.Staff, error) {
	req, err := c.authed(ctx, http.MethodGet, fmt.Sprintf("/colaboradores/%d", id), nil)
	if err != nil {
		return model.Staff{}, err
	}
	var out model.Staff
	if err := c.do(req, "get staff", &out); err != nil {
		return model.Staff{}, err
	}
	return out, nil
}

// SearchStaff lists one page of staff and filters it locally by name,
// ignoring case and accents.
func (c *Client) SearchStaff(ctx context.Context, term string, limit int) ([]model.Staff, error) {
	page, err := c.ListStaff(ctx, 0, c.staffPageSize)
	if err != nil {
		return nil, err
	}
	return FilterStaff(page.Content, term, limit), nil
}

// SearchOwners dispatches an owner lookup to the endpoint of the entity.
func (c *Client) SearchOwners(ctx context.Context, entity model.EntityType, query string, limit int) ([]model.Owner, error) {
	switch entity {
	case model.EntityStudent:
		page, err := c.SearchStudents(ctx, query, 0, limit)
		if err != nil {
			return nil, err
		}
		owners := make([]model.Owner, 0, len(page.Content))
		for _, s := range page.Content {
			owners = append(owners, s.Owner())
		}
		return capOwners(owners, limit), nil
	case model.EntityStaff:
		staff, err := c.SearchStaff(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		owners := make([]model.Owner, 0, len(staff))
		for _, s := range staff {
			owners = append(owners, s.Owner())
		}
		return owners, nil
	}
	return nil, fmt.Errorf("%s documents have no owner", entity)
}

// GetDocument returns the backend record of an uploaded document.
func (c *Client) GetDocument(ctx context.Context, id string) (model.Document, error) {
	req, err := c.authed(ctx, http.MethodGet, "/documentos/"+url.PathEscape(id), nil)
	if err != nil {
		return model.Document{}, err
	}
	var out model.Document
	if err := c.do(req, "get document", &out); err != nil {
		return model.Document{}, err
	}
	return out, nil
}

// FormField is one text part of a multipart upload.
type FormField struct {
	Name  string
	Value string
}

// UploadRequest describes a multipart document upload.
type UploadRequest struct {
	Endpoint string
	Fields   []FormField
	FileName string
	File     io.Reader
}

// Upload posts the multipart request and returns the created document.
func (c *Client) Upload(ctx context.Context, up UploadRequest) (model.UploadResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, f := range up.Fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return model.UploadResponse{}, err
		}
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, up.FileName))
	header.Set("Content-Type", "application/pdf")
	part, err := writer.CreatePart(header)
	if err != nil {
		return model.UploadResponse{}, err
	}
	if _, err := io.Copy(part, up.File); err != nil {
		return model.UploadResponse{}, fmt.Errorf("copy upload file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return model.UploadResponse{}, err
	}

	req, err := c.authed(ctx, http.MethodPost, up.Endpoint, body)
	if err != nil {
		return model.UploadResponse{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var resp model.UploadResponse
	if err := c.do(req, "upload document", &resp); err != nil {
		return model.UploadResponse{}, err
	}
	return resp, nil
}

func (c *Client) authed(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	token := strings.TrimSpace(c.token())
	if token == "" {
		return nil, ErrSessionExpired
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return transportError(op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(resp.Body)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Kind: KindInvalidResponse, Op: op, Err: err}
	}
	return nil
}

func errorMessage(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &body) == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}

func capOwners(owners []model.Owner, limit int) []model.Owner {
	if limit > 0 && len(owners) > limit {
		return owners[:limit]
	}
	return owners
}
