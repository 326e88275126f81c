package upload

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dharsanguruparan/DocDesk/internal/apiclient"
	"github.com/dharsanguruparan/DocDesk/internal/model"
)

const InstitutionEndpoint = "/institucional/upload"

// ErrNoOwner is returned when a student or staff document has no owner.
var ErrNoOwner = errors.New("document has no owner")

// OwnerEndpoint is the per-owner upload endpoint shared by students and staff.
func OwnerEndpoint(ownerID int64) string {
	return "/documentos/create/" + strconv.FormatInt(ownerID, 10)
}

// BuildRequest maps the metadata variant onto its endpoint and form fields.
func BuildRequest(meta model.Metadata, fileName string, file io.Reader) (apiclient.UploadRequest, error) {
	req := apiclient.UploadRequest{FileName: fileName, File: file}
	switch v := meta.(type) {
	case *model.StudentMetadata:
		if v.Owner == nil {
			return apiclient.UploadRequest{}, fmt.Errorf("build request: student %w", ErrNoOwner)
		}
		req.Endpoint = OwnerEndpoint(v.Owner.ID)
	case *model.StaffMetadata:
		if v.Owner == nil {
			return apiclient.UploadRequest{}, fmt.Errorf("build request: staff %w", ErrNoOwner)
		}
		req.Endpoint = OwnerEndpoint(v.Owner.ID)
	case *model.InstitutionMetadata:
		req.Endpoint = InstitutionEndpoint
		req.Fields = append(req.Fields, apiclient.FormField{Name: "titulo", Value: v.Title})
	default:
		return apiclient.UploadRequest{}, fmt.Errorf("build request: unsupported metadata %T", meta)
	}
	c := meta.Shared()
	req.Fields = append(req.Fields,
		apiclient.FormField{Name: "tipoDocumento", Value: c.DocumentType},
		apiclient.FormField{Name: "dataDocumento", Value: c.Date.Format(model.DateLayout)},
		apiclient.FormField{Name: "localizacao", Value: c.Location},
	)
	return req, nil
}
