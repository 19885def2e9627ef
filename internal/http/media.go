package http

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	stdhttp "net/http"
	"sort"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"github.com/call-me-mahi/valentine/internal/media"
)

const (
	noFilesMessage      = "At least one file is required"
	uploadFailedMessage = "Upload failed"
)

type uploadInput struct {
	RawBody multipart.Form
}

type uploadOutput struct {
	Body []media.Asset
}

func (s *Server) registerMediaRoute() {
	huma.Register(s.api, huma.Operation{
		OperationID:  "upload-media",
		Method:       stdhttp.MethodPost,
		Path:         "/media/upload",
		Summary:      "Upload page photos or music",
		MaxBodyBytes: int64(s.maxUploadFiles)*s.maxUploadBytes + 1<<20,
		Errors:       []int{stdhttp.StatusBadRequest, stdhttp.StatusInternalServerError},
	}, s.uploadHandler)
}

// uploadHandler stores every file in the form. If any upload fails the
// objects already stored for this request are removed again.
func (s *Server) uploadHandler(ctx context.Context, input *uploadInput) (*uploadOutput, error) {
	files := formFiles(&input.RawBody)
	if len(files) == 0 {
		return nil, huma.Error400BadRequest(noFilesMessage)
	}
	if len(files) > s.maxUploadFiles {
		return nil, huma.Error400BadRequest(fmt.Sprintf("At most %d files can be uploaded at once", s.maxUploadFiles))
	}
	for _, fh := range files {
		if fh.Size > s.maxUploadBytes {
			return nil, huma.Error400BadRequest(fmt.Sprintf("%s exceeds the %d byte limit", fh.Filename, s.maxUploadBytes))
		}
	}

	assets := make([]media.Asset, 0, len(files))
	for _, fh := range files {
		asset, err := s.uploadFile(ctx, fh)
		if err == nil {
			assets = append(assets, asset)
			continue
		}

		s.rollbackUploads(ctx, assets)

		if eris.Is(err, media.ErrUnsupportedMedia) {
			return nil, huma.Error400BadRequest(fmt.Sprintf("%s is not a supported image or audio file", fh.Filename))
		}
		s.recordError(ctx, err, "uploading media", logrus.Fields{"filename": fh.Filename})
		return nil, huma.Error500InternalServerError(uploadFailedMessage)
	}

	return &uploadOutput{Body: assets}, nil
}

func (s *Server) uploadFile(ctx context.Context, fh *multipart.FileHeader) (media.Asset, error) {
	file, err := fh.Open()
	if err != nil {
		return media.Asset{}, eris.Wrapf(err, "opening %s", fh.Filename)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, s.maxUploadBytes+1))
	if err != nil {
		return media.Asset{}, eris.Wrapf(err, "reading %s", fh.Filename)
	}
	if int64(len(data)) > s.maxUploadBytes {
		return media.Asset{}, eris.Wrapf(media.ErrUnsupportedMedia, "%s is too large", fh.Filename)
	}

	return s.media.Upload(ctx, fh.Filename, data)
}

func (s *Server) rollbackUploads(ctx context.Context, assets []media.Asset) {
	for _, asset := range assets {
		if err := s.media.Delete(context.WithoutCancel(ctx), asset.ID); err != nil {
			s.recordError(ctx, err, "removing media after failed upload", logrus.Fields{"media_id": asset.ID})
		}
	}
}

// formFiles flattens the form's files in field-name order.
func formFiles(form *multipart.Form) []*multipart.FileHeader {
	if form == nil {
		return nil
	}

	fields := make([]string, 0, len(form.File))
	for field := range form.File {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var files []*multipart.FileHeader
	for _, field := range fields {
		files = append(files, form.File[field]...)
	}
	return files
}
