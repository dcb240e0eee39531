package documents

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"carbonmarket-backend/internal/application/activity"
	"carbonmarket-backend/internal/domain"
	"carbonmarket-backend/internal/infrastructure/blobstore"
	"carbonmarket-backend/internal/repository"

	"github.com/rs/zerolog/log"
)

// DefaultMaxSize caps a single upload at 20 MiB.
const DefaultMaxSize int64 = 20 << 20

// Service pins project documents to the blob store and indexes them.
type Service struct {
	Projects repository.ProjectRepository
	Blobs    blobstore.BlobStore
	Activity activity.Recorder
	MaxSize  int64
}

type UploadRequest struct {
	ProjectID       uint
	UploaderAddress string
	FileName        string
	ContentType     string
	Data            []byte
}

func (s *Service) Upload(ctx context.Context, req UploadRequest) (*domain.Document, error) {
	uploader := domain.NormalizeAddress(req.UploaderAddress)
	if uploader == "" {
		return nil, domain.Validation("uploaderAddress is required")
	}
	if len(req.Data) == 0 {
		return nil, domain.Validation("file is empty")
	}
	limit := s.MaxSize
	if limit <= 0 {
		limit = DefaultMaxSize
	}
	if int64(len(req.Data)) > limit {
		return nil, domain.Validation("file exceeds %d bytes", limit)
	}
	name := filepath.Base(strings.TrimSpace(req.FileName))
	if name == "" || name == "." || name == "/" {
		return nil, domain.Validation("fileName is required")
	}

	project, err := s.Projects.GetProject(ctx, req.ProjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("project %d not found", req.ProjectID)
		}
		return nil, domain.Persistence("load project", err)
	}
	if project.Status == domain.ProjectStatusRejected {
		return nil, domain.InvalidState("project %d was rejected", project.ID)
	}

	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(req.Data)
	}

	obj, err := s.Blobs.Put(ctx, name, contentType, req.Data)
	if err != nil {
		log.Error().Err(err).Str("blob_store", s.Blobs.Name()).Uint("project_id", project.ID).Msg("document upload failed")
		return nil, fmt.Errorf("store document: %w", err)
	}

	doc := &domain.Document{
		ProjectID:       project.ID,
		UploaderAddress: uploader,
		FileName:        name,
		ContentType:     contentType,
		Size:            int64(len(req.Data)),
		CID:             obj.CID,
		GatewayURL:      obj.URL,
		ContentHash:     blobstore.Digest(req.Data),
	}
	if err := s.Projects.CreateDocument(ctx, doc); err != nil {
		return nil, domain.Persistence("create document", err)
	}
	if s.Activity != nil {
		_ = s.Activity.Record(ctx, activity.Entry{
			UserAddress: uploader,
			ActionType:  domain.ActionDocumentUploaded,
			Details: map[string]interface{}{
				"projectId":  project.ID,
				"documentId": doc.ID,
				"cid":        doc.CID,
				"fileName":   doc.FileName,
			},
		})
	}
	return doc, nil
}

func (s *Service) List(ctx context.Context, projectID uint) ([]domain.Document, error) {
	if _, err := s.Projects.GetProject(ctx, projectID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.NotFound("project %d not found", projectID)
		}
		return nil, domain.Persistence("load project", err)
	}
	docs, err := s.Projects.ListDocuments(ctx, projectID)
	if err != nil {
		return nil, domain.Persistence("list documents", err)
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}
