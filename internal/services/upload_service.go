package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/sheriff222/salone-fastmarket-pro-backend-api-sub000/internal/models"
)

// sniffBytes is how much of the payload is buffered for MIME detection.
const sniffBytes = 3072

type UploadRequest struct {
	ConversationID string
	MessageID      string
	MessageType    models.MessageType
	Body           io.Reader
	Size           int64
	FileName       string
	MimeType       string
	Caption        string
	DurationHint   *float64
}

// UploadService stores attachment bytes and turns the stored object into
// typed message content.
type UploadService struct {
	store    BlobStore
	maxBytes int64
}

func NewUploadService(store BlobStore, maxBytes int64) *UploadService {
	return &UploadService{store: store, maxBytes: maxBytes}
}

// Upload validates and stores req.Body. Blob store failures are reported as
// ErrUpload, bad input as ErrValidation.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (models.MessageContent, error) {
	if !req.MessageType.IsMedia() {
		return models.MessageContent{}, fmt.Errorf("%w: %s messages carry no attachment", ErrValidation, req.MessageType)
	}
	if req.Body == nil || req.Size <= 0 {
		return models.MessageContent{}, fmt.Errorf("%w: attachment is empty", ErrValidation)
	}
	if s.maxBytes > 0 && req.Size > s.maxBytes {
		return models.MessageContent{}, fmt.Errorf("%w: attachment is %s, limit is %s",
			ErrValidation, humanize.Bytes(uint64(req.Size)), humanize.Bytes(uint64(s.maxBytes)))
	}

	fileName := strings.TrimSpace(filepath.Base(req.FileName))
	if fileName == "." || fileName == string(filepath.Separator) {
		fileName = ""
	}
	if req.MessageType == models.MessageTypeDocument && fileName == "" {
		return models.MessageContent{}, fmt.Errorf("%w: document file name is required", ErrValidation)
	}

	body := req.Body
	mimeType := strings.TrimSpace(req.MimeType)
	var detected *mimetype.MIME
	if mimeType == "" || mimeType == "application/octet-stream" {
		head := make([]byte, sniffBytes)
		n, err := io.ReadFull(body, head)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
			return models.MessageContent{}, fmt.Errorf("%w: failed to read attachment: %v", ErrValidation, err)
		}
		detected = mimetype.Detect(head[:n])
		mimeType = detected.String()
		body = io.MultiReader(bytes.NewReader(head[:n]), body)
	}
	if err := checkMediaMime(req.MessageType, mimeType); err != nil {
		return models.MessageContent{}, err
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" && detected != nil {
		ext = detected.Extension()
	}
	if ext == "" {
		if m := mimetype.Lookup(baseMime(mimeType)); m != nil {
			ext = m.Extension()
		}
	}

	key := fmt.Sprintf("conversations/%s/%s/%s%s", req.ConversationID, req.MessageID, uuid.NewString(), ext)
	obj, err := s.store.Put(ctx, key, body, req.Size, mimeType, map[string]string{
		"conversation-id": req.ConversationID,
		"message-id":      req.MessageID,
	})
	if err != nil {
		slog.Error("Attachment upload failed", "messageID", req.MessageID, "key", key, "error", err)
		return models.MessageContent{}, fmt.Errorf("%w: %v", ErrUpload, err)
	}

	size := obj.Size
	if size <= 0 {
		size = req.Size
	}
	content := models.MessageContent{
		Caption:   req.Caption,
		URL:       obj.URL,
		ObjectKey: obj.Key,
		Size:      size,
		SizeLabel: humanize.Bytes(uint64(size)),
		MimeType:  mimeType,
	}
	if req.MessageType.HasDuration() {
		switch {
		case obj.DurationSec != nil:
			d := *obj.DurationSec
			content.DurationSec = &d
		case req.DurationHint != nil:
			d := *req.DurationHint
			content.DurationSec = &d
		}
	}
	if req.MessageType == models.MessageTypeDocument {
		content.FileName = fileName
		content.Extension = strings.TrimPrefix(ext, ".")
	}

	if err := content.Validate(req.MessageType); err != nil {
		// the object is useless without a valid record
		s.Delete(ctx, obj.Key)
		return models.MessageContent{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return content, nil
}

// Delete removes an attachment. Failures are logged; orphaned objects are harmless.
func (s *UploadService) Delete(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("Failed to delete attachment", "key", key, "error", err)
	}
}

func baseMime(m string) string {
	if i := strings.Index(m, ";"); i >= 0 {
		return strings.TrimSpace(m[:i])
	}
	return m
}

func checkMediaMime(t models.MessageType, mimeType string) error {
	family := strings.SplitN(baseMime(mimeType), "/", 2)[0]
	ok := true
	switch t {
	case models.MessageTypeImage:
		ok = family == "image"
	case models.MessageTypeVideo:
		ok = family == "video"
	case models.MessageTypeVoice:
		// recorders often wrap audio in a video container
		ok = family == "audio" || family == "video"
	}
	if !ok {
		return fmt.Errorf("%w: %s is not a valid %s attachment", ErrValidation, mimeType, t)
	}
	return nil
}
