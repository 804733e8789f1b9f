package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/kiuth/recruitment-api/internal/imaging"
	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/ledongthuc/pdf"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog/log"
)

const tokenAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Extensions and the sniffed type each one must carry
var extensionMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// UploadError is a rejected upload; the message is shown to the applicant
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string { return e.Message }

type UploadConfig struct {
	MaxSize              int64
	AllowedExtensions    []string
	AllowedMIMETypes     []string
	VerifyPDF            bool
	PassportMaxDimension int
	PublicBaseURL        string
}

// UploadService validates relay uploads and writes them to the store
type UploadService struct {
	store storage.Store
	cfg   UploadConfig
	now   func() time.Time
}

func NewUploadService(store storage.Store, cfg UploadConfig) *UploadService {
	return &UploadService{store: store, cfg: cfg, now: time.Now}
}

// Store validates one file and stores it under a fresh name
func (s *UploadService) Store(ctx context.Context, kind, originalName string, r io.Reader) (*model.Upload, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.cfg.MaxSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	if int64(len(data)) > s.cfg.MaxSize {
		return nil, &UploadError{Message: fmt.Sprintf("File is too large. Max limit is %s.", humanize.IBytes(uint64(s.cfg.MaxSize)))}
	}
	if len(data) == 0 {
		return nil, &UploadError{Message: "No file received."}
	}

	mt := mimetype.Detect(data)
	sniffed := strings.ToLower(strings.SplitN(mt.String(), ";", 2)[0])
	if !contains(s.cfg.AllowedMIMETypes, sniffed) {
		return nil, invalidType()
	}

	ext := extensionOf(originalName)
	if ext == "" {
		ext = strings.TrimPrefix(mt.Extension(), ".")
	}
	if !contains(s.cfg.AllowedExtensions, ext) {
		return nil, invalidType()
	}
	if want, ok := extensionMIME[ext]; ok && want != sniffed {
		return nil, &UploadError{Message: "File content does not match its extension."}
	}

	if kind == model.UploadKindPassport && !strings.HasPrefix(sniffed, "image/") {
		return nil, &UploadError{Message: "The passport photo must be a JPG or PNG image."}
	}

	if sniffed == "application/pdf" && s.cfg.VerifyPDF {
		if err := verifyPDF(data); err != nil {
			log.Warn().Err(err).Str("name", originalName).Msg("Rejected unreadable PDF")
			return nil, &UploadError{Message: "The PDF could not be read. Please upload a valid PDF document."}
		}
	}

	if kind == model.UploadKindPassport {
		compressed, err := imaging.Compress(data, s.cfg.PassportMaxDimension, imaging.DefaultQuality)
		if err != nil {
			return nil, &UploadError{Message: "The passport photo could not be read. Please upload a JPG or PNG image."}
		}
		data, sniffed, ext = compressed, "image/jpeg", "jpg"
	}

	stem := sanitizeName(originalName)
	stored, err := retry.DoWithData(func() (string, error) {
		token, err := gonanoid.Generate(tokenAlphabet, 12)
		if err != nil {
			return "", retry.Unrecoverable(err)
		}
		name := fmt.Sprintf("%d_%s_%s.%s", s.now().Unix(), token, stem, ext)
		if err := s.store.Create(ctx, name, bytes.NewReader(data), sniffed); err != nil {
			return "", err
		}
		return name, nil
	},
		retry.Attempts(3),
		retry.Delay(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return errors.Is(err, storage.ErrExists) }),
	)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	log.Info().
		Str("kind", kind).
		Str("stored", stored).
		Str("mime", sniffed).
		Int("size", len(data)).
		Msg("Upload stored")

	return &model.Upload{
		OriginalName: originalName,
		StoredName:   stored,
		Size:         int64(len(data)),
		MIME:         sniffed,
		Path:         storage.PathFor(stored),
		URL:          storage.URLFor(s.cfg.PublicBaseURL, stored),
	}, nil
}

func invalidType() error {
	return &UploadError{Message: "Invalid file type. Only PDF, JPG, and PNG are allowed."}
}

// verifyPDF opens the document and requires at least one page. The reader
// panics on some malformed inputs.
func verifyPDF(data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening PDF: %w", err)
	}
	if reader.NumPage() < 1 {
		return errors.New("pdf has no pages")
	}
	return nil
}

func baseName(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		name = name[i+1:]
	}
	return name
}

func extensionOf(name string) string {
	base := baseName(name)
	i := strings.LastIndex(base, ".")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// sanitizeName keeps [A-Za-z0-9._-] of the name without its extension
func sanitizeName(name string) string {
	base := baseName(name)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	clean := strings.Trim(unsafeNameChars.ReplaceAllString(base, ""), ".")
	if clean == "" {
		return "file"
	}
	if len(clean) > 80 {
		clean = clean[:80]
	}
	return clean
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
