package service

import (
	"context"

	"github.com/kiuth/recruitment-api/internal/model"
	"github.com/kiuth/recruitment-api/internal/slip"
)

// PhotoSource loads passport bytes; nil means unavailable
type PhotoSource interface {
	Load(ctx context.Context, url string) []byte
}

// SlipService renders slips for stored applications
type SlipService struct {
	photos PhotoSource
}

func NewSlipService(photos PhotoSource) *SlipService {
	return &SlipService{photos: photos}
}

func (s *SlipService) Render(ctx context.Context, a *model.Application) ([]byte, error) {
	var photo []byte
	if s.photos != nil {
		photo = s.photos.Load(ctx, a.PhotoURL)
	}
	return slip.Generate(slip.RecordFrom(a), photo)
}
