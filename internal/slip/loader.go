package slip

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/kiuth/recruitment-api/internal/imaging"
	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/rs/zerolog/log"
)

const maxPhotoBytes = 10 << 20

// PhotoLoader fetches the passport photo for a slip
type PhotoLoader struct {
	store   storage.Store
	baseURL string
	client  *http.Client
}

func NewPhotoLoader(store storage.Store, baseURL string, timeout time.Duration) *PhotoLoader {
	return &PhotoLoader{
		store:   store,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Load tries the object store first, then the URL itself, and re-encodes
// the result as JPEG. It returns nil when every attempt fails.
func (l *PhotoLoader) Load(ctx context.Context, url string) []byte {
	if url == "" {
		return nil
	}

	var raw []byte
	if name, ok := storage.NameFromURL(l.baseURL, url); ok {
		data, err := l.fromStore(ctx, name)
		if err != nil {
			log.Warn().Err(err).Str("object", name).Msg("Passport not readable from store")
		}
		raw = data
	}

	if raw == nil {
		data, err := l.fromHTTP(ctx, url)
		if err != nil {
			log.Warn().Err(err).Str("url", url).Msg("Passport fetch failed")
			return nil
		}
		raw = data
	}

	jpg, err := imaging.Compress(raw, 480, 90)
	if err != nil {
		log.Warn().Err(err).Str("url", url).Msg("Passport could not be decoded")
		return nil
	}
	return jpg
}

func (l *PhotoLoader) fromStore(ctx context.Context, name string) ([]byte, error) {
	r, err := l.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(io.LimitReader(r, maxPhotoBytes))
}

func (l *PhotoLoader) fromHTTP(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithData(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, retry.Unrecoverable(err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("photo host returned %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, retry.Unrecoverable(fmt.Errorf("photo host returned %d", resp.StatusCode))
		}
		return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
	},
		retry.Attempts(3),
		retry.Delay(300*time.Millisecond),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
}
