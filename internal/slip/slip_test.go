package slip

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kiuth/recruitment-api/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 80))
	for x := 0; x < 64; x++ {
		for y := 0; y < 80; y++ {
			img.Set(x, y, color.RGBA{R: 30, G: 58, B: 95, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func sampleRecord() Record {
	return Record{
		ReferenceNumber: "KIUTH-2025-7Q2M9XKD",
		FullName:        "Amina Yusuf",
		Position:        "Staff Nurse",
		Department:      "Nursing Services",
		DateOfBirth:     "1995-04-12",
		StateOfOrigin:   "Kwara",
		AppliedAt:       time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC),
	}
}

func assertPDF(t *testing.T, out []byte) {
	t.Helper()
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(out[len(out)-16:]), "%%EOF")
}

func TestGenerateWithoutPhoto(t *testing.T) {
	out, err := Generate(sampleRecord(), nil)
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestGenerateWithUndecodablePhoto(t *testing.T) {
	out, err := Generate(sampleRecord(), []byte("<html>not a photo</html>"))
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestGenerateWithPhoto(t *testing.T) {
	withPhoto, err := Generate(sampleRecord(), samplePNG(t))
	require.NoError(t, err)
	assertPDF(t, withPhoto)

	without, err := Generate(sampleRecord(), nil)
	require.NoError(t, err)
	assert.Greater(t, len(withPhoto), len(without))
}

func TestGenerateHandlesNonLatinNames(t *testing.T) {
	r := sampleRecord()
	r.FullName = "Zoë Ọlámidé"
	out, err := Generate(r, nil)
	require.NoError(t, err)
	assertPDF(t, out)
}

func TestQRPayload(t *testing.T) {
	assert.Equal(t, "REF:KIUTH-2025-7Q2M9XKD|NAME:Amina Yusuf|POS:Staff Nurse", QRPayload(sampleRecord()))
}

func TestPhotoLoaderPrefersStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Create(ctx, "1_a_photo.png", bytes.NewReader(samplePNG(t)), "image/png"))

	loader := NewPhotoLoader(store, "https://recruitment.example.org", time.Second)
	out := loader.Load(ctx, "https://recruitment.example.org/uploads/1_a_photo.png")
	require.NotNil(t, out)

	_, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
}

func TestPhotoLoaderFallsBackToHTTP(t *testing.T) {
	photo := samplePNG(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(photo)
	}))
	defer srv.Close()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	loader := NewPhotoLoader(store, srv.URL, time.Second)
	// Under the base URL but missing from the store
	assert.NotNil(t, loader.Load(context.Background(), srv.URL+"/uploads/1_a_photo.png"))
}

func TestPhotoLoaderReturnsNilOnFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	loader := NewPhotoLoader(store, "https://recruitment.example.org", time.Second)
	assert.Nil(t, loader.Load(context.Background(), srv.URL+"/missing.jpg"))
	assert.Equal(t, int32(1), hits.Load())
	assert.Nil(t, loader.Load(context.Background(), ""))
}
