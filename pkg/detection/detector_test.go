package detection

import (
	"context"
	"errors"
	"image"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rktypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	pigo "github.com/esimov/pigo/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

func TestSortOrdersTopToBottomLeftToRight(t *testing.T) {
	rects := []types.Rect{
		{X: 300, Y: 50, Width: 80, Height: 80},
		{X: 10, Y: 200, Width: 80, Height: 80},
		{X: 100, Y: 50, Width: 90, Height: 90},
		{X: 100, Y: 50, Width: 60, Height: 60},
	}

	Sort(rects)

	assert.Equal(t, []types.Rect{
		{X: 100, Y: 50, Width: 60, Height: 60},
		{X: 100, Y: 50, Width: 90, Height: 90},
		{X: 300, Y: 50, Width: 80, Height: 80},
		{X: 10, Y: 200, Width: 80, Height: 80},
	}, rects)
}

func TestClip(t *testing.T) {
	rects := []types.Rect{
		{X: -10, Y: -10, Width: 50, Height: 50},
		{X: 95, Y: 95, Width: 50, Height: 50},
		{X: 200, Y: 200, Width: 10, Height: 10},
		{X: 20, Y: 20, Width: 5, Height: 30},
	}

	got := clip(rects, 100, 100, 10)

	assert.Equal(t, []types.Rect{
		{X: 0, Y: 0, Width: 40, Height: 40},
	}, got)
}

func TestPigoRects(t *testing.T) {
	dets := []pigo.Detection{
		{Row: 100, Col: 150, Scale: 80, Q: 12},
		{Row: 300, Col: 300, Scale: 60, Q: 2}, // below quality threshold
		{Row: 10, Col: 10, Scale: 40, Q: 20},  // clipped at the corner
	}

	got := pigoRects(dets, 5, 400, 400, 20)

	assert.Equal(t, []types.Rect{
		{X: 110, Y: 60, Width: 80, Height: 80},
		{X: 0, Y: 0, Width: 30, Height: 30},
	}, got)
}

func TestLoadPigoDetectorMissingCascade(t *testing.T) {
	_, err := LoadPigoDetector(filepath.Join(t.TempDir(), "facefinder"), DefaultPigoParams())
	require.Error(t, err)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Contains(t, err.Error(), PigoCascadeURL)
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "dlib"})
	assert.ErrorIs(t, err, ErrUnknownBackend)
}

func TestNewVisionBackends(t *testing.T) {
	for _, backend := range []string{BackendOllama, BackendLlamaCpp} {
		opts := DefaultOptions()
		opts.Backend = backend
		opts.ServerURL = "http://127.0.0.1:1"

		d, err := New(context.Background(), opts)
		require.NoError(t, err, backend)
		assert.IsType(t, &VisionDetector{}, d, backend)
	}

	opts := DefaultOptions()
	opts.Backend = BackendOllama
	opts.ServerURL = "not a url"
	_, err := New(context.Background(), opts)
	assert.Error(t, err)
}

func TestDetectorFunc(t *testing.T) {
	want := []types.Rect{{X: 1, Y: 2, Width: 3, Height: 4}}
	d := DetectorFunc(func(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
		return want, nil
	})

	got, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 1, 1)))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

type fakeVisionClient struct {
	result *types.FaceLocations
	err    error
	calls  int
	model  string
}

func (f *fakeVisionClient) LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceLocations, error) {
	f.calls++
	f.model = model
	return f.result, f.err
}

func TestVisionDetector(t *testing.T) {
	fake := &fakeVisionClient{result: &types.FaceLocations{Faces: []types.Face{
		{Confidence: 0.9, Box: types.Box{X: 0.25, Y: 0.25, W: 0.25, H: 0.5}},
		{Confidence: 0.1, Box: types.Box{X: 0.5, Y: 0.5, W: 0.2, H: 0.2}},
		{Box: types.Box{X: 0.6, Y: 0.1, W: 0.2, H: 0.2}},
		{Confidence: 0.8, Box: types.Box{X: 0.1, Y: 0.1, W: 0, H: 0.2}},
	}}}
	params := DefaultVisionParams()
	params.SendFormat = "png"
	d := NewVisionDetector(fake, params)

	got, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 400, 200)))
	require.NoError(t, err)

	assert.Equal(t, 1, fake.calls)
	assert.Equal(t, params.Model, fake.model)
	assert.Equal(t, []types.Rect{
		{X: 100, Y: 50, Width: 100, Height: 100},
		{X: 240, Y: 20, Width: 80, Height: 40},
	}, got)
}

func TestVisionDetectorError(t *testing.T) {
	fake := &fakeVisionClient{err: errors.New("connection refused")}
	d := NewVisionDetector(fake, DefaultVisionParams())

	_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 10, 10)))
	assert.Error(t, err)

	got, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 0, 0)))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 1, fake.calls)
}

type mockRekognition struct {
	output *rekognition.DetectFacesOutput
	err    error
	input  *rekognition.DetectFacesInput
}

func (m *mockRekognition) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	m.input = params
	return m.output, m.err
}

func TestRekognitionDetector(t *testing.T) {
	mock := &mockRekognition{output: &rekognition.DetectFacesOutput{
		FaceDetails: []rktypes.FaceDetail{
			{
				Confidence:  aws.Float32(99.5),
				BoundingBox: &rktypes.BoundingBox{Left: aws.Float32(0.5), Top: aws.Float32(0.25), Width: aws.Float32(0.25), Height: aws.Float32(0.5)},
			},
			{
				Confidence:  aws.Float32(40),
				BoundingBox: &rktypes.BoundingBox{Left: aws.Float32(0.1), Top: aws.Float32(0.1), Width: aws.Float32(0.2), Height: aws.Float32(0.2)},
			},
			{Confidence: aws.Float32(99)},
		},
	}}
	d := NewRekognitionDetectorWithAPI(mock, DefaultRekognitionParams())

	got, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 200, 100)))
	require.NoError(t, err)

	require.NotNil(t, mock.input)
	assert.NotEmpty(t, mock.input.Image.Bytes)
	assert.Equal(t, []types.Rect{{X: 100, Y: 25, Width: 50, Height: 50}}, got)
}

func TestRekognitionAccessDenied(t *testing.T) {
	mock := &mockRekognition{err: &smithy.GenericAPIError{Code: "AccessDeniedException", Message: "no"}}
	d := NewRekognitionDetectorWithAPI(mock, DefaultRekognitionParams())

	_, err := d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 50, 50)))
	assert.ErrorIs(t, err, ErrAccessDenied)

	mock.err = errors.New("throttled")
	_, err = d.Detect(context.Background(), image.NewGray(image.Rect(0, 0, 50, 50)))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrAccessDenied)
}
