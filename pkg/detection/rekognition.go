package detection

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rktypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/menta2k/portrait-cropper/pkg/processing"
	"github.com/menta2k/portrait-cropper/pkg/types"
)

const (
	errCodeAccessDenied = "AccessDeniedException"

	// maxRekognitionImage is the largest inline image Rekognition accepts (5MB)
	maxRekognitionImage = 5 * 1024 * 1024
)

// RekognitionAPI is the subset of the Rekognition client used here
type RekognitionAPI interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// RekognitionParams configures the AWS Rekognition detector
type RekognitionParams struct {
	Region        string
	MinConfidence float64 // percent, 0-100
	SendSize      int
	SendQuality   int
	MinSize       int
}

// DefaultRekognitionParams returns the defaults for Rekognition detection
func DefaultRekognitionParams() RekognitionParams {
	return RekognitionParams{
		Region:        "us-east-1",
		MinConfidence: 90,
		SendSize:      2048,
		SendQuality:   90,
		MinSize:       20,
	}
}

// RekognitionDetector detects faces with AWS Rekognition DetectFaces
type RekognitionDetector struct {
	api       RekognitionAPI
	processor *processing.Processor
	params    RekognitionParams
}

// NewRekognitionDetector creates a detector using the AWS default credential chain
func NewRekognitionDetector(ctx context.Context, params RekognitionParams) (*RekognitionDetector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(params.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewRekognitionDetectorWithAPI(rekognition.NewFromConfig(awsCfg), params), nil
}

// NewRekognitionDetectorWithAPI creates a detector around an existing client
func NewRekognitionDetectorWithAPI(api RekognitionAPI, params RekognitionParams) *RekognitionDetector {
	return &RekognitionDetector{
		api:       api,
		processor: processing.NewProcessor(),
		params:    params,
	}
}

// Detect uploads the image and converts the returned bounding boxes.
// Returns an empty slice if no faces are detected (not an error).
func (d *RekognitionDetector) Detect(ctx context.Context, gray *image.Gray) ([]types.Rect, error) {
	b := gray.Bounds()
	if b.Empty() {
		return nil, nil
	}

	data, err := d.processor.EncodeForUpload(gray, "jpg", d.params.SendSize, d.params.SendQuality)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	if len(data) > maxRekognitionImage {
		return nil, fmt.Errorf("image too large for rekognition: %d bytes", len(data))
	}

	output, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &rktypes.Image{Bytes: data},
		Attributes: []rktypes.Attribute{rktypes.AttributeDefault},
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == errCodeAccessDenied {
			return nil, fmt.Errorf("rekognition: %w", ErrAccessDenied)
		}
		return nil, fmt.Errorf("rekognition detect faces: %w", err)
	}

	faces := make([]types.Face, 0, len(output.FaceDetails))
	for _, detail := range output.FaceDetails {
		if detail.BoundingBox == nil {
			continue
		}
		conf := float64(aws.ToFloat32(detail.Confidence))
		if conf < d.params.MinConfidence {
			continue
		}
		faces = append(faces, types.Face{
			Confidence: conf / 100,
			Box: types.Box{
				X: float64(aws.ToFloat32(detail.BoundingBox.Left)),
				Y: float64(aws.ToFloat32(detail.BoundingBox.Top)),
				W: float64(aws.ToFloat32(detail.BoundingBox.Width)),
				H: float64(aws.ToFloat32(detail.BoundingBox.Height)),
			},
		})
	}

	return facesToRects(faces, 0, b.Dx(), b.Dy(), d.params.MinSize), nil
}
