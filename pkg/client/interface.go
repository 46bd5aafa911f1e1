package client

import (
	"context"

	"github.com/menta2k/portrait-cropper/pkg/types"
)

// VisionClient asks a multimodal model where the faces in an image are
type VisionClient interface {
	LocateFaces(ctx context.Context, model, prompt, imgB64 string) (*types.FaceLocations, error)
}
