package detection

// HaarParams are the OpenCV cascade parameters. They are fixed per run and
// never re-tuned per image.
type HaarParams struct {
	ScaleFactor  float64
	MinNeighbors int
	MinSize      int
}

// DefaultHaarParams returns the settings the card photos were tuned with
func DefaultHaarParams() HaarParams {
	return HaarParams{
		ScaleFactor:  1.01,
		MinNeighbors: 50,
		MinSize:      100,
	}
}
