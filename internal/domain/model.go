package domain

// GenerationModel describes the capabilities of one video generation model
// as advertised by the registry. Read-only; queried before generation.
type GenerationModel struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Provider     string         `json:"provider"`
	Modes        []GenerationMode `json:"modes"`
	AspectRatios []string       `json:"aspect_ratios"`
	DurationsSec []int          `json:"durations_sec"`
}

// SupportsMode reports whether the model advertises the mode.
func (m *GenerationModel) SupportsMode(mode GenerationMode) bool {
	for _, candidate := range m.Modes {
		if candidate == mode {
			return true
		}
	}
	return false
}

// SupportsDuration reports whether the model advertises the duration.
func (m *GenerationModel) SupportsDuration(seconds int) bool {
	for _, candidate := range m.DurationsSec {
		if candidate == seconds {
			return true
		}
	}
	return false
}

// SupportsAspectRatio reports whether the model advertises the aspect ratio.
func (m *GenerationModel) SupportsAspectRatio(ratio string) bool {
	for _, candidate := range m.AspectRatios {
		if candidate == ratio {
			return true
		}
	}
	return false
}

// UpscalerModel describes one enhancement (upscaling) model.
type UpscalerModel struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Provider           string   `json:"provider"`
	ScaleFactors       []int    `json:"scale_factors"`
	MaxInputResolution string   `json:"max_input_resolution"`
	OutputFormats      []string `json:"output_formats"`
}

// SupportsScaleFactor reports whether the upscaler advertises the factor.
func (m *UpscalerModel) SupportsScaleFactor(factor int) bool {
	for _, candidate := range m.ScaleFactors {
		if candidate == factor {
			return true
		}
	}
	return false
}
