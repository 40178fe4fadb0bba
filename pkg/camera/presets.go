package camera

// Preset names for common configurations
const (
	PresetDefault    = "default"
	PresetLegacy     = "legacy"
	Preset720p       = "720p"
	Preset1080p      = "1080p"
	Preset4K         = "4k"
	PresetLowLatency = "lowlatency"
	PresetScan       = "scan"
)

// Presets returns all available preset configurations.
func Presets() map[string]Config {
	return map[string]Config{
		PresetDefault:    DefaultConfig(),
		PresetLegacy:     LegacyConfig(),
		Preset720p:       HD720Config(),
		Preset1080p:      HD1080Config(),
		Preset4K:         UHD4KConfig(),
		PresetLowLatency: LowLatencyConfig(),
		PresetScan:       ScanConfig(),
	}
}

// PresetNames returns the list of available preset names.
func PresetNames() []string {
	return []string{
		PresetDefault,
		PresetLegacy,
		Preset720p,
		Preset1080p,
		Preset4K,
		PresetLowLatency,
		PresetScan,
	}
}

// GetPreset returns a preset config by name, or nil if not found.
func GetPreset(name string) *Config {
	if cfg, ok := Presets()[name]; ok {
		return &cfg
	}
	return nil
}

// LegacyConfig returns 640x480, which every webcam supports.
func LegacyConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 640
	cfg.Height = 480
	return cfg
}

// HD720Config returns 720p HD configuration.
func HD720Config() Config {
	return DefaultConfig()
}

// HD1080Config returns 1080p Full HD configuration.
func HD1080Config() Config {
	cfg := DefaultConfig()
	cfg.Width = 1920
	cfg.Height = 1080
	return cfg
}

// UHD4KConfig returns 4K UHD configuration.
// Photos only; recognition at this size is slow.
func UHD4KConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 3840
	cfg.Height = 2160
	cfg.Framerate = 15
	cfg.PhotoFormat = "jpeg"
	return cfg
}

// LowLatencyConfig trades resolution for frame rate.
func LowLatencyConfig() Config {
	cfg := LegacyConfig()
	cfg.Framerate = 60
	return cfg
}

// ScanConfig is tuned for QR recognition: small frames decode fast and
// 15 fps is plenty for a code held in front of the camera.
func ScanConfig() Config {
	cfg := LegacyConfig()
	cfg.Framerate = 15
	cfg.PhotoFormat = "jpeg"
	cfg.Quality = 80
	return cfg
}
