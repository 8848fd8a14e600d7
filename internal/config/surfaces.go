package config

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
)

// MPRISSettings configures the desktop media player surface.
type MPRISSettings struct {
	Identity string `mapstructure:"identity" default:"Rhino" validate:"required"`
	BusName  string `mapstructure:"bus_name" validate:"omitempty,startswith=org.mpris.MediaPlayer2."`
}

// RemoteSettings configures the network control surface.
type RemoteSettings struct {
	Addr           string   `mapstructure:"addr" default:"127.0.0.1:7700" validate:"hostname_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins" default:"[\"http://localhost*\",\"http://127.0.0.1*\"]"`
}

// MPRIS returns the settings of the enabled mpris surface.
func (c *Config) MPRIS() (MPRISSettings, bool, error) {
	if !c.IsSurfaceEnabled(SurfaceMPRIS) {
		return MPRISSettings{}, false, nil
	}
	s, err := decodeMPRIS(c.surfaceSettings(SurfaceMPRIS))
	return s, err == nil, err
}

// Remote returns the settings of the enabled remote surface.
func (c *Config) Remote() (RemoteSettings, bool, error) {
	if !c.IsSurfaceEnabled(SurfaceRemote) {
		return RemoteSettings{}, false, nil
	}
	s, err := decodeRemote(c.surfaceSettings(SurfaceRemote))
	return s, err == nil, err
}

func decodeMPRIS(settings map[string]any) (MPRISSettings, error) {
	var s MPRISSettings
	return s, decodeSettings(settings, &s)
}

func decodeRemote(settings map[string]any) (RemoteSettings, error) {
	var s RemoteSettings
	return s, decodeSettings(settings, &s)
}

// decodeSettings decodes a surface settings map into out, then applies
// defaults and validation.
func decodeSettings(settings map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:      out,
		TagName:     "mapstructure",
		ErrorUnused: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create decoder")
	}
	if err := decoder.Decode(settings); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}

	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}

	validate := validator.New()
	if err := validate.Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
