// Package validation validates configuration and request values.
//
// Struct tag validation uses go-playground/validator with field names taken
// from mapstructure tags, so messages match the keys in config files.
// The programmatic Validator collects errors for checks that tags cannot
// express.
//
//	type ProxyConfig struct {
//	    Address string `mapstructure:"address" validate:"required"`
//	}
//	err := validation.Validate(cfg)
//
//	v := validation.New()
//	v.HTTPURL("url", req.URL)
//	err := v.Validate()
package validation
