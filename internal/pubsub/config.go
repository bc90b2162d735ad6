package pubsub

import (
	"os"
	"strconv"
)

// LoadTracingConfigFromEnv reads the PUBSUB_TRACING_* variables on top of
// DefaultTracingConfig.
func LoadTracingConfigFromEnv() TracingConfig {
	return tracingConfigFrom(os.LookupEnv)
}

func tracingConfigFrom(lookup func(string) (string, bool)) TracingConfig {
	cfg := DefaultTracingConfig()
	if v, ok := lookup("PUBSUB_TRACING_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			cfg.Enabled = enabled
		}
	}
	if v, ok := lookup("PUBSUB_TRACING_SERVICE_NAME"); ok && v != "" {
		cfg.ServiceName = v
	}
	if v, ok := lookup("PUBSUB_TRACING_ZIPKIN_URL"); ok && v != "" {
		cfg.ZipkinURL = v
	}
	if v, ok := lookup("PUBSUB_TRACING_SAMPLE_RATIO"); ok {
		if ratio, err := strconv.ParseFloat(v, 64); err == nil && ratio >= 0 && ratio <= 1 {
			cfg.SampleRatio = ratio
		}
	}
	return cfg
}
