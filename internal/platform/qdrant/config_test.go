package qdrant

import (
	"errors"
	"testing"
)

func TestValidateConfigValid(t *testing.T) {
	err := ValidateConfig(Config{
		URL:        "http://qdrant:6333",
		Collection: "course_content",
		VectorDim:  1536,
	})
	if err != nil {
		t.Fatalf("ValidateConfig: %v", err)
	}
}

func TestValidateConfigErrors(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{
			name: "missing url",
			cfg:  Config{Collection: "course_content", VectorDim: 1536},
			code: ConfigErrorMissingURL,
		},
		{
			name: "invalid url",
			cfg:  Config{URL: "qdrant:6333", Collection: "course_content", VectorDim: 1536},
			code: ConfigErrorInvalidURL,
		},
		{
			name: "missing collection",
			cfg:  Config{URL: "http://qdrant:6333", VectorDim: 1536},
			code: ConfigErrorMissingCollection,
		},
		{
			name: "missing vector dim",
			cfg:  Config{URL: "http://qdrant:6333", Collection: "course_content"},
			code: ConfigErrorMissingVectorDim,
		},
		{
			name: "invalid vector dim",
			cfg:  Config{URL: "http://qdrant:6333", Collection: "course_content", VectorDim: -3},
			code: ConfigErrorInvalidVectorDim,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateConfig(tc.cfg)
			if err == nil {
				t.Fatalf("ValidateConfig: expected error, got nil")
			}
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got=%T", err)
			}
			if cfgErr.Code != tc.code {
				t.Fatalf("code: want=%q got=%q", tc.code, cfgErr.Code)
			}
		})
	}
}
