package config

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestMaskSecret(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty stays empty", "", ""},
		{"short secret masks fully", "abc123", maskedValue},
		{"eight chars still masks fully", "12345678", maskedValue},
		{"long secret keeps edges", "my_long_secret_key_123", "my<" + maskedValue + ">23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := maskSecret(tt.in); got != tt.want {
				t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestMarshalJSONMasksSecrets(t *testing.T) {
	cfg := Config{
		ObjectStore: ObjectStoreConfig{
			AccessKey:  "AKIAEXAMPLEKEY123456",
			SecretKey:  "wJalrXUtnFEMI/K7MDENG/bPxRfiCYEXAMPLEKEY",
			MaxBuckets: DefaultMaxBuckets,
		},
		Postgres:  PostgresConfig{URL: "postgres://user:hunter2password@db:5432/quarry"},
		Embedding: EmbeddingConfig{APIKey: "sk-proj-supersecretvalue"},
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	out := string(data)
	for _, secret := range []string{"hunter2password", "supersecretvalue", "wJalrXUtnFEMI"} {
		if strings.Contains(out, secret) {
			t.Errorf("marshaled config leaks %q:\n%s", secret, out)
		}
	}
	if !strings.Contains(out, maskedValue) {
		t.Errorf("marshaled config carries no mask:\n%s", out)
	}

	// String goes through the same masking.
	if s := cfg.String(); strings.Contains(s, "hunter2password") {
		t.Errorf("String() leaks the postgres password:\n%s", s)
	}
}

func TestLogConfigValidate(t *testing.T) {
	if err := (LogConfig{Level: "debug"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := (LogConfig{Level: "loud"}).Validate(); !errors.Is(err, ErrInvalidLogLevel) {
		t.Errorf("Validate() error = %v, want ErrInvalidLogLevel", err)
	}
}

func TestObjectStoreConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ObjectStoreConfig
		wantErr error
	}{
		{"defaults pass", ObjectStoreConfig{MaxBuckets: DefaultMaxBuckets}, nil},
		{"static credentials pass", ObjectStoreConfig{AccessKey: "ak", SecretKey: "sk", MaxBuckets: 1}, nil},
		{"zero max buckets", ObjectStoreConfig{MaxBuckets: 0}, ErrInvalidMaxBuckets},
		{"access key alone", ObjectStoreConfig{AccessKey: "ak", MaxBuckets: 1}, ErrPartialCredentials},
		{"secret key alone", ObjectStoreConfig{SecretKey: "sk", MaxBuckets: 1}, ErrPartialCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPostgresConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr error
	}{
		{"postgres scheme", "postgres://u:p@localhost:5432/db", nil},
		{"postgresql scheme", "postgresql://u:p@localhost:5432/db", nil},
		{"empty", "", ErrMissingPostgresURL},
		{"wrong scheme", "mysql://u:p@localhost:3306/db", ErrInvalidPostgresURL},
		{"not a url", "://nope", ErrInvalidPostgresURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := PostgresConfig{URL: tt.url}.Validate()
			if tt.wantErr == nil && err != nil {
				t.Errorf("Validate() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestEmbeddingConfigValidate(t *testing.T) {
	if err := (EmbeddingConfig{APIKey: "sk-x", RateLimit: 2}).Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := (EmbeddingConfig{}).Validate(); !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Validate() error = %v, want ErrMissingAPIKey", err)
	}
	if err := (EmbeddingConfig{APIKey: "sk-x", RateLimit: -1}).Validate(); !errors.Is(err, ErrInvalidRateLimit) {
		t.Errorf("Validate() error = %v, want ErrInvalidRateLimit", err)
	}
}

func TestOtelConfigValidate(t *testing.T) {
	if err := (OtelConfig{Enabled: true, Endpoint: "localhost:4318"}).Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := (OtelConfig{Enabled: true}).Validate(); !errors.Is(err, ErrMissingOtelEndpoint) {
		t.Errorf("Validate() error = %v, want ErrMissingOtelEndpoint", err)
	}
	if err := (OtelConfig{Enabled: false}).Validate(); err != nil {
		t.Errorf("disabled tracing should not validate the endpoint, got %v", err)
	}
}
