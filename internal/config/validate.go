package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug":   true,
	"info":    true,
	"warn":    true,
	"warning": true,
	"error":   true,
}

var validContentStoreKinds = map[string]bool{
	"":      true, // no content store configured
	"local": true,
	"s3":    true,
	"azure": true,
	"gcs":   true,
	"b2":    true,
}

// Result separates validation problems that make the config unsafe to run
// (Fatals) from ones that were auto-corrected or are merely suspicious
// (Warnings).
type Result struct {
	Fatals   []error
	Warnings []error
}

func (r *Result) HasFatals() bool {
	return r != nil && len(r.Fatals) > 0
}

func (r *Result) fatal(err error) {
	r.Fatals = append(r.Fatals, err)
}

func (r *Result) warn(err error) {
	r.Warnings = append(r.Warnings, err)
}

// ValidateTiered checks the config and separates fatal misconfigurations
// from clamped/corrected warnings. Dangerous zero-values that would panic
// downstream (audit rotation sizes, etc.) are clamped to safe defaults
// rather than treated as fatal.
func (c *Config) ValidateTiered() *Result {
	r := &Result{}

	if c.ListenAddr == "" {
		r.fatal(fmt.Errorf("listen_addr is required"))
	}

	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		r.fatal(fmt.Errorf("tls_cert_file and tls_key_file must both be set or both be empty"))
	}

	if c.MetadataSourcePath == "" {
		r.fatal(fmt.Errorf("metadata_source_path is required"))
	}

	kind := strings.ToLower(c.ContentStore.Kind)
	if !validContentStoreKinds[kind] {
		r.fatal(fmt.Errorf("content_store.kind %q is not one of local, s3, azure, gcs, b2", c.ContentStore.Kind))
	}

	// spec.md §6: content-http-root must be present iff a content source
	// is configured.
	if kind != "" && c.ContentHTTPRoot == "" {
		r.fatal(fmt.Errorf("content_http_root is required when content_store.kind is set"))
	}
	if kind == "" && c.ContentHTTPRoot != "" {
		r.warn(fmt.Errorf("content_http_root is set but content_store.kind is empty; ignoring"))
	}

	switch kind {
	case "local":
		if c.ContentStore.Local.BasePath == "" {
			r.fatal(fmt.Errorf("content_store.local.base_path is required when content_store.kind is \"local\""))
		}
	case "s3":
		if c.ContentStore.S3.Bucket == "" || c.ContentStore.S3.Region == "" {
			r.fatal(fmt.Errorf("content_store.s3.bucket and content_store.s3.region are required when content_store.kind is \"s3\""))
		}
	case "azure":
		if c.ContentStore.Azure.AccountURL == "" || c.ContentStore.Azure.Container == "" {
			r.fatal(fmt.Errorf("content_store.azure.account_url and content_store.azure.container are required when content_store.kind is \"azure\""))
		}
	case "gcs":
		if c.ContentStore.GCS.Bucket == "" {
			r.fatal(fmt.Errorf("content_store.gcs.bucket is required when content_store.kind is \"gcs\""))
		}
	case "b2":
		if c.ContentStore.B2.Bucket == "" {
			r.fatal(fmt.Errorf("content_store.b2.bucket is required when content_store.kind is \"b2\""))
		}
	}

	if c.LogLevel != "" && !validLogLevels[strings.ToLower(c.LogLevel)] {
		r.warn(fmt.Errorf("log_level %q is not valid (use debug, info, warn, error); defaulting to info", c.LogLevel))
		c.LogLevel = "info"
	}

	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		r.warn(fmt.Errorf("log_format %q is not valid (use text or json); defaulting to text", c.LogFormat))
		c.LogFormat = "text"
	}

	// Clamp audit rotation settings to a safe range to prevent a zero or
	// negative threshold from rotating on every write.
	if c.AuditMaxSizeMB < 1 {
		r.warn(fmt.Errorf("audit_max_size_mb %d is below minimum 1, clamping", c.AuditMaxSizeMB))
		c.AuditMaxSizeMB = 1
	} else if c.AuditMaxSizeMB > 10000 {
		r.warn(fmt.Errorf("audit_max_size_mb %d exceeds maximum 10000, clamping", c.AuditMaxSizeMB))
		c.AuditMaxSizeMB = 10000
	}

	if c.AuditMaxBackups < 0 {
		r.warn(fmt.Errorf("audit_max_backups %d is negative, clamping to 0", c.AuditMaxBackups))
		c.AuditMaxBackups = 0
	} else if c.AuditMaxBackups > 100 {
		r.warn(fmt.Errorf("audit_max_backups %d exceeds maximum 100, clamping", c.AuditMaxBackups))
		c.AuditMaxBackups = 100
	}

	for _, err := range r.Fatals {
		slog.Error("config validation", "error", err)
	}
	for _, err := range r.Warnings {
		slog.Warn("config validation", "error", err)
	}

	return r
}

// Validate runs ValidateTiered and returns every fatal and warning as a
// flat list (fatals first). cmd/wsusd calls ValidateTiered directly.
func (c *Config) Validate() []error {
	r := c.ValidateTiered()
	errs := make([]error, 0, len(r.Fatals)+len(r.Warnings))
	errs = append(errs, r.Fatals...)
	errs = append(errs, r.Warnings...)
	return errs
}
