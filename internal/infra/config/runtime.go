// Where: internal/infra/config/runtime.go
// What: Handler runtime configuration read from the Lambda environment.
// Why: The bucket and ledger backend are deployment inputs, never literals in the handler.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/poruru-code/invoice-autorecord/internal/domain/stack"
	"github.com/poruru-code/invoice-autorecord/internal/meta"
)

// Environment variable names read by the handler binary.
const (
	EnvLedgerBackend = "LEDGER_BACKEND"
	EnvLedgerTable   = "LEDGER_TABLE"
	EnvLedgerBucket  = "LEDGER_BUCKET"
	EnvLedgerKey     = "LEDGER_KEY"
	EnvProcessorName = "PROCESSOR_NAME"
	EnvTagProcessed  = "TAG_PROCESSED"
	EnvSuffix        = "OBJECT_SUFFIX"
	EnvPrefix        = "OBJECT_PREFIX"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
)

// Runtime is everything the handler binary needs besides AWS clients.
type Runtime struct {
	LedgerBackend string
	LedgerTable   string
	LedgerBucket  string
	LedgerKey     string
	Processor     string
	TagProcessed  bool
	Prefix        string
	Suffix        string
	LogLevel      string
	LogText       bool
}

// LoadRuntime reads Runtime from the process environment.
func LoadRuntime() (Runtime, error) {
	return RuntimeFromLookup(os.LookupEnv)
}

// RuntimeFromLookup reads Runtime through lookup, applying defaults.
func RuntimeFromLookup(lookup func(string) (string, bool)) (Runtime, error) {
	get := func(key, fallback string) string {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
		return fallback
	}
	rt := Runtime{
		LedgerBackend: strings.ToLower(get(EnvLedgerBackend, stack.LedgerBackendS3CSV)),
		LedgerTable:   get(EnvLedgerTable, meta.DefaultLedgerTable),
		LedgerBucket:  get(EnvLedgerBucket, ""),
		LedgerKey:     get(EnvLedgerKey, meta.LedgerCSVKey),
		Processor:     get(EnvProcessorName, meta.DefaultProcessor),
		Prefix:        get(EnvPrefix, ""),
		Suffix:        get(EnvSuffix, meta.DefaultSuffix),
		LogLevel:      get(EnvLogLevel, "info"),
		LogText:       strings.EqualFold(get(EnvLogFormat, "json"), "text"),
	}
	if raw := get(EnvTagProcessed, ""); raw != "" {
		tag, err := strconv.ParseBool(raw)
		if err != nil {
			return Runtime{}, fmt.Errorf("%s: %w", EnvTagProcessed, err)
		}
		rt.TagProcessed = tag
	}
	switch rt.LedgerBackend {
	case stack.LedgerBackendDynamoDB:
	case stack.LedgerBackendS3CSV:
		if rt.LedgerBucket == "" {
			return Runtime{}, fmt.Errorf("%s is required for the %s backend", EnvLedgerBucket, rt.LedgerBackend)
		}
	default:
		return Runtime{}, fmt.Errorf("%s: unsupported backend %q", EnvLedgerBackend, rt.LedgerBackend)
	}
	return rt, nil
}

// RuntimeEnvironment renders the handler environment for a descriptor. The
// descriptor's own function.environment entries win over derived values.
func RuntimeEnvironment(st stack.Stack) map[string]string {
	st = st.Normalize()
	env := map[string]string{
		EnvLedgerBackend: st.Ledger.Backend,
		EnvProcessorName: st.Ledger.Processor,
		EnvSuffix:        st.Subscription.Suffix,
	}
	switch st.Ledger.Backend {
	case stack.LedgerBackendDynamoDB:
		env[EnvLedgerTable] = st.Ledger.Table
	case stack.LedgerBackendS3CSV:
		env[EnvLedgerBucket] = st.Bucket.Name
		env[EnvLedgerKey] = st.Ledger.Key
	}
	if st.Subscription.Prefix != "" {
		env[EnvPrefix] = st.Subscription.Prefix
	}
	if st.Ledger.TagProcessed {
		env[EnvTagProcessed] = "true"
	}
	for key, value := range st.Function.Environment {
		env[key] = value
	}
	return env
}
