// Package core defines the shared language of the leapforge system.
//
// This package contains:
//   - Error kinds (Configuration, UnsupportedFeature, NotImplementedForBackend, ...)
//   - Quoting and inclusion policies for relation components
//   - Identifier rules per warehouse dialect
//   - Column constraints shared by nodes and adapters
//
// The Golden Rule: pkg/core imports ONLY stdlib and github.com/pkg/errors.
// All other packages depend on core, not the reverse.
package core
