// SPDX-License-Identifier: MIT
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/katalvlaran/covkernel/config"
	"github.com/katalvlaran/covkernel/hyper"
	"github.com/katalvlaran/covkernel/kernel"
	"github.com/stretchr/testify/require"
)

const fingerprintRun = `
kernel: fingerprint
workers: 4
gradient: true
params: {weight: 1.0, l: 0.8, Delta: 0.2}
structures:
  - name: a
    positions: [[0, 0, 0], [0.9, 0.1, -0.2]]
  - name: b
    positions: [[0.2, -0.1, 0.1], [1.0, 0.3, -0.1]]
logging: {level: debug, format: console}
`

func TestParseFingerprint(t *testing.T) {
	t.Parallel()

	r, err := config.Parse([]byte(fingerprintRun))
	require.NoError(t, err)
	require.Equal(t, 4, r.Workers)
	require.True(t, r.Gradient)
	require.Equal(t, hyper.Params{hyper.Weight: 1, hyper.LengthScale: 0.8, hyper.Delta: 0.2}, r.Params)

	v, err := r.Variant()
	require.NoError(t, err)
	require.Equal(t, kernel.VariantFingerprint, v)

	X, err := r.Descriptors()
	require.NoError(t, err)
	require.Len(t, X, 2)
	require.Len(t, X[1].Atoms(), 2)
	require.Equal(t, [3]float64{1.0, 0.3, -0.1}, X[1].Atoms()[1].Position)
}

func TestParseDefaults(t *testing.T) {
	t.Parallel()

	r, err := config.Parse([]byte("params: {weight: 2, l: 1}\npoints: [[0, 1], [2, 3]]\n"))
	require.NoError(t, err)
	require.Equal(t, "se", r.Kernel)
	require.Equal(t, 1, r.Workers)
	require.Equal(t, "info", r.Logging.Level)
	require.Empty(t, r.KernelOptions())
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "params: {weight: 1, l: 1}\npoints: [[0]]\ncolour: red\n"},
		{"unknown kernel", "kernel: matern\nparams: {weight: 1, l: 1}\npoints: [[0]]\n"},
		{"no workers", "workers: 0\nparams: {weight: 1, l: 1}\npoints: [[0]]\n"},
		{"missing l", "params: {weight: 1}\npoints: [[0]]\n"},
		{"zero weight", "params: {weight: 0, l: 1}\npoints: [[0]]\n"},
		{"no points", "params: {weight: 1, l: 1}\n"},
		{"ragged points", "params: {weight: 1, l: 1}\npoints: [[0, 1], [2]]\n"},
		{"dimension mismatch", "kernel: se-grad\ndimension: 3\nparams: {weight: 1, l: 1}\npoints: [[0, 1]]\n"},
		{"no structures", "kernel: fingerprint\nparams: {weight: 1, l: 1}\n"},
		{"atom count", "kernel: fingerprint-energy\nparams: {weight: 1, l: 1}\nstructures:\n  - positions: [[0, 0, 0]]\n  - positions: [[0, 0, 0], [1, 0, 0]]\n"},
		{"not 3-D", "kernel: fingerprint\nparams: {weight: 1, l: 1}\nstructures:\n  - positions: [[0, 0]]\n"},
		{"not yaml", "kernel: [\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := config.Parse([]byte(tc.yaml))
			require.ErrorIs(t, err, config.ErrInvalidRun)
		})
	}
}

func TestKernelOptions(t *testing.T) {
	t.Parallel()

	r, err := config.Parse([]byte("kernel: se-grad\ndimension: 2\nfinite_check: true\nparams: {weight: 1, l: 1}\npoints: [[0, 1]]\n"))
	require.NoError(t, err)
	require.Len(t, r.KernelOptions(), 2)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(fingerprintRun), 0o600))
	r, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "fingerprint", r.Kernel)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	for _, l := range []config.Logging{
		{},
		{Level: "debug", Format: "console"},
		{Level: "warn", Format: "json"},
	} {
		logger, err := config.NewLogger(l)
		require.NoError(t, err)
		require.NotNil(t, logger)
	}

	_, err := config.NewLogger(config.Logging{Level: "loud"})
	require.ErrorIs(t, err, config.ErrInvalidRun)
	_, err = config.NewLogger(config.Logging{Format: "xml"})
	require.ErrorIs(t, err, config.ErrInvalidRun)
}
