// Package cmd provides CLI commands for the stargrid application.
// This file contains tests for the survey command.
package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adalundhe/stargrid/core/edsm"
	"github.com/adalundhe/stargrid/core/survey"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Survey Command Tests
// =============================================================================

func TestSurveyCmd_Definition(t *testing.T) {
	t.Run("command is defined", func(t *testing.T) {
		assert.NotNil(t, surveyCmd)
		assert.Equal(t, "survey", surveyCmd.Use)
		assert.Equal(t, "extract [files...]", surveyExtractCmd.Use)
	})

	t.Run("extract command has flags", func(t *testing.T) {
		flags := surveyExtractCmd.Flags()

		follow := flags.Lookup("follow")
		require.NotNil(t, follow)
		assert.Equal(t, "", follow.DefValue)

		cacheDir := flags.Lookup("cache-dir")
		require.NotNil(t, cacheDir)
		assert.Equal(t, "", cacheDir.DefValue)

		minBodies := flags.Lookup("min-bodies")
		require.NotNil(t, minBodies)
		assert.Equal(t, "0", minBodies.DefValue)

		jsonFlag := flags.Lookup("json")
		require.NotNil(t, jsonFlag)
		assert.Equal(t, "false", jsonFlag.DefValue)
	})

	t.Run("json cannot be combined with follow", func(t *testing.T) {
		defer func() {
			surveyFollowDir = ""
			surveyJSON = false
		}()
		surveyFollowDir = t.TempDir()
		surveyJSON = true

		err := runSurveyExtract(surveyExtractCmd, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--json cannot be combined with --follow")
	})
}

// =============================================================================
// Name Gathering Tests
// =============================================================================

func TestGatherNames(t *testing.T) {
	t.Run("from files", func(t *testing.T) {
		dir := t.TempDir()
		first := filepath.Join(dir, "Journal.2026-08-01T120000.log")
		second := filepath.Join(dir, "Journal.2026-08-02T090000.log")
		require.NoError(t, os.WriteFile(first, []byte("System: Sol (ID64: 10477373803)\nSystem: HIP 23759 (ID64: 560233253330)\n"), 0o644))
		require.NoError(t, os.WriteFile(second, []byte("System: Sol (ID64: 10477373803)\nSystem: Wolf 359 (ID64: 2)\n"), 0o644))

		names, err := gatherNames(&cobra.Command{}, []string{first, second})

		require.NoError(t, err)
		assert.Equal(t, []string{"Sol", "HIP 23759", "Wolf 359"}, names)
	})

	t.Run("from stdin", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetIn(strings.NewReader("noise\nSystem: Sol (ID64: 10477373803)\n"))

		names, err := gatherNames(cmd, nil)

		require.NoError(t, err)
		assert.Equal(t, []string{"Sol"}, names)
	})

	t.Run("missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "absent.log")

		_, err := gatherNames(&cobra.Command{}, []string{path})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "absent.log")
	})
}

// =============================================================================
// Follow Mode Output Tests
// =============================================================================

// stubEnricher serves canned enrichment results.
type stubEnricher struct {
	sys *edsm.System
	err error
}

func (s *stubEnricher) System(ctx context.Context, systemName string) (*edsm.System, error) {
	return s.sys, s.err
}

func TestSurveyOne(t *testing.T) {
	t.Run("interesting system", func(t *testing.T) {
		surveyor := survey.NewSurveyor(&stubEnricher{
			sys: &edsm.System{
				BodiesResponse: edsm.BodiesResponse{
					Name:      "HIP 23759",
					BodyCount: 12,
					Bodies: []edsm.Body{
						{Type: "Star", IsMainStar: true, SubType: "K (Yellow-Orange) Star"},
						{Type: "Planet", IsLandable: true},
						{Type: "Planet", AtmosphereType: "Thin Argon"},
					},
				},
			},
		})

		var buf bytes.Buffer
		surveyOne(context.Background(), &buf, surveyor, "HIP 23759")

		output := buf.String()
		assert.Contains(t, output, "HIP 23759")
		assert.Contains(t, output, "12 bodies, 1 landable, 1 with atmosphere")
	})

	t.Run("unknown system", func(t *testing.T) {
		surveyor := survey.NewSurveyor(&stubEnricher{err: edsm.ErrSystemNotKnown})

		var buf bytes.Buffer
		surveyOne(context.Background(), &buf, surveyor, "Nonsense Prime")

		assert.Contains(t, buf.String(), "Nonsense Prime: not known to EDSM")
	})

	t.Run("fetch failure", func(t *testing.T) {
		surveyor := survey.NewSurveyor(&stubEnricher{err: errors.New("edsm unreachable")})

		var buf bytes.Buffer
		surveyOne(context.Background(), &buf, surveyor, "Sol")

		assert.Contains(t, buf.String(), "edsm unreachable")
	})

	t.Run("uninteresting system", func(t *testing.T) {
		surveyor := survey.NewSurveyor(&stubEnricher{
			sys: &edsm.System{
				BodiesResponse: edsm.BodiesResponse{
					Name:      "Dull 1",
					BodyCount: 1,
					Bodies:    []edsm.Body{{Type: "Star", IsMainStar: true}},
				},
			},
		})

		var buf bytes.Buffer
		surveyOne(context.Background(), &buf, surveyor, "Dull 1")

		assert.Contains(t, buf.String(), "Dull 1: nothing of interest")
	})
}
