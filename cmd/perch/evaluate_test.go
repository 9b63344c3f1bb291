package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/perch/internal/api"
	"github.com/opensource-finance/perch/internal/domain"
)

func runEvaluate(t *testing.T, stdin string, args ...string) (api.EvaluateResponse, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := evaluateCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))

	var resp api.EvaluateResponse
	if err := cmd.Execute(); err != nil {
		return resp, err
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	return resp, nil
}

func TestEvaluateCommand(t *testing.T) {
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(`{
  "appointment": {"clientId": "c1", "servicePrice": "60.00", "startTime": "18:30"},
  "record": {"clientId": "c1", "totalAppointments": 5, "totalCancellations": 1, "consecutiveCancellations": 1}
}`), 0o600))

	t.Run("FromFile", func(t *testing.T) {
		resp, err := runEvaluate(t, "", "--file", reqPath)
		require.NoError(t, err)

		assert.Equal(t, 50, resp.Decision.Percentage)
		assert.Equal(t, "30.00", resp.DepositAmount)
	})

	t.Run("FromStdin", func(t *testing.T) {
		resp, err := runEvaluate(t, `{"appointment":{"clientId":"new","servicePrice":10}}`, "--file", "-")
		require.NoError(t, err)

		assert.Equal(t, domain.ReasonNewClient, resp.Decision.ReasonCode)
		assert.Equal(t, "2.00", resp.DepositAmount)
	})

	t.Run("WithRulesFile", func(t *testing.T) {
		rulesPath := filepath.Join(dir, "rules.yaml")
		require.NoError(t, os.WriteFile(rulesPath, []byte(`rules:
  - id: late-evening
    expression: 'start_time >= "18:00"'
    floor: 65
    reason: WEEKEND_PREMIUM
    enabled: true
`), 0o600))

		resp, err := runEvaluate(t, "", "--file", reqPath, "--rules", rulesPath)
		require.NoError(t, err)

		assert.Equal(t, 65, resp.Decision.Percentage)
		assert.Equal(t, domain.ReasonWeekendPremium, resp.Decision.ReasonCode)
		assert.Equal(t, "39.00", resp.DepositAmount)
	})

	t.Run("InvalidRecord", func(t *testing.T) {
		_, err := runEvaluate(t, `{"appointment":{"clientId":"c1","servicePrice":10},"record":{"totalAppointments":-1}}`, "--file", "-")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("RecordForAnotherClient", func(t *testing.T) {
		_, err := runEvaluate(t, `{"appointment":{"clientId":"c1","servicePrice":10},"record":{"clientId":"c2"}}`, "--file", "-")
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("MissingFileFlag", func(t *testing.T) {
		_, err := runEvaluate(t, "")
		assert.Error(t, err)
	})
}
