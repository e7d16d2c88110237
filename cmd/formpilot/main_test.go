package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)
	return rootCmd.Execute()
}

func TestValidateCommandValidRecord(t *testing.T) {
	record := `{
		"passportNumber": "32018323",
		"fullPassportName": "JANE EXAMPLE",
		"nationality": "AU",
		"dateOfBirth": "1990-04-12",
		"gender": "FEMALE",
		"passportExpiryDate": "2030-01-01",
		"mobileNumber": "+61400000000",
		"email": "jane@example.com",
		"arrivalDate": "2026-09-15",
		"modeOfTransport": "AIR",
		"purposeOfVisit": "HOLIDAY",
		"typeOfResidence": "HOTEL",
		"addressInIndonesia": "JL. SUNSET ROAD 1, KUTA",
		"portOfArrival": "DPS",
		"flightName": "GARUDA INDONESIA",
		"flightNumber": "GA123",
		"hasGoodsToDeclarate": false,
		"hasTechnologyDevices": false,
		"consentAccurate": true,
		"countriesVisited": ["AUSTRALIA"],
		"familyMembers": []
	}`
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(record), 0o644))

	assert.NoError(t, runCommand(t, "validate", path))
}

func TestValidateCommandInvalidRecordReturnsError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"passportNumber":""}`), 0o644))

	// The failure surfaces as an error so main can flush logs before
	// exiting; the command must not terminate the process itself.
	err := runCommand(t, "validate", path)
	assert.ErrorIs(t, err, errRunFailed)
}

func TestValidateCommandUnreadableFile(t *testing.T) {
	err := runCommand(t, "validate", filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, errRunFailed)
}
