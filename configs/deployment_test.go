package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/magiconair/properties/assert"
)

func TestLoadDeployment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.json")
	err := os.WriteFile(path, []byte(`{
		"coordinator": "127.0.0.1:9001",
		"processes": 5,
		"faulty": 2,
		"protocol": "zheng"
	}`), 0644)
	CheckError(err)

	oldLocation := ConfigFileLocation
	oldAddress := CoordinatorServerAddress
	oldN, oldF, oldProto := NumberOfProcesses, MaxFaulty, SelectedProtocol
	defer func() {
		ConfigFileLocation = oldLocation
		CoordinatorServerAddress = oldAddress
		NumberOfProcesses, MaxFaulty, SelectedProtocol = oldN, oldF, oldProto
	}()

	ConfigFileLocation = path
	dep := LoadDeployment()
	assert.Equal(t, "127.0.0.1:9001", dep.Coordinator)
	assert.Equal(t, "127.0.0.1:9001", CoordinatorServerAddress)
	assert.Equal(t, 5, NumberOfProcesses)
	assert.Equal(t, 2, MaxFaulty)
	assert.Equal(t, "zheng", SelectedProtocol)
}

func TestLoadDeploymentRejectsTooManyFaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	err := os.WriteFile(path, []byte(`{"processes": 4, "faulty": 2}`), 0644)
	CheckError(err)

	oldLocation := ConfigFileLocation
	oldN, oldF := NumberOfProcesses, MaxFaulty
	defer func() {
		ConfigFileLocation = oldLocation
		NumberOfProcesses, MaxFaulty = oldN, oldF
	}()

	ConfigFileLocation = path
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected n > 2f to be rejected")
		}
	}()
	LoadDeployment()
}
