package jt9decode

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPflag(args []string) {
	os.Args = args
	pflag.CommandLine = pflag.NewFlagSet(os.Args[0], pflag.ExitOnError)
}

func runDecodeMain(args ...string) (int, string, string) {
	setupPflag(append([]string{"jt9decode"}, args...))

	var stdout, stderr bytes.Buffer
	var code = decodeMain(strings.NewReader(""), &stdout, &stderr)

	return code, stdout.String(), stderr.String()
}

func Test_DecodeMainHelp(t *testing.T) {
	var code, stdout, stderr = runDecodeMain("--help")

	assert.Equal(t, 0, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "Usage: jt9decode -j <jt9_path>")
	assert.Contains(t, stderr, "--mode")
}

func Test_DecodeMainVersion(t *testing.T) {
	var code, stdout, _ = runDecodeMain("--version")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "jt9decode - Version")
	assert.NotContains(t, stdout, "\nGo ")

	code, stdout, _ = runDecodeMain("--version", "-v")

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "\nGo ")
}

func Test_DecodeMainUsageErrors(t *testing.T) {
	var config = filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(config, nil, 0644))

	var tests = []struct {
		name   string
		args   []string
		expect string
	}{
		{"no engine", []string{"-c", config, "x.wav"}, "jt9 path not specified"},
		{"no wav", []string{"-c", config, "-j", "/bin/true"}, "No WAV file specified"},
		{"two wavs", []string{"-c", config, "-j", "/bin/true", "a.wav", "b.wav"}, "Only one WAV file"},
		{"stream and wav", []string{"-c", config, "-j", "/bin/true", "-s", "a.wav"}, "Cannot specify both stream mode and WAV file"},
		{"stream and device", []string{"-c", config, "-j", "/bin/true", "-s", "--audio-device", "soundcard"}, "--audio-device"},
		{"bad mode", []string{"-c", config, "-j", "/bin/true", "-m", "JT65", "a.wav"}, "unknown mode"},
		{"bad depth", []string{"-c", config, "-j", "/bin/true", "-d", "7", "a.wav"}, "depth"},
		{"bad device", []string{"-c", config, "-j", "/bin/true", "--audio-device", "hw:1", "--shm", "heap"}, "Unknown audio device"},
		{"missing config", []string{"-c", filepath.Join(t.TempDir(), "none.yaml")}, "config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var code, stdout, stderr = runDecodeMain(tt.args...)

			assert.Equal(t, 1, code)
			assert.Empty(t, stdout)
			assert.Contains(t, stderr, tt.expect)
		})
	}
}

func Test_DecodeMainMissingEngine(t *testing.T) {
	var config = filepath.Join(t.TempDir(), "jt9decode.yaml")
	require.NoError(t, os.WriteFile(config, []byte("shm_backend: heap\n"), 0644))

	var wav = filepath.Join(t.TempDir(), "ft2.wav")
	require.NoError(t, os.WriteFile(wav, makeWav(1, SampleRate, 16, ramp(1000)), 0644))

	var code, stdout, stderr = runDecodeMain("-c", config, "-j", filepath.Join(t.TempDir(), "jt9"), wav)

	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "jt9 binary not found")
}

func Test_DecodeMainFile(t *testing.T) {
	// Prints a decode whatever it is given, then never finishes, so this
	// also goes through the give up and kill paths.
	var engine = writeScript(t, `echo "jt9 starting $*"
echo "001815   4 -0.2 1470 ~  CQ EA8TN IL18"
exec sleep 30
`)

	var dir = t.TempDir()

	var config = filepath.Join(dir, "jt9decode.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`
shm_backend: heap
poll_interval: 10ms
poll_budget: 300ms
drain_wait: 10ms
grace: 200ms
mygrid: FN20
decode_log: `+filepath.Join(dir, "decodes.csv")+`
`), 0644))

	var wav = filepath.Join(dir, "ft2.wav")
	require.NoError(t, os.WriteFile(wav, makeWav(1, SampleRate, 16, ramp(ModeFT2.WindowSamples())), 0644))

	var code, stdout, stderr = runDecodeMain("-c", config, "-j", engine, "--log-level", "debug", wav)

	assert.Equal(t, 0, code, stderr)
	assert.Equal(t, "001815   4 -0.2 1470 ~  CQ EA8TN IL18\n", stdout)

	assert.Contains(t, stderr, "jt9 starting -s JT9DECODE")
	assert.Contains(t, stderr, "Triggering decode")
	assert.Contains(t, stderr, "killing")

	var records = readCSV(t, filepath.Join(dir, "decodes.csv"))
	require.Len(t, records, 2)
	assert.Equal(t, "IL18", records[1][8])
	assert.Equal(t, "5381", records[1][9])
}
