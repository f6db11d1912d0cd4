package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var c Config
	ApplyDefaults(&c)

	assert.Equal(t, ":8080", c.Server.Port)
	assert.Equal(t, 256*1024, c.Buffer.ByteCapacity)
	assert.Equal(t, 128*1024, c.Buffer.SampleCapacity)
	assert.Equal(t, 0, c.Buffer.MinSize)
	assert.Equal(t, "null", c.Source.Type)
	assert.Equal(t, 115200, c.Source.BaudRate)
	assert.Equal(t, 10000, c.Audio.SampleRate)
	assert.Equal(t, 16, c.Audio.BitsPerSample)
	assert.Equal(t, "pcm16le", c.Audio.Encoding)
	assert.Equal(t, "recordings", c.Recording.Directory)
	assert.Equal(t, 4, c.Webhook.Workers)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	c := Config{
		Buffer: BufferConfig{ByteCapacity: 10, MinSize: -1},
		Source: SourceConfig{Type: "serial", Port: "/dev/ttyACM0"},
		Audio:  AudioConfig{SampleRate: 44100},
	}
	ApplyDefaults(&c)

	assert.Equal(t, 10, c.Buffer.ByteCapacity)
	assert.Equal(t, -1, c.Buffer.MinSize)
	assert.Equal(t, "serial", c.Source.Type)
	assert.Equal(t, "/dev/ttyACM0", c.Source.Port)
	assert.Equal(t, 44100, c.Audio.SampleRate)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
buffer:
  byte_capacity: 4096
  min_size: 32
source:
  type: serial
  port: /dev/ttyUSB0
recording:
  write_wav: true
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		viper.Reset()
		AppConfig = Config{}
	})

	LoadConfig()

	assert.Equal(t, 4096, AppConfig.Buffer.ByteCapacity)
	assert.Equal(t, 32, AppConfig.Buffer.MinSize)
	assert.Equal(t, "serial", AppConfig.Source.Type)
	assert.Equal(t, "/dev/ttyUSB0", AppConfig.Source.Port)
	assert.True(t, AppConfig.Recording.WriteWAV)
	assert.Equal(t, 128*1024, AppConfig.Buffer.SampleCapacity)
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Second))
	assert.Equal(t, time.Second, Duration("", time.Second))
	assert.Equal(t, time.Second, Duration("soon", time.Second))
	assert.Equal(t, time.Second, Duration("-2s", time.Second))
}
