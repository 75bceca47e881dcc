package logger

import (
	"path/filepath"
	"testing"
	"time"

	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnostic-updater/pkg/config"
)

func TestRetentionOptions(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.ZapLogConfig
		want interface{}
	}{
		{"max backup wins", config.ZapLogConfig{MaxBackup: 5, MaxAge: 7}, uint(5)},
		{"max age", config.ZapLogConfig{MaxAge: 3}, 3 * 24 * time.Hour},
		{"fallback age", config.ZapLogConfig{}, 7 * 24 * time.Hour},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			opts := retentionOptions(tc.cfg)
			require.Len(t, opts, 1)
			assert.Equal(t, tc.want, opts[0].Value())

			// rotatelogs 拒绝同时设置 max age 与 rotation count
			w, err := rotatelogs.New(filepath.Join(t.TempDir(), "x-%Y%m%d.log"), opts...)
			require.NoError(t, err)
			assert.NoError(t, w.Close())
		})
	}
}
