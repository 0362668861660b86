package config_test

import (
	"errors"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/Dimkaghb/quokkaProd-sub000/pkg/cli/config"
)

func TestLogger_Configure(t *testing.T) {
	t.Run("rejects unknown format", func(t *testing.T) {
		cfg := config.NewLoggerForTest("info", "xml", "stdout")
		_, err := cfg.Configure()
		gt.Error(t, err)
		gt.B(t, errors.Is(err, config.ErrInvalidConfig)).True()
	})
}
