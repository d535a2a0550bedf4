package sessions

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

func (r *Registry) credentialDir(matricula string) string {
	return filepath.Join(r.dataDir, matricula)
}

// removeDirSafely deletes a credential directory recursively. A missing
// directory is a no-op and failures are logged, never propagated: credential
// cleanup must not block the teardown sequence it is part of.
func removeDirSafely(path string) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return
	}
	if err := os.RemoveAll(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to remove credential directory")
		return
	}
	log.Info().Str("path", path).Msg("credential directory removed")
}
